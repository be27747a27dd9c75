package scrub

import "fmt"

// Tokenizer maps sensitive values to stable placeholders. Counters are
// per-prefix and monotonic: two distinct values under the same prefix get
// [P_1] and [P_2] in first-seen order, and a value seen again returns the
// placeholder it was assigned the first time.
//
// A Tokenizer is not safe for concurrent use. Prompt-mode callers create
// one per scrub call; file mode shares one across all lines of a file.
type Tokenizer struct {
	maps     map[string]map[string]string
	counters map[string]int
}

// NewTokenizer creates an empty Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		maps:     make(map[string]map[string]string),
		counters: make(map[string]int),
	}
}

// Tokenize returns the placeholder for value under prefix, creating one if
// the value has not been seen under this prefix before.
func (t *Tokenizer) Tokenize(value, prefix string) string {
	m, ok := t.maps[prefix]
	if !ok {
		m = make(map[string]string)
		t.maps[prefix] = m
	}

	if tok, ok := m[value]; ok {
		return tok
	}

	t.counters[prefix]++
	tok := fmt.Sprintf("[%s_%d]", prefix, t.counters[prefix])
	m[value] = tok
	return tok
}

// TotalTokens returns the number of distinct values tokenized so far.
func (t *Tokenizer) TotalTokens() int {
	n := 0
	for _, m := range t.maps {
		n += len(m)
	}
	return n
}
