package scrub

import (
	"sort"

	"github.com/scrubgate/scrubgate/pkg/api"
)

// candidate is a matched region before overlap resolution.
type candidate struct {
	start, end int
	value      string
	itemType   api.ItemType
}

// Text scrubs text against the patterns for the given item types and
// returns the sanitized text with its replacement accounting.
//
// Replacement is span-based rather than global string substitution so a
// value that also occurs in a non-sensitive context is not over-replaced.
// Item types without a pattern in the set are skipped; empty captures from
// alternation branches are discarded.
func Text(text string, itemTypes []api.ItemType, patterns PatternSet, tok *Tokenizer) api.ScrubResult {
	var candidates []candidate
	for _, itemType := range itemTypes {
		p, ok := patterns[itemType]
		if !ok {
			continue
		}
		for _, idx := range p.Regexp.FindAllStringSubmatchIndex(text, -1) {
			g := p.Group
			if 2*g+1 >= len(idx) {
				continue
			}
			start, end := idx[2*g], idx[2*g+1]
			if start < 0 || start == end {
				continue
			}
			candidates = append(candidates, candidate{
				start:    start,
				end:      end,
				value:    text[start:end],
				itemType: itemType,
			})
		}
	}

	// Longest span wins on overlap; ties go to the earlier start. A full
	// internal URL beats the IP inside it while independent matches are
	// all kept.
	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := candidates[i].end-candidates[i].start, candidates[j].end-candidates[j].start
		if li != lj {
			return li > lj
		}
		return candidates[i].start < candidates[j].start
	})

	var accepted []candidate
	for _, c := range candidates {
		overlaps := false
		for _, a := range accepted {
			if c.start < a.end && a.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}

	// Replace end-to-start so earlier spans keep their byte offsets.
	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].start > accepted[j].start
	})

	result := text
	replacements := make([]api.Replacement, 0, len(accepted))
	summary := make(map[api.ItemType]int)

	for _, c := range accepted {
		p := patterns[c.itemType]
		placeholder := tok.Tokenize(c.value, p.Prefix)
		result = result[:c.start] + placeholder + result[c.end:]

		replacements = append(replacements, api.Replacement{
			Placeholder: placeholder,
			ItemType:    c.itemType,
		})
		summary[c.itemType]++
	}

	return api.ScrubResult{
		SanitizedText: result,
		Replacements:  replacements,
		Summary:       summary,
	}
}
