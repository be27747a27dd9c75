package api

// Verdict is the detection agent's classification of a piece of content.
//
// Invariants:
//   - NeedsSanitization == false implies Category == CategoryClean.
//   - Category == CategoryError marks detector failure, never a
//     classification; the gateway must block the request.
//   - ItemsDetected is diagnostic only. Regex extraction is the
//     authoritative span source; model-spotted literals are never used to
//     drive replacement.
type Verdict struct {
	NeedsSanitization bool       `json:"needs_sanitization"`
	Category          Category   `json:"category"`
	Summary           string     `json:"summary"`
	ItemsDetected     []string   `json:"items_detected"`
	ItemTypes         []ItemType `json:"item_types"`
}

// Clean reports whether the verdict found nothing to sanitize.
func (v *Verdict) Clean() bool {
	return !v.NeedsSanitization && v.Category == CategoryClean
}

// Failed reports whether the verdict marks a detector failure.
func (v *Verdict) Failed() bool {
	return v.Category == CategoryError
}

// ErrorVerdict builds the fail-closed verdict for a detector failure.
// The summary carries the diagnostic shown to the caller and observers.
func ErrorVerdict(diagnostic string) *Verdict {
	return &Verdict{
		NeedsSanitization: true,
		Category:          CategoryError,
		Summary:           diagnostic,
		ItemsDetected:     []string{},
		ItemTypes:         []ItemType{},
	}
}
