package api

// Event kinds carried on the prompt_intercept channel.
const (
	EventPromptResult = "prompt_result"
	EventFileEvent    = "file_event"
	EventFileScrubbed = "file_scrubbed"
)

// InterceptEvent is the payload delivered to observers for every
// interception. Prompt, Sanitized, and Status are always present; the
// remaining fields are populated as the interception progresses.
//
// Every event serializes as a self-contained JSON document. Order across
// observers is not guaranteed; order within one observer mirrors publish
// order on the bus. Observers must tolerate unknown fields.
type InterceptEvent struct {
	Prompt    string `json:"prompt"`
	Sanitized string `json:"sanitized"`
	Status    string `json:"status"`

	Type             string           `json:"type,omitempty"`
	Category         Category         `json:"category,omitempty"`
	Detection        *Verdict         `json:"detection,omitempty"`
	ReplacementCount int              `json:"replacement_count,omitempty"`
	Summary          map[ItemType]int `json:"summary,omitempty"`
	Warning          string           `json:"warning,omitempty"`
	Filename         string           `json:"filename,omitempty"`
	JobID            string           `json:"job_id,omitempty"`
	DownloadURL      string           `json:"download_url,omitempty"`
}

// Replacement records one placeholder substitution made by the scrubber.
type Replacement struct {
	Placeholder string   `json:"replacement"`
	ItemType    ItemType `json:"item_type"`
}

// ScrubResult is the outcome of scrubbing a single text.
//
// Invariants: len(Replacements) equals the sum of Summary counts, and the
// multiset of placeholders in SanitizedText equals the multiset in
// Replacements.
type ScrubResult struct {
	SanitizedText string           `json:"sanitized_text"`
	Replacements  []Replacement    `json:"replacements"`
	Summary       map[ItemType]int `json:"summary"`
}

// FileScrubResult aggregates a line-by-line file scrub.
type FileScrubResult struct {
	LinesProcessed int              `json:"lines_processed"`
	ItemsScrubbed  int              `json:"items_scrubbed"`
	Summary        map[ItemType]int `json:"summary"`
}
