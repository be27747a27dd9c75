package api

import (
	"regexp"

	"github.com/google/uuid"
)

// jobIDPattern constrains job IDs to the 8-char UUID prefix alphabet.
// Download lookups interpolate the job ID into a filename glob, so the
// gateway validates inbound IDs against this before touching the sandbox.
var jobIDPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// NewJobID generates a short job identifier for a file-scrub job.
func NewJobID() string {
	return uuid.NewString()[:8]
}

// NewSessionID generates a correlation ID for activity-monitor events.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidJobID reports whether id is a well-formed job identifier.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}
