package scrub

import (
	"regexp"

	"github.com/scrubgate/scrubgate/pkg/api"
)

// Pattern is a named regular expression with a token prefix and a
// designated capture group. Group 0 means the whole match; secret-like
// patterns capture the value after the keyword instead.
type Pattern struct {
	Regexp *regexp.Regexp
	Group  int
	Prefix string
}

// PatternSet maps item types to their patterns.
type PatternSet map[api.ItemType]Pattern

// Standard holds the prompt patterns.
var Standard = PatternSet{
	api.ItemEmail: {
		Regexp: regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`),
		Prefix: "EMAIL",
	},
	api.ItemPhone: {
		Regexp: regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		Prefix: "PHONE",
	},
	api.ItemName: {
		// Two adjacent capitalized tokens. High false-positive rate is
		// accepted; detection gates whether this pattern runs at all.
		Regexp: regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`),
		Prefix: "NAME",
	},
	api.ItemAPIKey: {
		Regexp: regexp.MustCompile(`\b[a-zA-Z]{2,6}[-_]?[a-zA-Z0-9]{20,}\b`),
		Prefix: "KEY",
	},
	api.ItemSecret: {
		// Connection-string variables (FOO_URL=scheme://user:pass) count as
		// keywords too. The value stops at '@' so a host or IP embedded in
		// a URI stays visible to the ip patterns.
		Regexp: regexp.MustCompile(`(?i)(secret|token|password|passwd|pwd|apikey|api_key|auth|[a-z_]*(?:url|uri|dsn))\s*[=:]\s*['"]?([^\s'"@]{8,})['"]?`),
		Group:  2,
		Prefix: "SECRET",
	},
	api.ItemBearer: {
		Regexp: regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]{20,}`),
		Prefix: "TOKEN",
	},
	api.ItemPath: {
		Regexp: regexp.MustCompile(`(?:/[\w.-]+){2,}|~/?[\w./-]+`),
		Prefix: "PATH",
	},
	api.ItemResourceID: {
		Regexp: regexp.MustCompile(`\b[a-z]{2,10}[-:][a-z0-9-]+[-:][a-zA-Z0-9/_-]{10,}\b`),
		Prefix: "RESOURCE",
	},
}

// Log holds the log-data patterns.
var Log = PatternSet{
	api.ItemIP: {
		// Octet range 0-255 is deliberately not enforced.
		Regexp: regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`),
		Prefix: "IP",
	},
	api.ItemPrivateIP: {
		Regexp: regexp.MustCompile(`\b(10\.\d{1,3}\.\d{1,3}\.\d{1,3}|172\.(1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3})\b`),
		Prefix: "IP",
	},
	api.ItemInternalURL: {
		Regexp: regexp.MustCompile(`https?://[\w.-]+\.(internal|local|corp|lan|private)\b\S*`),
		Prefix: "URL",
	},
	api.ItemTimestamp: {
		Regexp: regexp.MustCompile(`(\d{4}[-/:]\d{2}[-/:]\d{2}[T\s]\d{2}:\d{2}:\d{2})|(\d{2}:\d{2}:\d{2}[,.]\d{3})`),
		Prefix: "TIMESTAMP",
	},
	api.ItemEndpoint: {
		Regexp: regexp.MustCompile(`(?:GET|POST|PUT|DELETE|PATCH)\s+(/\S+)`),
		Group:  1,
		Prefix: "ENDPOINT",
	},
	api.ItemUser: {
		Regexp: regexp.MustCompile(`(?i)(?:user|uid|username)[=:\s]+([a-zA-Z0-9_.-]+)`),
		Group:  1,
		Prefix: "USER",
	},
	api.ItemTerminalUser: {
		// Shell prompt followed by an identity command, username on the
		// next line.
		Regexp: regexp.MustCompile(`(?m)^(?:❯\s*)?(?:whoami|id|logname)\s*\n([a-zA-Z0-9_.-]+)`),
		Group:  1,
		Prefix: "USER",
	},
}

// Merged returns the union of the Standard and Log sets. Used for log data
// pasted into prompts and for file mode, where both kinds of items occur.
func Merged() PatternSet {
	merged := make(PatternSet, len(Standard)+len(Log))
	for t, p := range Standard {
		merged[t] = p
	}
	for t, p := range Log {
		merged[t] = p
	}
	return merged
}
