// Package scrub implements deterministic tokenization of sensitive spans.
//
// Matching is regex-based: each item type in the closed vocabulary maps to
// a named pattern with a designated capture group and a token prefix.
// Overlapping matches are resolved longest-wins, accepted spans are
// replaced end-to-start with stable placeholders of the form [PREFIX_n].
//
// A Tokenizer makes naming idempotent: the same value under the same
// prefix always yields the same placeholder within one Tokenizer instance.
// Prompt scrubbing uses a fresh Tokenizer per call; file scrubbing shares
// one Tokenizer across all lines so repeated values collapse file-wide.
package scrub
