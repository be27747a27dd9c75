package scrub

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/scrubgate/scrubgate/pkg/api"
)

// File scrubs inPath line by line into outPath using the merged pattern
// set. One Tokenizer is shared across the whole file so a value repeated
// on different lines collapses to a single placeholder file-wide.
//
// Both paths must already be resolved through the sandbox; File itself
// performs no containment checks.
func File(inPath, outPath string, itemTypes []api.ItemType) (api.FileScrubResult, error) {
	res := api.FileScrubResult{Summary: make(map[api.ItemType]int)}

	in, err := os.Open(inPath)
	if err != nil {
		return res, fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return res, fmt.Errorf("creating output directory: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return res, fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	patterns := Merged()
	tok := NewTokenizer()
	reader := bufio.NewReader(in)
	writer := bufio.NewWriter(out)

	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			res.LinesProcessed++
			scrubbed := Text(line, itemTypes, patterns, tok)
			res.ItemsScrubbed += len(scrubbed.Replacements)
			for t, n := range scrubbed.Summary {
				res.Summary[t] += n
			}
			if _, err := writer.WriteString(scrubbed.SanitizedText); err != nil {
				return res, fmt.Errorf("writing output: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return res, fmt.Errorf("reading input: %w", readErr)
		}
	}

	if err := writer.Flush(); err != nil {
		return res, fmt.Errorf("flushing output: %w", err)
	}
	return res, nil
}
