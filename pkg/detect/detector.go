// Package detect classifies intercepted content by asking the downstream
// model whether it contains sensitive data.
//
// Detection is fail-closed: any failure to obtain a well-formed verdict
// (timeout, connection error, malformed JSON, out-of-vocabulary fields)
// yields the error verdict, which the gateway treats as "block the request".
package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/debug"
	"github.com/scrubgate/scrubgate/pkg/llm"
	"github.com/scrubgate/scrubgate/pkg/monitor"
)

// detectTemperature keeps the classifier deterministic enough to honor the
// JSON-only output contract while tolerating slight phrasing variance.
const detectTemperature = 0.3

// Completer is the slice of the LLM client the detector needs.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error)
	Model() string
}

// Detector classifies text through the downstream model.
type Detector struct {
	client  Completer
	monitor *monitor.Monitor
	logger  *slog.Logger
}

// New creates a Detector. The monitor may be nil.
func New(client Completer, mon *monitor.Monitor, logger *slog.Logger) *Detector {
	return &Detector{client: client, monitor: mon, logger: logger}
}

// Detect classifies text and always returns a verdict. It never returns an
// error: failures surface as the fail-closed error verdict whose summary
// explains what went wrong.
func (d *Detector) Detect(ctx context.Context, sessionID, text string) *api.Verdict {
	d.monitor.Publish(ctx, "detector", sessionID, d.client.Model(), "detector_start", map[string]any{
		"chars": len(text),
	})

	raw, err := d.client.Complete(ctx, buildMessages(text), detectTemperature)
	if err != nil {
		diagnostic := explainFailure(err)
		d.logger.Error("detection failed", "session_id", sessionID, "error", err)
		d.monitor.Publish(ctx, "detector", sessionID, d.client.Model(), "detector_error", map[string]any{
			"error": diagnostic,
		})
		return api.ErrorVerdict(diagnostic)
	}

	debug.Trace("detect", "raw classifier output", "output", debug.Truncate(raw, 500))

	verdict, err := parseVerdict(raw)
	if err != nil {
		diagnostic := fmt.Sprintf(
			"The LLM responded but not with valid JSON. "+
				"This happens when thinking models wrap output in <think> blocks. "+
				"Switch to a non-thinking model.\n\nParse error: %s\n\nRaw response:\n%s",
			err, debug.Truncate(raw, 500))
		d.logger.Error("detection parse failed", "session_id", sessionID, "error", err)
		d.monitor.Publish(ctx, "detector", sessionID, d.client.Model(), "detector_error", map[string]any{
			"error": err.Error(),
		})
		return api.ErrorVerdict(diagnostic)
	}

	d.monitor.Publish(ctx, "detector", sessionID, d.client.Model(), "detector_complete", map[string]any{
		"category":   string(verdict.Category),
		"item_types": len(verdict.ItemTypes),
	})
	return verdict
}

// parseVerdict decodes and normalizes the classifier output. Invalid shape
// or vocabulary is an error; the caller converts it to the error verdict.
func parseVerdict(raw string) (*api.Verdict, error) {
	text := stripFences(raw)

	var v api.Verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}

	if !api.ValidCategory(v.Category) {
		return nil, fmt.Errorf("unknown category %q", v.Category)
	}
	if v.NeedsSanitization && v.Category == api.CategoryClean {
		return nil, errors.New("needs_sanitization is true but category is clean")
	}
	if !v.NeedsSanitization && v.Category != api.CategoryClean {
		return nil, fmt.Errorf("needs_sanitization is false but category is %q", v.Category)
	}

	if !v.NeedsSanitization {
		return &api.Verdict{
			NeedsSanitization: false,
			Category:          api.CategoryClean,
			Summary:           v.Summary,
			ItemsDetected:     []string{},
			ItemTypes:         []api.ItemType{},
		}, nil
	}

	// Backfill from the category only when the field is absent (nil after
	// decoding). An explicit empty list is a distinct answer: the model saw
	// something but could not name it, and the gateway warns instead of
	// scrubbing blind.
	if v.ItemTypes == nil {
		v.ItemTypes = api.CategoryDefaults(v.Category)
	} else {
		kept := make([]api.ItemType, 0, len(v.ItemTypes))
		for _, t := range v.ItemTypes {
			if api.ValidItemType(t) {
				kept = append(kept, t)
			}
		}
		v.ItemTypes = kept
	}
	if v.ItemsDetected == nil {
		v.ItemsDetected = []string{}
	}
	return &v, nil
}

// stripFences removes an optional markdown code fence around the JSON.
// Some models wrap output despite the prompt forbidding it.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		text = text[3:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// explainFailure maps a completion error to a human-readable diagnostic
// shown in the blocked-request envelope and observer events.
func explainFailure(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return "The LLM took too long to respond. " +
			"This usually means the model is overloaded or " +
			"the thinking model is spending too long reasoning. " +
			"Try increasing LLM_TIMEOUT or switching to a non-thinking model."
	case strings.Contains(lower, "connect") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "refused"):
		return "Could not connect to the LLM service. " +
			"Check that the inference container is running."
	default:
		return msg
	}
}
