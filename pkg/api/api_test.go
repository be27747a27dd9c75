package api

import (
	"encoding/json"
	"testing"
)

func TestChatMessageText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain string", `"hello there"`, "hello there"},
		{"text parts", `[{"type":"text","text":"one "},{"type":"text","text":"two"}]`, "one two"},
		{"input_text part", `[{"type":"input_text","text":"voice"}]`, "voice"},
		{"mixed parts", `[{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"caption"}]`, "caption"},
		{"untyped part", `[{"text":"bare"}]`, "bare"},
		{"number content", `42`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ChatMessage{Role: "user", Content: json.RawMessage(tt.content)}
			if got := m.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLastUserText(t *testing.T) {
	req := ChatCompletionRequest{Messages: []ChatMessage{
		{Role: "system", Content: json.RawMessage(`"be brief"`)},
		{Role: "user", Content: json.RawMessage(`"first"`)},
		{Role: "assistant", Content: json.RawMessage(`"reply"`)},
		{Role: "user", Content: json.RawMessage(`"second"`)},
	}}
	if got := req.LastUserText(); got != "second" {
		t.Errorf("LastUserText = %q, want %q", got, "second")
	}

	empty := ChatCompletionRequest{Messages: []ChatMessage{
		{Role: "assistant", Content: json.RawMessage(`"reply"`)},
	}}
	if got := empty.LastUserText(); got != "" {
		t.Errorf("LastUserText with no user message = %q", got)
	}
}

func TestStatusEnvelopes(t *testing.T) {
	resp := StatusCompletion("m1", "[CLEAN] No sensitive data detected.")
	if resp.Object != "chat.completion" {
		t.Errorf("Object = %q", resp.Object)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message == nil {
		t.Fatalf("Choices = %+v", resp.Choices)
	}
	if resp.Choices[0].Message.Content != "[CLEAN] No sensitive data detected." {
		t.Errorf("Content = %q", resp.Choices[0].Message.Content)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.Choices[0].FinishReason)
	}
	if resp.Usage != (ChatUsage{}) {
		t.Errorf("Usage = %+v, want zeros", resp.Usage)
	}

	chunk := StatusChunk("m1", "status")
	if chunk.Object != "chat.completion.chunk" {
		t.Errorf("chunk Object = %q", chunk.Object)
	}
	if len(chunk.Choices) != 1 || chunk.Choices[0].Delta == nil || chunk.Choices[0].Message != nil {
		t.Fatalf("chunk Choices = %+v", chunk.Choices)
	}
}

func TestVerdictPredicates(t *testing.T) {
	clean := Verdict{NeedsSanitization: false, Category: CategoryClean}
	if !clean.Clean() || clean.Failed() {
		t.Errorf("clean verdict misclassified")
	}

	dirty := Verdict{NeedsSanitization: true, Category: CategoryPII}
	if dirty.Clean() || dirty.Failed() {
		t.Errorf("pii verdict misclassified")
	}

	failed := ErrorVerdict("LLM timed out")
	if !failed.Failed() || failed.Clean() {
		t.Errorf("error verdict misclassified")
	}
	if !failed.NeedsSanitization {
		t.Errorf("error verdict must fail closed")
	}
	if failed.Summary != "LLM timed out" {
		t.Errorf("Summary = %q", failed.Summary)
	}
}

func TestValidCategory(t *testing.T) {
	for _, c := range []Category{CategoryPII, CategoryCredentials, CategoryLogFile,
		CategoryCodeSecrets, CategoryInfrastructure, CategoryClean} {
		if !ValidCategory(c) {
			t.Errorf("ValidCategory(%q) = false", c)
		}
	}
	for _, c := range []Category{CategoryError, Category("malware"), Category("")} {
		if ValidCategory(c) {
			t.Errorf("ValidCategory(%q) = true", c)
		}
	}
}

func TestCategoryDefaults(t *testing.T) {
	if got := CategoryDefaults(CategoryPII); len(got) != 3 {
		t.Errorf("pii defaults = %v", got)
	}
	for _, it := range CategoryDefaults(CategoryLogFile) {
		if !ValidItemType(it) {
			t.Errorf("log_file default %q outside vocabulary", it)
		}
	}
	if got := CategoryDefaults(CategoryClean); got != nil {
		t.Errorf("clean defaults = %v, want nil", got)
	}
	if got := CategoryDefaults(CategoryError); got != nil {
		t.Errorf("error defaults = %v, want nil", got)
	}
}

func TestAllItemTypesIsUnion(t *testing.T) {
	all := AllItemTypes()
	if len(all) != len(PromptItemTypes())+len(LogItemTypes()) {
		t.Fatalf("union size = %d", len(all))
	}
	seen := make(map[ItemType]bool, len(all))
	for _, it := range all {
		if seen[it] {
			t.Errorf("duplicate item type %q", it)
		}
		seen[it] = true
		if !ValidItemType(it) {
			t.Errorf("item type %q outside vocabulary", it)
		}
	}
}

func TestJobIDs(t *testing.T) {
	id := NewJobID()
	if !ValidJobID(id) {
		t.Errorf("generated job ID %q not valid", id)
	}

	tests := []struct {
		id    string
		valid bool
	}{
		{"deadbeef", true},
		{"01234567", true},
		{"DEADBEEF", false},
		{"deadbee", false},
		{"deadbeef0", false},
		{"../../.x", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidJobID(tt.id); got != tt.valid {
			t.Errorf("ValidJobID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestSyntheticUploadResponse(t *testing.T) {
	resp := SyntheticUploadResponse("deadbeef", "server.log")
	if !resp.Status {
		t.Errorf("Status = false")
	}
	if resp.ID != "scrubgate-deadbeef" {
		t.Errorf("ID = %q", resp.ID)
	}
	if resp.Filename != "server.log" || resp.Meta.Name != "server.log" {
		t.Errorf("filename fields = %q / %q", resp.Filename, resp.Meta.Name)
	}
	if resp.Data.Status != "completed" {
		t.Errorf("Data.Status = %q", resp.Data.Status)
	}
	// Empty content is the no-RAG signal.
	if resp.Data.Content != "" {
		t.Errorf("Data.Content = %q, want empty", resp.Data.Content)
	}
}
