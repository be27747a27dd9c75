package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/debug"
	"github.com/scrubgate/scrubgate/pkg/observability"
)

// sniffLen is how many leading bytes feed the MIME sniffer.
const sniffLen = 2048

// detectSampleLen is how much of the file the detector sees. The category
// is decided on the sample; the whole file is scrubbed regardless.
const detectSampleLen = 4096

// allowedTypes are text subtypes accepted beyond the text/* prefix.
var allowedTypes = map[string]bool{
	"text/plain":           true,
	"text/csv":             true,
	"text/log":             true,
	"application/json":     true,
	"application/x-ndjson": true,
}

// rejectedTypes maps MIME prefixes to user-facing rejection messages.
var rejectedTypes = []struct {
	prefix  string
	message string
}{
	{"image/", "Images are not supported. Please paste text content directly."},
	{"video/", "Video files are not supported."},
	{"audio/", "Audio files are not supported."},
	{"application/pdf", "PDF files are not yet supported. Copy and paste the text content instead."},
	{"application/zip", "Archive files are not supported. Extract and upload text files."},
}

// handleFileUpload handles POST /api/v1/files.
func (a *Adapter) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("file", "multipart form must carry a 'file' part"),
			http.StatusBadRequest)
		return
	}
	defer file.Close()

	safeName := filepath.Base(header.Filename)
	if safeName == "" || safeName == "." || safeName == string(filepath.Separator) ||
		strings.HasPrefix(safeName, ".") {
		observability.InterceptionsTotal.WithLabelValues("file", "invalid").Inc()
		WriteErrorResponse(w,
			api.NewInvalidRequestError("filename", "Invalid filename"),
			http.StatusBadRequest)
		return
	}

	limit := a.cfg.FileLimitBytes()
	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		WriteAPIError(w, api.NewServerError("failed to read upload: "+err.Error()))
		return
	}
	if int64(len(content)) > limit {
		msg := fmt.Sprintf("File too large (%d KB). Max %d KB.", len(content)/1024, a.cfg.Scrub.FileLimitKB)
		a.publishFileEvent(ctx, safeName, "Error: "+msg, nil)
		observability.InterceptionsTotal.WithLabelValues("file", "oversize").Inc()
		WriteErrorResponse(w, api.NewTooLargeError(msg), http.StatusRequestEntityTooLarge)
		return
	}

	mimeType := sniffMIME(content)
	for _, rt := range rejectedTypes {
		if strings.HasPrefix(mimeType, rt.prefix) {
			a.publishFileEvent(ctx, safeName, "Error: "+rt.message, nil)
			observability.InterceptionsTotal.WithLabelValues("file", "rejected_type").Inc()
			WriteErrorResponse(w, api.NewUnsupportedTypeError(rt.message), http.StatusUnsupportedMediaType)
			return
		}
	}
	if !allowedTypes[mimeType] && !strings.HasPrefix(mimeType, "text/") {
		msg := "Unsupported file type: " + mimeType
		a.publishFileEvent(ctx, safeName, "Error: "+msg, nil)
		observability.InterceptionsTotal.WithLabelValues("file", "rejected_type").Inc()
		WriteErrorResponse(w, api.NewUnsupportedTypeError(msg), http.StatusUnsupportedMediaType)
		return
	}

	if !a.scrubbing.Load() {
		observability.InterceptionsTotal.WithLabelValues("file", "passthrough").Inc()
		a.proxyFileUpload(w, r, header, content)
		return
	}

	// Replacement characters are not acceptable here: a scrubbed file with
	// mangled bytes would silently differ from the original.
	if !utf8.Valid(content) {
		msg := "File does not appear to be valid text."
		a.publishFileEvent(ctx, safeName, "Error: "+msg, nil)
		observability.InterceptionsTotal.WithLabelValues("file", "invalid").Inc()
		WriteErrorResponse(w, api.NewUnsupportedTypeError(msg), http.StatusUnsupportedMediaType)
		return
	}
	text := string(content)

	jobID := api.NewJobID()
	sessionID := api.NewSessionID()
	debug.Log("gateway", "intercepted file upload",
		"job_id", jobID, "filename", safeName, "bytes", len(content), "mime", mimeType)

	sample := text
	if len(sample) > detectSampleLen {
		sample = sample[:detectSampleLen]
	}
	verdict := a.detector.Detect(ctx, sessionID, sample)

	if verdict.Failed() {
		msg := verdict.Summary
		a.publishFileEvent(ctx, safeName, "Error: "+msg, verdict)
		observability.InterceptionsTotal.WithLabelValues("file", "error").Inc()
		WriteErrorResponse(w,
			api.NewServerError(fmt.Sprintf("Detection failed: %s. Upload blocked for safety.", msg)),
			http.StatusServiceUnavailable)
		return
	}

	if !verdict.NeedsSanitization {
		a.publishFileEvent(ctx, safeName, "🛡️ Clean — no sensitive content detected", verdict)
		observability.InterceptionsTotal.WithLabelValues("file", "clean").Inc()
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, api.SyntheticUploadResponse(jobID, safeName))
		return
	}

	a.scrubFileUpload(w, r, jobID, safeName, text, verdict)
}

// scrubFileUpload stages the input in the sandbox, runs the file-mode
// scrub through the tool channel, and synthesizes the success envelope.
func (a *Adapter) scrubFileUpload(w http.ResponseWriter, r *http.Request, jobID, safeName, text string, verdict *api.Verdict) {
	ctx := r.Context()

	inputName := jobID + ".txt"
	outputName := jobID + "_" + safeName

	inPath, err := a.box.Resolve(inputName, "in")
	if err != nil {
		WriteAPIError(w, api.NewServerError("sandbox rejected input path: "+err.Error()))
		return
	}
	if err := os.MkdirAll(filepath.Dir(inPath), 0o755); err != nil {
		WriteAPIError(w, api.NewServerError("failed to stage input: "+err.Error()))
		return
	}
	if err := os.WriteFile(inPath, []byte(text), 0o644); err != nil {
		WriteAPIError(w, api.NewServerError("failed to stage input: "+err.Error()))
		return
	}

	// Log files get the full merged vocabulary since they routinely carry
	// emails and API keys; other text sticks to the prompt set.
	itemTypes := api.PromptItemTypes()
	if verdict.Category == api.CategoryLogFile {
		itemTypes = api.AllItemTypes()
	}

	result, err := a.scrubber.ScrubLogAsFile(ctx, inputName, outputName, itemTypes)
	if err != nil {
		msg := "Scrubbing failed: " + err.Error()
		a.logger.Error("file scrub failed", "job_id", jobID, "error", err)
		a.publishFileEvent(ctx, safeName, "Error: "+msg, verdict)
		observability.InterceptionsTotal.WithLabelValues("file", "scrub_error").Inc()
		WriteErrorResponse(w, api.NewServerError(msg), http.StatusInternalServerError)
		return
	}

	for t, n := range result.Summary {
		observability.ItemsScrubbed.WithLabelValues(string(t)).Add(float64(n))
	}

	downloadURL := "/api/v1/files/download/" + jobID
	status := fmt.Sprintf("🛡️ %s — %d items scrubbed in %d lines",
		categoryTitle(verdict.Category), result.ItemsScrubbed, result.LinesProcessed)
	if breakdown := summaryBreakdown(result.Summary); breakdown != "" {
		status += " (" + breakdown + ")"
	}
	status += "\nDownload: " + downloadURL

	a.publishIntercept(ctx, &api.InterceptEvent{
		Type:        api.EventFileScrubbed,
		Prompt:      "[File Upload: " + safeName + "]",
		Status:      status,
		Category:    verdict.Category,
		Detection:   verdict,
		Summary:     result.Summary,
		Filename:    safeName,
		JobID:       jobID,
		DownloadURL: downloadURL,
	})
	observability.InterceptionsTotal.WithLabelValues("file", "scrubbed").Inc()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, api.SyntheticUploadResponse(jobID, safeName))
}

// handleFileDownload handles GET /api/v1/files/download/{job_id}.
//
// Unauthenticated by design: the deployment contract is loopback-only.
func (a *Adapter) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if !api.ValidJobID(jobID) {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("job_id", "malformed job ID"),
			http.StatusBadRequest)
		return
	}

	matches, err := filepath.Glob(filepath.Join(a.box.Root(), "out", jobID+"_*"))
	if err != nil || len(matches) == 0 {
		WriteAPIError(w, api.NewNotFoundError("No scrubbed file found for job "+jobID))
		return
	}

	path := matches[0]
	originalName := strings.TrimPrefix(filepath.Base(path), jobID+"_")
	downloadName := defangFilename(originalName)

	f, err := os.Open(path)
	if err != nil {
		WriteAPIError(w, api.NewServerError("failed to open scrubbed file"))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"scrubbed_%s\"", downloadName))
	io.Copy(w, f)
}

// proxyFileUpload forwards the upload to the downstream chat UI's file
// endpoint and returns its JSON reply verbatim.
func (a *Adapter) proxyFileUpload(w http.ResponseWriter, r *http.Request, header *multipart.FileHeader, content []byte) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", header.Filename)
	if err == nil {
		_, err = part.Write(content)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		WriteAPIError(w, api.NewServerError("failed to build proxy request"))
		return
	}

	url := strings.TrimRight(a.cfg.Passthrough.OpenWebUIURL, "/") + "/api/v1/files"
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, &buf)
	if err != nil {
		WriteAPIError(w, api.NewServerError("failed to create proxy request"))
		return
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if auth := r.Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	client := &http.Client{Timeout: a.cfg.Passthrough.FileTimeout}
	resp, err := client.Do(req)
	if err != nil {
		WriteAPIError(w, api.NewUpstreamError("downstream UI unreachable: "+err.Error()))
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// publishFileEvent emits a file_event on the prompt_intercept channel.
func (a *Adapter) publishFileEvent(ctx context.Context, filename, status string, verdict *api.Verdict) {
	a.publishIntercept(ctx, &api.InterceptEvent{
		Type:      api.EventFileEvent,
		Prompt:    "[File Upload: " + filename + "]",
		Status:    status,
		Detection: verdict,
		Filename:  filename,
	})
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing useful left to do.
		return
	}
}

// sniffMIME detects the content type from the leading bytes and strips any
// charset parameter.
func sniffMIME(content []byte) string {
	sample := content
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
	}
	mimeType := http.DetectContentType(sample)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// defangFilename strips quotes and newlines for the Content-Disposition
// header.
func defangFilename(name string) string {
	r := strings.NewReplacer("\"", "", "\n", "", "\r", "")
	return r.Replace(name)
}

// categoryTitle renders "log_file" as "Log File".
func categoryTitle(c api.Category) string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
