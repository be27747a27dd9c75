package api

// FileUploadResponse is the envelope the downstream chat UI expects from
// its file endpoint. The gateway synthesizes it for intercepted uploads.
//
// Data.Content left empty is the opt-out signal that disables
// retrieval-augmented processing downstream.
//
// Schema tracks Open WebUI v0.5.x; changes there require updates here.
type FileUploadResponse struct {
	Status   bool     `json:"status"`
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Data     FileData `json:"data"`
	Meta     FileMeta `json:"meta"`
}

// FileData describes processing state for the uploaded file.
type FileData struct {
	Status  string `json:"status"`
	Content string `json:"content"`
}

// FileMeta carries display metadata for the uploaded file.
type FileMeta struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// SyntheticUploadResponse builds the no-RAG success envelope for a file
// the gateway handled itself (clean or scrubbed).
func SyntheticUploadResponse(jobID, filename string) *FileUploadResponse {
	return &FileUploadResponse{
		Status:   true,
		ID:       "scrubgate-" + jobID,
		Filename: filename,
		Data:     FileData{Status: "completed", Content: ""},
		Meta:     FileMeta{Name: filename, ContentType: "text/plain", Size: 0},
	}
}
