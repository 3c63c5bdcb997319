package models

// CreateJobResponse is returned by POST /pdf/create.
type CreateJobResponse struct {
	JobID       string    `json:"jobId"`
	Status      JobStatus `json:"status"`
	Cursor      int       `json:"cursor"`
	Versions    int       `json:"versions"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   int64     `json:"expiresAt"`
}

// JobStatusResponse is returned by GET /pdf/status/{jobID}.
type JobStatusResponse struct {
	JobID         string    `json:"jobId"`
	Status        JobStatus `json:"status"`
	Cursor        int       `json:"cursor"`
	Versions      int       `json:"versions"`
	ActiveVersion int       `json:"activeVersion"`
	ExpiresAt     int64     `json:"expiresAt"`
	LastTool      string    `json:"lastTool,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
}

// ApplyToolResponse is returned by POST /pdf/apply/{jobID}.
type ApplyToolResponse struct {
	JobID         string    `json:"jobId"`
	Status        JobStatus `json:"status"`
	Cursor        int       `json:"cursor"`
	Versions      int       `json:"versions"`
	ActiveVersion int       `json:"activeVersion"`
	DownloadURL   string    `json:"downloadUrl"`
	ExpiresAt     int64     `json:"expiresAt"`
}

// UndoRedoResponse is returned by POST /pdf/undo and /pdf/redo.
type UndoRedoResponse struct {
	JobID         string `json:"jobId"`
	Cursor        int    `json:"cursor"`
	Versions      int    `json:"versions"`
	ActiveVersion int    `json:"activeVersion"`
	DownloadURL   string `json:"downloadUrl"`
	ExpiresAt     int64  `json:"expiresAt"`
}

// PageInfoResponse is returned by GET /pdf/page-info/{jobID}. PageW/PageH
// are the resolved dimensions of the first page in points.
type PageInfoResponse struct {
	Pages         int     `json:"pages"`
	PageW         float64 `json:"pageW"`
	PageH         float64 `json:"pageH"`
	ActiveVersion int     `json:"activeVersion"`
}

// ErrorResponse is the error body for every non-2xx response: a stable
// machine-readable code plus a human-readable message.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// DeleteResponse is returned by DELETE /pdf/{jobID}.
type DeleteResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
