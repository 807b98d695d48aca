package types

import (
	"io"
)

// UploadRequest describes one multipart upload to the backend.
type UploadRequest struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64 // 0 when unknown
	SenderID    string
	ReceiverID  string

	// Progress, when set, is called as the body is streamed.
	Progress func(sent, total int64)
}

// UploadResponse is the backend's answer to a successful upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the body the backend sends with error statuses.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
