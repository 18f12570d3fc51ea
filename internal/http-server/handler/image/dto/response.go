package dto

import "time"

type UploadResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Size       int64     `json:"size"`
	PreviewURL string    `json:"preview_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PayloadResponse is the body a profile update sends: the image bytes in base64 and the
// MIME subtype, e.g. "jpeg".
type PayloadResponse struct {
	Base64String string `json:"base64String"`
	FileType     string `json:"fileType"`
}

type NormalizeResponse struct {
	PayloadResponse
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Size          int64   `json:"size"`
	TransportSize int     `json:"transport_size"`
	Quality       float64 `json:"quality"`
	Iterations    int     `json:"iterations"`
	PassedThrough bool    `json:"passed_through"`
}

type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
