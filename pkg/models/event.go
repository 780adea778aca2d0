package models

import "time"

// RenderRequest represents a request to render a countdown GIF.
// Params uses the same keys as the HTTP query string (time, width, frames...).
type RenderRequest struct {
	Type   string            `json:"type"`
	ID     string            `json:"id"`
	Params map[string]string `json:"params"`
}

// RenderResult represents the result of a render operation
type RenderResult struct {
	Type        string    `json:"type"`
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Path        string    `json:"path,omitempty"`
	Passed      bool      `json:"passed"`
	Frames      int       `json:"frames"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	SizeBytes   int64     `json:"size_bytes"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

const (
	RenderRequestType = "render_request"
	RenderResultType  = "render_result"
)
