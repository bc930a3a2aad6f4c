package model

// WebSocket message types
const (
	WSMessageTypeStatus   = "status"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage carries one poll result for a job
type WSStatusMessage struct {
	Type   string          `json:"type"`
	JobID  string          `json:"jobId"`
	Status *StatusResponse `json:"status"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
