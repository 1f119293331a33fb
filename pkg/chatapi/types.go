package chatapi

import "encoding/json"

// SendMessageRequest is the body posted to the backend send endpoint.
type SendMessageRequest struct {
	ChatID  string          `json:"chatId"`
	Message json.RawMessage `json:"message"`
}

// SendMessageResponse is the backend's reply to a send request.
type SendMessageResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// ClientOptions configures a Client beyond the required base URL.
type ClientOptions struct {
	AuthToken      string
	TimeoutSec     int
	SendRetryCount int
}
