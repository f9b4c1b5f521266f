package types

// ErrorEnvelope is the failure shape of the storefront envelope. Success
// payloads are flattened next to "success" by api/responses.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// MessageEnvelope is a success response that only carries a message.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
