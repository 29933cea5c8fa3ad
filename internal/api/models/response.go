package models

// UpdateResponse represents the response from an update or event invocation
type UpdateResponse struct {
	Status string `json:"status"`
}

// PreviewResponse is the row an update would append.
type PreviewResponse struct {
	Columns []string      `json:"columns"`
	Row     []interface{} `json:"row"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
