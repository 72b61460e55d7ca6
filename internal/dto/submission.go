package dto

import (
	"encoding/json"
	"time"
)

// SubmissionResponse represents a stored submission as exposed via transport layers.
type SubmissionResponse struct {
	ID           string          `json:"id"`
	OrderNumber  string          `json:"order_number"`
	SubmissionID string          `json:"submission_id"`
	Status       string          `json:"status"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AcknowledgeRequest selects the submission to acknowledge.
type AcknowledgeRequest struct {
	SubmissionID string `json:"submission_id"`
}
