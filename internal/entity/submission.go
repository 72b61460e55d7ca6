package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Submission states.
const (
	StatusSubmitted       = "submitted"
	StatusAcknowledged    = "acknowledged"
	StatusAlreadyInSystem = "already_in_system"
	StatusFailed          = "failed"
)

// Submission records one attempt to hand an order to the fulfillment provider.
type Submission struct {
	bun.BaseModel `bun:"table:submissions"`

	ID           string    `bun:"id,pk" json:"id"`
	OrderNumber  string    `bun:"order_number,notnull" json:"order_number"`
	SubmissionID string    `bun:"submission_id,notnull" json:"submission_id"`
	Status       string    `bun:"status,notnull" json:"status"`
	ErrorKind    string    `bun:"error_kind,notnull" json:"error_kind"`
	ErrorMessage string    `bun:"error_message,notnull" json:"error_message"`
	Response     string    `bun:"response,notnull" json:"response"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
