package domain

import "time"

// Roles recorded in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnRecord is one write-only conversation log append. Turn numbers are
// assigned by the store; the pipeline never reads the log back mid-request.
type TurnRecord struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	At       time.Time      `json:"at"`
}
