package model

// Activity kinds.
const (
	ActivityEmailCreated    = "email_created"
	ActivityEmailDeleted    = "email_deleted"
	ActivityPasswordChanged = "password_changed"
	ActivityEmailAttached   = "email_attached"
	ActivityLogin           = "login"
)

// ActivityEvent is an append-only log entry keyed by account ID.
type ActivityEvent struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp int64             `json:"timestamp"`
}
