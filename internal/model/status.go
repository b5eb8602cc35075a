package model

// Mailbox status values reported by the hosting panel.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)
