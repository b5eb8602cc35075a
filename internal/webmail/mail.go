// Package webmail serves the mailbox-facing helpers: client settings, webmail
// links, credential verification and the placeholder folder/message/send data.
package webmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultMessageLimit = 50

type Folder struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	MessageCount int    `json:"message_count"`
	UnreadCount  int    `json:"unread_count"`
}

// Folders returns the fixed folder listing.
func Folders() []Folder {
	return []Folder{
		{Name: "INBOX", DisplayName: "Inbox", MessageCount: 25, UnreadCount: 3},
		{Name: "SENT", DisplayName: "Sent", MessageCount: 12, UnreadCount: 0},
		{Name: "DRAFTS", DisplayName: "Drafts", MessageCount: 2, UnreadCount: 0},
		{Name: "TRASH", DisplayName: "Trash", MessageCount: 5, UnreadCount: 0},
	}
}

type Message struct {
	ID         string    `json:"id"`
	UID        uint32    `json:"uid"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	IsRead     bool      `json:"is_read"`
	ReceivedAt time.Time `json:"received_at"`
	Folder     string    `json:"folder"`
	Size       int       `json:"size"`
}

// Messages returns the fixed sample messages addressed to address, at most
// limit of them. Only INBOX holds messages.
func Messages(address, folder string, limit int, now time.Time) []Message {
	if folder == "" {
		folder = "INBOX"
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if !strings.EqualFold(folder, "INBOX") {
		return []Message{}
	}

	msgs := []Message{
		{
			ID: "1", UID: 1,
			From: "sender@example.com", To: address,
			Subject: "Welcome to your new mailbox",
			Body:    "Welcome to your new email system!",
			IsRead:  false, ReceivedAt: now,
			Folder: "INBOX", Size: 1024,
		},
		{
			ID: "2", UID: 2,
			From: "noreply@example.com", To: address,
			Subject: "Account Setup Complete",
			Body:    "Your email account has been successfully configured.",
			IsRead:  true, ReceivedAt: now.Add(-24 * time.Hour),
			Folder: "INBOX", Size: 2048,
		},
	}
	if limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs
}

type Outgoing struct {
	From    string   `json:"from" validate:"required,email"`
	To      []string `json:"to" validate:"required,min=1,dive,email"`
	Cc      []string `json:"cc,omitempty" validate:"omitempty,dive,email"`
	Bcc     []string `json:"bcc,omitempty" validate:"omitempty,dive,email"`
	Subject string   `json:"subject" validate:"required"`
	Body    string   `json:"body"`
}

// Send accepts a message without delivering it and returns its message ID.
func Send(ctx context.Context, msg Outgoing, now time.Time) string {
	id := fmt.Sprintf("msg_%d", now.UnixMilli())
	zerolog.Ctx(ctx).Info().
		Str("message_id", id).
		Str("from", msg.From).
		Int("recipients", len(msg.To)+len(msg.Cc)+len(msg.Bcc)).
		Msg("outgoing message accepted")
	return id
}
