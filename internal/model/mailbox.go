package model

import (
	"fmt"
	"time"
)

// Mailbox is an email account provisioned on the hosting panel and owned by
// exactly one Account.
type Mailbox struct {
	ID             string            `json:"id"`
	Address        string            `json:"address"`
	CredentialHash string            `json:"-"`
	QuotaMB        int               `json:"quota_mb"`
	UsedMB         int               `json:"used_mb"`
	Active         bool              `json:"active"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt *time.Time        `json:"last_accessed_at,omitempty"`
	Verified       *bool             `json:"verified,omitempty"`
	Incoming       *ProtocolSettings `json:"incoming,omitempty"`
	Outgoing       *ProtocolSettings `json:"outgoing,omitempty"`
}

// ProtocolSettings describes how a mail client reaches the server.
type ProtocolSettings struct {
	Server string `json:"server"`
	Port   int    `json:"port"`
	SSL    bool   `json:"ssl"`
}

// Validate checks the storage invariant.
func (m *Mailbox) Validate() error {
	if m.QuotaMB <= 0 {
		return fmt.Errorf("mailbox %s: quota must be positive", m.Address)
	}
	if m.UsedMB < 0 || m.UsedMB > m.QuotaMB {
		return fmt.Errorf("mailbox %s: used storage %d MB outside quota %d MB", m.Address, m.UsedMB, m.QuotaMB)
	}
	return nil
}

// SetUsage records used storage, clamped to [0, quota].
func (m *Mailbox) SetUsage(usedMB int) {
	switch {
	case usedMB < 0:
		m.UsedMB = 0
	case usedMB > m.QuotaMB:
		m.UsedMB = m.QuotaMB
	default:
		m.UsedMB = usedMB
	}
}

// MailboxUsage counts mail activity for one mailbox.
type MailboxUsage struct {
	Sent     int64 `json:"sent"`
	Received int64 `json:"received"`
	Logins   int64 `json:"logins"`
}
