package model

import "time"

// SystemStats aggregates account counts across the whole collection.
type SystemStats struct {
	TotalUsers         int       `json:"total_users"`
	ActiveUsers        int       `json:"active_users"`
	InactiveUsers      int       `json:"inactive_users"`
	TotalEmailAccounts int       `json:"total_email_accounts"`
	LastUpdated        time.Time `json:"last_updated"`
}

// PanelStats summarizes the mailboxes of one domain as reported by the panel.
type PanelStats struct {
	TotalAccounts   int          `json:"total_accounts"`
	TotalQuotaUsed  float64      `json:"total_quota_used"`
	TotalQuotaLimit float64      `json:"total_quota_limit"`
	Accounts        []PanelEntry `json:"accounts"`
}

// PanelEntry is one mailbox row from the panel, normalized.
type PanelEntry struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Storage     int       `json:"storage"`
	StorageUsed int       `json:"storage_used"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
