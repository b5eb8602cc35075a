package model

import "time"

// Account is an application user profile. Its ID is shared with the
// credential record used to sign in.
type Account struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name"`
	IsAdmin             bool       `json:"is_admin"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	RememberMeExpiresAt *time.Time `json:"remember_me_expires_at,omitempty"`
	Mailboxes           []Mailbox  `json:"mailboxes"`
}

// FindMailbox returns the first owned mailbox with the given entry ID.
func (a *Account) FindMailbox(id string) (*Mailbox, bool) {
	for i := range a.Mailboxes {
		if a.Mailboxes[i].ID == id {
			return &a.Mailboxes[i], true
		}
	}
	return nil, false
}

// LoginEntry is the projection returned by the recent sign-ins listing.
type LoginEntry struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}
