package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/cpanel"
	"github.com/animxo/mailpanel/internal/model"
	"github.com/animxo/mailpanel/internal/platform"
	"github.com/animxo/mailpanel/internal/webmail"
)

// DefaultAttachedQuotaMB is recorded for an attached mailbox whose quota the
// panel does not report.
const DefaultAttachedQuotaMB = 1000

// Panel is the part of the hosting panel used for mailbox provisioning.
// *cpanel.Client satisfies this interface.
type Panel interface {
	Domain() string
	CreateMailbox(ctx context.Context, username, password string, quotaMB int) *cpanel.Envelope
	DeleteMailbox(ctx context.Context, identifier string) *cpanel.Envelope
	ChangePassword(ctx context.Context, address, newPassword string) *cpanel.Envelope
	ListMailboxes(ctx context.Context) ([]model.PanelEntry, error)
	MailboxInfo(ctx context.Context, address string) (*cpanel.PanelMailbox, error)
}

type MailboxConfig struct {
	MailServer string
	WebmailURL string
}

// MailboxService runs the mailbox lifecycle: the panel is changed first and
// the owning account's list only after the panel call succeeded.
type MailboxService struct {
	panel    Panel
	accounts *AccountService
	activity *ActivityService
	usage    *UsageService
	verifier webmail.Verifier
	cfg      MailboxConfig
	now      func() time.Time
}

func NewMailboxService(panel Panel, accounts *AccountService, activity *ActivityService, usage *UsageService, verifier webmail.Verifier, cfg MailboxConfig) *MailboxService {
	return &MailboxService{
		panel:    panel,
		accounts: accounts,
		activity: activity,
		usage:    usage,
		verifier: verifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *MailboxService) logActivity(ctx context.Context, accountID, action, address string) {
	if _, err := s.activity.Log(ctx, accountID, action, map[string]string{"email": address}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("account_id", accountID).Str("action", action).Msg("activity log failed")
	}
}

// Provision validates the address and quota, then creates the mailbox on the
// panel. Nothing reaches the panel when validation fails.
func (s *MailboxService) Provision(ctx context.Context, address, password string, quotaMB int, bounds QuotaBounds) error {
	local, err := CheckDomain(address, s.panel.Domain())
	if err != nil {
		return err
	}
	if err := bounds.Check(quotaMB); err != nil {
		return err
	}
	if password == "" {
		return invalidf("password is required")
	}

	if err := s.panel.CreateMailbox(ctx, local, password, quotaMB).ErrOr("Failed to create email account"); err != nil {
		return fmt.Errorf("create mailbox %s: %w", address, err)
	}
	return nil
}

// Deprovision deletes a mailbox from the panel without touching any account.
func (s *MailboxService) Deprovision(ctx context.Context, address string) error {
	if _, err := CheckDomain(address, s.panel.Domain()); err != nil {
		return err
	}
	if err := s.panel.DeleteMailbox(ctx, address).ErrOr("Failed to delete email account"); err != nil {
		return fmt.Errorf("delete mailbox %s: %w", address, err)
	}
	return nil
}

// Create provisions a mailbox and records it on the account.
func (s *MailboxService) Create(ctx context.Context, accountID, address, password string, quotaMB int, bounds QuotaBounds) (*model.Mailbox, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if err := s.Provision(ctx, address, password, quotaMB, bounds); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	mb := model.Mailbox{
		ID:             platform.NewName("mbx_"),
		Address:        address,
		CredentialHash: hash,
		QuotaMB:        quotaMB,
		Active:         true,
		CreatedAt:      s.now().UTC(),
	}

	if _, err := s.accounts.AppendMailbox(ctx, accountID, mb); err != nil {
		if rbErr := s.panel.DeleteMailbox(ctx, address).Err(); rbErr != nil {
			zerolog.Ctx(ctx).Error().Err(rbErr).Str("address", address).Msg("rollback of panel mailbox failed")
		}
		return nil, err
	}

	s.logActivity(ctx, accountID, model.ActivityEmailCreated, address)
	return &mb, nil
}

func (s *MailboxService) owned(ctx context.Context, accountID, mailboxID string) (*model.Mailbox, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	mb, ok := a.FindMailbox(mailboxID)
	if !ok {
		return nil, fmt.Errorf("mailbox %s: %w", mailboxID, ErrNotFound)
	}
	return mb, nil
}

// List returns the account's mailboxes.
func (s *MailboxService) List(ctx context.Context, accountID string) ([]model.Mailbox, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.Mailboxes, nil
}

// Delete removes the mailbox from the panel and then from the account. A
// failed panel call leaves the account untouched.
func (s *MailboxService) Delete(ctx context.Context, accountID, mailboxID string) error {
	mb, err := s.owned(ctx, accountID, mailboxID)
	if err != nil {
		return err
	}

	if err := s.panel.DeleteMailbox(ctx, mb.Address).ErrOr("Failed to delete email account"); err != nil {
		return fmt.Errorf("delete mailbox %s: %w", mb.Address, err)
	}
	if _, err := s.accounts.RemoveMailbox(ctx, accountID, mb.Address); err != nil {
		return err
	}

	if err := s.usage.Clear(ctx, accountID, mb.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("mailbox_id", mb.ID).Msg("clear usage failed")
	}
	s.logActivity(ctx, accountID, model.ActivityEmailDeleted, mb.Address)
	return nil
}

// ChangePassword sets the password on the panel, then refreshes the stored
// credential hash.
func (s *MailboxService) ChangePassword(ctx context.Context, accountID, mailboxID, newPassword string) error {
	if newPassword == "" {
		return invalidf("new password is required")
	}
	mb, err := s.owned(ctx, accountID, mailboxID)
	if err != nil {
		return err
	}

	if err := s.panel.ChangePassword(ctx, mb.Address, newPassword).ErrOr("Failed to change password"); err != nil {
		return fmt.Errorf("change password of %s: %w", mb.Address, err)
	}
	s.logActivity(ctx, accountID, model.ActivityPasswordChanged, mb.Address)

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.accounts.UpdateMailbox(ctx, accountID, mailboxID, func(m *model.Mailbox) error {
		m.CredentialHash = hash
		return nil
	})
	return err
}

// AddExisting verifies the credentials of a mailbox that already exists on
// the mail server and attaches it to the account.
func (s *MailboxService) AddExisting(ctx context.Context, accountID, address, password string) (*model.Mailbox, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if _, err := CheckDomain(address, s.panel.Domain()); err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(ctx, address, password); err != nil {
		switch {
		case errors.Is(err, webmail.ErrInvalidAddress), errors.Is(err, webmail.ErrInvalidCredentials):
			return nil, invalidf("%s", err.Error())
		default:
			return nil, fmt.Errorf("verify %s: %w", address, err)
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	verified := true
	imap, smtp := webmail.ProtocolSettings(s.cfg.MailServer)
	mb := model.Mailbox{
		ID:             platform.NewName("mbx_"),
		Address:        address,
		CredentialHash: hash,
		QuotaMB:        DefaultAttachedQuotaMB,
		Active:         true,
		CreatedAt:      s.now().UTC(),
		Verified:       &verified,
		Incoming:       &imap,
		Outgoing:       &smtp,
	}

	info, err := s.panel.MailboxInfo(ctx, address)
	switch {
	case err != nil:
		zerolog.Ctx(ctx).Warn().Err(err).Str("address", address).Msg("panel lookup for attached mailbox failed")
	case info != nil:
		if info.QuotaMB > 0 {
			mb.QuotaMB = int(info.QuotaMB)
		}
		mb.SetUsage(int(info.DiskUsed))
		mb.Active = !info.Suspended
	}

	if _, err := s.accounts.AppendMailbox(ctx, accountID, mb); err != nil {
		return nil, err
	}
	s.logActivity(ctx, accountID, model.ActivityEmailAttached, address)
	if err := s.usage.Track(ctx, accountID, mb.ID, UsageLogins); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("mailbox_id", mb.ID).Msg("track login failed")
	}
	return &mb, nil
}

// SyncUsage copies quota, used storage and status from the panel onto the
// account's mailboxes. Used storage is clamped to the quota.
func (s *MailboxService) SyncUsage(ctx context.Context, accountID string) (*model.Account, error) {
	entries, err := s.panel.ListMailboxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync usage: %w", err)
	}
	byAddress := make(map[string]model.PanelEntry, len(entries))
	for _, e := range entries {
		byAddress[strings.ToLower(e.Email)] = e
	}

	return s.accounts.UpdateMailboxes(ctx, accountID, func(mbs []model.Mailbox) error {
		for i := range mbs {
			e, ok := byAddress[strings.ToLower(mbs[i].Address)]
			if !ok {
				continue
			}
			if e.Storage > 0 {
				mbs[i].QuotaMB = e.Storage
			}
			mbs[i].SetUsage(e.StorageUsed)
			mbs[i].Active = e.Status == model.StatusActive
		}
		return nil
	})
}

// Settings returns mail client settings for an owned mailbox.
func (s *MailboxService) Settings(ctx context.Context, accountID, mailboxID string) (*webmail.ClientSettings, error) {
	mb, err := s.owned(ctx, accountID, mailboxID)
	if err != nil {
		return nil, err
	}
	settings := webmail.Settings(s.cfg.MailServer, s.cfg.WebmailURL, mb.Address)
	return &settings, nil
}

// Usage returns the activity counters of an owned mailbox.
func (s *MailboxService) Usage(ctx context.Context, accountID, mailboxID string) (*model.MailboxUsage, error) {
	mb, err := s.owned(ctx, accountID, mailboxID)
	if err != nil {
		return nil, err
	}
	return s.usage.Get(ctx, accountID, mb.ID)
}

// Track counts usage against the account's mailbox with the given address.
// Addresses the account does not own are ignored.
func (s *MailboxService) Track(ctx context.Context, accountID, address, kind string) error {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	for _, mb := range a.Mailboxes {
		if strings.EqualFold(mb.Address, address) {
			return s.usage.Track(ctx, accountID, mb.ID, kind)
		}
	}
	return nil
}
