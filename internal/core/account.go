package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/model"
)

const accountColumns = `id, email, display_name, is_admin, created_at, updated_at, last_login, remember_me_expires_at, mailboxes`

// mailboxDoc is the stored form of a mailbox entry. The credential hash is
// persisted but never rendered by the API.
type mailboxDoc struct {
	model.Mailbox
	CredentialHash string `json:"credential_hash,omitempty"`
}

func encodeMailbox(m model.Mailbox) ([]byte, error) {
	return json.Marshal(mailboxDoc{Mailbox: m, CredentialHash: m.CredentialHash})
}

func encodeMailboxes(mbs []model.Mailbox) ([]byte, error) {
	docs := make([]mailboxDoc, len(mbs))
	for i, m := range mbs {
		docs[i] = mailboxDoc{Mailbox: m, CredentialHash: m.CredentialHash}
	}
	return json.Marshal(docs)
}

func decodeMailboxes(raw []byte) ([]model.Mailbox, error) {
	out := []model.Mailbox{}
	if len(raw) == 0 {
		return out, nil
	}
	var docs []mailboxDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		m := d.Mailbox
		m.CredentialHash = d.CredentialHash
		out = append(out, m)
	}
	return out, nil
}

func scanAccount(row scanner) (*model.Account, error) {
	var a model.Account
	var raw []byte
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.IsAdmin, &a.CreatedAt, &a.UpdatedAt,
		&a.LastLogin, &a.RememberMeExpiresAt, &raw); err != nil {
		return nil, err
	}
	mbs, err := decodeMailboxes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode mailboxes of %s: %w", a.ID, err)
	}
	a.Mailboxes = mbs
	return &a, nil
}

// AccountService stores account profiles in PostgreSQL, with the owned
// mailbox list kept in a JSONB column.
type AccountService struct {
	db      DB
	feed    *Feed
	adminID string
}

func NewAccountService(db DB, feed *Feed, adminID string) *AccountService {
	return &AccountService{db: db, feed: feed, adminID: adminID}
}

// IsAdmin reports whether the account is an administrator, either by its
// stored flag or as the designated administrator identity.
func (s *AccountService) IsAdmin(a *model.Account) bool {
	return a.IsAdmin || (s.adminID != "" && a.ID == s.adminID)
}

func (s *AccountService) notify(ctx context.Context, id string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Notify(ctx, accountChannel(id), accountsChannel); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("account_id", id).Msg("account notify failed")
	}
}

func (s *AccountService) Get(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

func (s *AccountService) Create(ctx context.Context, a *model.Account) error {
	if a.Mailboxes == nil {
		a.Mailboxes = []model.Mailbox{}
	}
	raw, err := encodeMailboxes(a.Mailboxes)
	if err != nil {
		return fmt.Errorf("encode mailboxes: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO accounts (id, email, display_name, is_admin, created_at, updated_at, last_login, remember_me_expires_at, mailboxes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Email, a.DisplayName, a.IsAdmin, a.CreatedAt, a.UpdatedAt, a.LastLogin, a.RememberMeExpiresAt, raw,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create account %s: %w", a.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	s.notify(ctx, a.ID)
	return nil
}

// AccountUpdate holds the mutable profile fields. Nil fields are unchanged.
type AccountUpdate struct {
	DisplayName *string
	IsAdmin     *bool
}

func (s *AccountService) Update(ctx context.Context, id string, u AccountUpdate) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx,
		`UPDATE accounts SET display_name = COALESCE($2, display_name), is_admin = COALESCE($3, is_admin), updated_at = now()
		 WHERE id = $1 RETURNING `+accountColumns,
		id, u.DisplayName, u.IsAdmin))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update account %s: %w", id, err)
	}

	s.notify(ctx, id)
	return a, nil
}

// Delete removes the account and its credentials. Administrators are refused
// with ErrAdminProtected.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.IsAdmin(a) {
		return fmt.Errorf("delete account %s: %w", id, ErrAdminProtected)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete account %s: %w", id, ErrNotFound)
	}

	s.notify(ctx, id)
	return nil
}

// List returns every account, newest first.
func (s *AccountService) List(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return collectAccounts(rows)
}

// Search returns accounts whose email starts with prefix.
func (s *AccountService) Search(ctx context.Context, prefix string, limit int) ([]model.Account, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) LIKE $1 ESCAPE '\' ORDER BY email LIMIT $2`,
		escapeLike(strings.ToLower(prefix))+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	return collectAccounts(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func collectAccounts(rows pgx.Rows) ([]model.Account, error) {
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// AppendMailbox adds m to the account's list unless an identical entry is
// already present.
func (s *AccountService) AppendMailbox(ctx context.Context, id string, m model.Mailbox) (*model.Account, error) {
	doc, err := encodeMailbox(m)
	if err != nil {
		return nil, fmt.Errorf("encode mailbox: %w", err)
	}

	a, err := scanAccount(s.db.QueryRow(ctx,
		`UPDATE accounts SET mailboxes = CASE
		     WHEN mailboxes @> jsonb_build_array($2::jsonb) THEN mailboxes
		     ELSE mailboxes || jsonb_build_array($2::jsonb) END,
		   updated_at = now()
		 WHERE id = $1 RETURNING `+accountColumns,
		id, doc))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("append mailbox to %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("append mailbox to %s: %w", id, err)
	}

	s.notify(ctx, id)
	return a, nil
}

// RemoveMailbox drops every entry with the given address.
func (s *AccountService) RemoveMailbox(ctx context.Context, id, address string) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx,
		`UPDATE accounts SET mailboxes = COALESCE(
		     (SELECT jsonb_agg(e) FROM jsonb_array_elements(mailboxes) e WHERE lower(e->>'address') <> lower($2)),
		     '[]'::jsonb),
		   updated_at = now()
		 WHERE id = $1 RETURNING `+accountColumns,
		id, address))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("remove mailbox from %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("remove mailbox from %s: %w", id, err)
	}

	s.notify(ctx, id)
	return a, nil
}

// UpdateMailboxes applies fn to the account's list and writes it back. The
// write is conditional on the account being unchanged since it was read.
func (s *AccountService) UpdateMailboxes(ctx context.Context, id string, fn func([]model.Mailbox) error) (*model.Account, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(a.Mailboxes); err != nil {
		return nil, err
	}
	raw, err := encodeMailboxes(a.Mailboxes)
	if err != nil {
		return nil, fmt.Errorf("encode mailboxes: %w", err)
	}

	updated, err := scanAccount(s.db.QueryRow(ctx,
		`UPDATE accounts SET mailboxes = $2, updated_at = now()
		 WHERE id = $1 AND updated_at = $3 RETURNING `+accountColumns,
		id, raw, a.UpdatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update mailboxes of %s: %w: account changed concurrently", id, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("update mailboxes of %s: %w", id, err)
	}

	s.notify(ctx, id)
	return updated, nil
}

// UpdateMailbox applies fn to the single entry with mailboxID.
func (s *AccountService) UpdateMailbox(ctx context.Context, id, mailboxID string, fn func(*model.Mailbox) error) (*model.Account, error) {
	return s.UpdateMailboxes(ctx, id, func(mbs []model.Mailbox) error {
		for i := range mbs {
			if mbs[i].ID == mailboxID {
				return fn(&mbs[i])
			}
		}
		return fmt.Errorf("mailbox %s: %w", mailboxID, ErrNotFound)
	})
}

// TouchLastLogin records a sign-in. rememberUntil is stored as the
// remember-me expiry, or cleared when nil.
func (s *AccountService) TouchLastLogin(ctx context.Context, id string, at time.Time, rememberUntil *time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE accounts SET last_login = $2, remember_me_expires_at = $3, updated_at = now() WHERE id = $1`,
		id, at, rememberUntil)
	if err != nil {
		return fmt.Errorf("touch last login %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch last login %s: %w", id, ErrNotFound)
	}
	s.notify(ctx, id)
	return nil
}

// RecentLogins returns the accounts that signed in most recently.
func (s *AccountService) RecentLogins(ctx context.Context, limit int) ([]model.LoginEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, email, display_name, last_login FROM accounts
		 WHERE last_login IS NOT NULL ORDER BY last_login DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent logins: %w", err)
	}
	defer rows.Close()

	var entries []model.LoginEntry
	for rows.Next() {
		var e model.LoginEntry
		if err := rows.Scan(&e.ID, &e.Email, &e.DisplayName, &e.LastLogin); err != nil {
			return nil, fmt.Errorf("scan login entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login entries: %w", err)
	}
	return entries, nil
}

// SubscribeAccount delivers the account now and after every change. fn
// receives nil once the account no longer exists.
func (s *AccountService) SubscribeAccount(ctx context.Context, id string, fn func(*model.Account)) (*Subscription, error) {
	return s.feed.Watch(ctx, func(ctx context.Context) error {
		a, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			fn(nil)
			return nil
		}
		if err != nil {
			return err
		}
		fn(a)
		return nil
	}, accountChannel(id))
}

// SubscribeAccounts delivers the full account list now and after every
// change to any account.
func (s *AccountService) SubscribeAccounts(ctx context.Context, fn func([]model.Account)) (*Subscription, error) {
	return s.feed.Watch(ctx, func(ctx context.Context) error {
		accounts, err := s.List(ctx)
		if err != nil {
			return err
		}
		if accounts == nil {
			accounts = []model.Account{}
		}
		fn(accounts)
		return nil
	}, accountsChannel)
}
