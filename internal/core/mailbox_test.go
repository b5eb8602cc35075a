package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/animxo/mailpanel/internal/cpanel"
	"github.com/animxo/mailpanel/internal/model"
	"github.com/animxo/mailpanel/internal/webmail"
)

// fakePanel is an in-memory hosting panel.
type fakePanel struct {
	mu        sync.Mutex
	domain    string
	mailboxes map[string]int
	calls     []string
	failWith  string
	info      *cpanel.PanelMailbox
	entries   []model.PanelEntry
}

func newFakePanel(domain string) *fakePanel {
	return &fakePanel{domain: domain, mailboxes: map[string]int{}}
}

func (p *fakePanel) record(call string) *cpanel.Envelope {
	p.calls = append(p.calls, call)
	if p.failWith != "" {
		return &cpanel.Envelope{Status: http.StatusOK, Errors: []string{p.failWith}}
	}
	return &cpanel.Envelope{Status: http.StatusOK, Errors: []string{}}
}

func (p *fakePanel) Domain() string { return p.domain }

func (p *fakePanel) CreateMailbox(_ context.Context, username, _ string, quotaMB int) *cpanel.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := p.record("create " + username)
	if env.OK() {
		p.mailboxes[username+"@"+p.domain] = quotaMB
	}
	return env
}

func (p *fakePanel) DeleteMailbox(_ context.Context, identifier string) *cpanel.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := p.record("delete " + identifier)
	if !env.OK() {
		return env
	}
	if _, ok := p.mailboxes[identifier]; !ok {
		return &cpanel.Envelope{Status: http.StatusOK, Errors: []string{"The account does not exist."}}
	}
	delete(p.mailboxes, identifier)
	return env
}

func (p *fakePanel) ChangePassword(_ context.Context, address, _ string) *cpanel.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record("passwd " + address)
}

func (p *fakePanel) ListMailboxes(context.Context) ([]model.PanelEntry, error) {
	return p.entries, nil
}

func (p *fakePanel) MailboxInfo(context.Context, string) (*cpanel.PanelMailbox, error) {
	return p.info, nil
}

func newTestMailboxService(t *testing.T, db *mockDB, panel *fakePanel) (*MailboxService, *ActivityService) {
	t.Helper()
	rdb, _ := newTestRedis(t)
	feed := NewFeed(rdb)
	accounts := NewAccountService(db, feed, "")
	activity := NewActivityService(rdb, feed)
	svc := NewMailboxService(panel, accounts, activity, NewUsageService(rdb), webmail.SimulatedVerifier{},
		MailboxConfig{MailServer: "mail.example.com", WebmailURL: "https://webmail.example.com"})
	return svc, activity
}

// ---------- Validation before upstream ----------

func TestMailboxService_Create_RejectsForeignDomain(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	svc, _ := newTestMailboxService(t, db, panel)

	_, err := svc.Create(context.Background(), "acct-1", "alice@other.org", "pw123456", 100, UserQuota)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, panel.calls)
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestMailboxService_Create_QuotaBounds(t *testing.T) {
	panel := newFakePanel("example.com")
	svc, _ := newTestMailboxService(t, &mockDB{}, panel)
	ctx := context.Background()

	_, err := svc.Create(ctx, "acct-1", "alice@example.com", "pw123456", 10001, AdminQuota)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, "acct-1", "alice@example.com", "pw123456", 0, UserQuota)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, "acct-1", "alice@example.com", "pw123456", 50001, UserQuota)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, panel.calls)
}

// ---------- Create ----------

func TestMailboxService_Create_Success(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	svc, activity := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	var stored map[string]any
	db.On("QueryRow", ctx, sqlLike("jsonb_build_array"), mock.MatchedBy(func(args []any) bool {
		return jsonArg(args, 1, &stored)
	})).Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), `[]`)})

	mb, err := svc.Create(ctx, "acct-1", "Alice@Example.com", "pw123456", 2000, UserQuota)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", mb.Address)
	assert.True(t, strings.HasPrefix(mb.ID, "mbx_"))
	assert.Equal(t, 2000, mb.QuotaMB)
	assert.True(t, mb.Active)

	assert.Equal(t, []string{"create alice"}, panel.calls)
	assert.NotEqual(t, "pw123456", stored["credential_hash"])
	assert.True(t, VerifyPassword("pw123456", stored["credential_hash"].(string)))

	events, err := activity.Recent(ctx, "acct-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.ActivityEmailCreated, events[0].Action)
	assert.Equal(t, "alice@example.com", events[0].Data["email"])
}

func TestMailboxService_Create_PanelFailure(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	panel.failWith = "Sorry, the account already exists."
	svc, _ := newTestMailboxService(t, db, panel)

	_, err := svc.Create(context.Background(), "acct-1", "alice@example.com", "pw123456", 100, UserQuota)
	require.Error(t, err)
	var apiErr *cpanel.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Sorry, the account already exists.", apiErr.Message)
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestMailboxService_Create_RollsBackPanelOnStoreFailure(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	svc, _ := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return errors.New("db down") }})

	_, err := svc.Create(ctx, "acct-1", "alice@example.com", "pw123456", 100, UserQuota)
	require.Error(t, err)
	assert.Equal(t, []string{"create alice", "delete alice@example.com"}, panel.calls)
	assert.Empty(t, panel.mailboxes)
}

// ---------- Delete ----------

const aliceMailboxes = `[{"id":"mbx_a","address":"alice@example.com","quota_mb":100,"active":true}]`

func TestMailboxService_Delete_FailureLeavesListUnchanged(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	svc, activity := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlLike("SELECT"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), aliceMailboxes)})

	// alice exists on the account but not on the panel.
	err := svc.Delete(ctx, "acct-1", "mbx_a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	db.AssertNumberOfCalls(t, "QueryRow", 1)
	events, _ := activity.Recent(ctx, "acct-1", 10)
	assert.Empty(t, events)
}

func TestMailboxService_Delete_UnknownMailbox(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	svc, _ := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), aliceMailboxes)})

	err := svc.Delete(ctx, "acct-1", "mbx_zzz")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, panel.calls)
}

func TestMailboxService_CreateThenDelete_RoundTrip(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	svc, activity := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	var created map[string]any
	db.On("QueryRow", ctx, sqlLike("jsonb_build_array"), mock.MatchedBy(func(args []any) bool {
		return jsonArg(args, 1, &created)
	})).Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), aliceMailboxes)})

	mb, err := svc.Create(ctx, "acct-1", "alice@example.com", "pw123456", 100, UserQuota)
	require.NoError(t, err)

	withNew := `[{"id":"` + mb.ID + `","address":"alice@example.com","quota_mb":100,"active":true}]`
	db.On("QueryRow", ctx, sqlLike("FROM accounts WHERE id = $1"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), withNew)})
	db.On("QueryRow", ctx, sqlLike("jsonb_array_elements"), []any{"acct-1", "alice@example.com"}).
		Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), `[]`)})

	require.NoError(t, svc.Delete(ctx, "acct-1", mb.ID))
	assert.Empty(t, panel.mailboxes)

	events, err := activity.Recent(ctx, "acct-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.ActivityEmailDeleted, events[0].Action)
	assert.Equal(t, model.ActivityEmailCreated, events[1].Action)
	db.AssertExpectations(t)
}

// ---------- ChangePassword ----------

func TestMailboxService_ChangePassword(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	svc, activity := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	a := testAccount("acct-1")
	db.On("QueryRow", ctx, sqlLike("SELECT"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(a, aliceMailboxes)})

	var written []map[string]any
	db.On("QueryRow", ctx, sqlLike("updated_at = $3"), mock.MatchedBy(func(args []any) bool {
		return jsonArg(args, 1, &written)
	})).Return(&mockRow{scanFunc: accountScan(a, aliceMailboxes)})

	require.NoError(t, svc.ChangePassword(ctx, "acct-1", "mbx_a", "n3w-password"))
	assert.Equal(t, []string{"passwd alice@example.com"}, panel.calls)
	require.Len(t, written, 1)
	assert.True(t, VerifyPassword("n3w-password", written[0]["credential_hash"].(string)))

	events, _ := activity.Recent(ctx, "acct-1", 10)
	require.Len(t, events, 1)
	assert.Equal(t, model.ActivityPasswordChanged, events[0].Action)
}

func TestMailboxService_ChangePassword_PanelFailure(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	panel.failWith = "weak password"
	svc, _ := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlLike("SELECT"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), aliceMailboxes)})

	err := svc.ChangePassword(ctx, "acct-1", "mbx_a", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weak password")
	db.AssertNumberOfCalls(t, "QueryRow", 1)
}

// ---------- AddExisting ----------

func TestMailboxService_AddExisting(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	panel.info = &cpanel.PanelMailbox{Email: "bob@example.com", QuotaMB: 500, DiskUsed: 620}
	svc, _ := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	db.On("QueryRow", ctx, sqlLike("jsonb_build_array"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), `[]`)})

	mb, err := svc.AddExisting(ctx, "acct-1", "bob@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, 500, mb.QuotaMB)
	assert.Equal(t, 500, mb.UsedMB)
	require.NotNil(t, mb.Verified)
	assert.True(t, *mb.Verified)
	assert.Equal(t, 993, mb.Incoming.Port)
	assert.Equal(t, "mail.example.com", mb.Outgoing.Server)

	usage, err := svc.usage.Get(ctx, "acct-1", mb.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Logins)
}

func TestMailboxService_AddExisting_BadCredentials(t *testing.T) {
	panel := newFakePanel("example.com")
	svc, _ := newTestMailboxService(t, &mockDB{}, panel)

	_, err := svc.AddExisting(context.Background(), "acct-1", "bob@example.com", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Invalid email credentials", err.Error())
}

// ---------- SyncUsage / Settings ----------

func TestMailboxService_SyncUsage(t *testing.T) {
	db := &mockDB{}
	panel := newFakePanel("example.com")
	panel.entries = []model.PanelEntry{
		{Email: "alice@example.com", Storage: 100, StorageUsed: 150, Status: model.StatusSuspended},
		{Email: "carol@example.com", Storage: 50, StorageUsed: 5, Status: model.StatusActive},
	}
	svc, _ := newTestMailboxService(t, db, panel)
	ctx := context.Background()

	a := testAccount("acct-1")
	db.On("QueryRow", ctx, sqlLike("SELECT"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(a, aliceMailboxes)})

	var written []model.Mailbox
	db.On("QueryRow", ctx, sqlLike("updated_at = $3"), mock.MatchedBy(func(args []any) bool {
		return jsonArg(args, 1, &written)
	})).Return(&mockRow{scanFunc: accountScan(a, aliceMailboxes)})

	_, err := svc.SyncUsage(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, 100, written[0].UsedMB)
	assert.False(t, written[0].Active)
	assert.NoError(t, written[0].Validate())
}

func TestMailboxService_Settings(t *testing.T) {
	db := &mockDB{}
	svc, _ := newTestMailboxService(t, db, newFakePanel("example.com"))
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), aliceMailboxes)})

	settings, err := svc.Settings(ctx, "acct-1", "mbx_a")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", settings.Username)
	assert.Equal(t, "https://webmail.example.com/?login=alice%40example.com", settings.WebmailURL)
}

func TestMailboxService_Track(t *testing.T) {
	db := &mockDB{}
	svc, _ := newTestMailboxService(t, db, newFakePanel("example.com"))
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: accountScan(testAccount("acct-1"), aliceMailboxes)})

	require.NoError(t, svc.Track(ctx, "acct-1", "ALICE@example.com", UsageSent))
	require.NoError(t, svc.Track(ctx, "acct-1", "stranger@example.com", UsageSent))

	usage, err := svc.Usage(ctx, "acct-1", "mbx_a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Sent)
}
