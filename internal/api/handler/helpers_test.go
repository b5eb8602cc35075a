package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/animxo/mailpanel/internal/api/middleware"
	"github.com/animxo/mailpanel/internal/core"
	"github.com/animxo/mailpanel/internal/cpanel"
	"github.com/animxo/mailpanel/internal/model"
	"github.com/animxo/mailpanel/internal/webmail"
)

const okPanelReply = `{"result":{"data":null,"errors":null,"messages":[],"status":1}}`

// panelCall is one request the fake panel received.
type panelCall struct {
	Function string
	Form     url.Values
}

// testEnv wires real services to a mock database, miniredis and a fake
// panel served over HTTP.
type testEnv struct {
	db       *handlerMockDB
	rdb      *redis.Client
	panel    *cpanel.Client
	services *core.Services

	mu    sync.Mutex
	calls []panelCall
	// replies maps a panel function to its JSON body; unlisted functions
	// answer okPanelReply.
	replies map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	env := &testEnv{db: &handlerMockDB{}, rdb: rdb, replies: map[string]string{}}

	srv := httptest.NewServer(http.HandlerFunc(env.servePanel))
	t.Cleanup(srv.Close)

	env.panel = cpanel.NewClient(cpanel.Config{
		BaseURL: srv.URL,
		User:    "panel",
		Token:   "panel-token",
		Domain:  "example.com",
	})
	env.services = core.NewServices(env.db, rdb, env.panel, webmail.SimulatedVerifier{}, core.Config{
		Auth: core.AuthConfig{Secret: "handler-test-secret", Issuer: "mailpanel"},
		Mailbox: core.MailboxConfig{
			MailServer: "mail.example.com",
			WebmailURL: "https://webmail.example.com",
		},
	})
	return env
}

func (e *testEnv) servePanel(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	fn := path.Base(r.URL.Path)

	e.mu.Lock()
	e.calls = append(e.calls, panelCall{Function: fn, Form: r.PostForm})
	body, ok := e.replies[fn]
	e.mu.Unlock()

	if !ok {
		body = okPanelReply
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, body)
}

func (e *testEnv) reply(function, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies[function] = body
}

func (e *testEnv) panelCalls() []panelCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]panelCall(nil), e.calls...)
}

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withClaims signs the request in as id.
func withClaims(r *http.Request, id string, admin bool) *http.Request {
	claims := &model.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "tok-" + id,
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: id + "@example.com",
		Admin: admin,
	}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// sqlLike matches a query containing fragment.
func sqlLike(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

// accountRow fills the account column destinations.
func accountRow(a model.Account, mailboxes string) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = a.ID
		*(dest[1].(*string)) = a.Email
		*(dest[2].(*string)) = a.DisplayName
		*(dest[3].(*bool)) = a.IsAdmin
		*(dest[4].(*time.Time)) = a.CreatedAt
		*(dest[5].(*time.Time)) = a.UpdatedAt
		*(dest[6].(**time.Time)) = a.LastLogin
		*(dest[7].(**time.Time)) = a.RememberMeExpiresAt
		*(dest[8].(*[]byte)) = []byte(mailboxes)
		return nil
	}
}

func testAccount(id string) model.Account {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return model.Account{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: id,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// expectAccount answers every lookup of id with the account and mailboxes.
func (e *testEnv) expectAccount(a model.Account, mailboxes string) {
	e.db.On("QueryRow", mock.Anything, sqlLike("FROM accounts WHERE id = $1"), []any{a.ID}).
		Return(&handlerMockRow{scanFunc: accountRow(a, mailboxes)})
}

const aliceMailboxes = `[{"id":"mbx_a","address":"alice@example.com","quota_mb":100,"used_mb":10,"active":true,"created_at":"2026-05-01T10:00:00Z"}]`
