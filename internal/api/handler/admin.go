package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/animxo/mailpanel/internal/api/request"
	"github.com/animxo/mailpanel/internal/api/response"
	"github.com/animxo/mailpanel/internal/core"
	"github.com/animxo/mailpanel/internal/cpanel"
	"github.com/animxo/mailpanel/internal/model"
)

const defaultRecentLogins = 10

// Admin serves the administrator dashboard.
type Admin struct {
	panel     *cpanel.Client
	mailboxes *core.MailboxService
	accounts  *core.AccountService
	auth      *core.AuthService
	stats     *core.StatsService
	origins   []string
}

func NewAdmin(panel *cpanel.Client, services *core.Services, origins []string) *Admin {
	return &Admin{
		panel:     panel,
		mailboxes: services.Mailbox,
		accounts:  services.Account,
		auth:      services.Auth,
		stats:     services.Stats,
		origins:   origins,
	}
}

// ---------- Mailboxes ----------

// ListEmails returns every mailbox of the configured domain as the panel
// reports it. A panel failure is logged and renders an empty list.
func (h *Admin) ListEmails(w http.ResponseWriter, r *http.Request) {
	entries, err := h.panel.ListMailboxes(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list panel mailboxes failed")
	}
	if entries == nil {
		entries = []model.PanelEntry{}
	}
	response.WriteOK(w, map[string]any{"accounts": entries})
}

// writeAdminMailboxError reports validation problems as 400 and everything
// else as 500.
func writeAdminMailboxError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, core.ErrValidation) {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg := fallback
	var apiErr *cpanel.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	response.WriteError(w, http.StatusInternalServerError, msg)
}

// CreateEmail provisions a mailbox that belongs to no account. The quota
// must be within core.AdminQuota.
func (h *Admin) CreateEmail(w http.ResponseWriter, r *http.Request) {
	var req request.CreateMailbox
	if err := request.Decode(r, &req); err != nil || req.Storage == 0 {
		response.WriteError(w, http.StatusBadRequest, "Email, password, and storage are required")
		return
	}
	address := strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.mailboxes.Provision(r.Context(), address, req.Password, req.Storage, core.AdminQuota); err != nil {
		writeAdminMailboxError(w, err, "Failed to create email account")
		return
	}
	response.WriteOK(w, map[string]any{"message": fmt.Sprintf("Email account %s created successfully", address)})
}

func (h *Admin) DeleteEmail(w http.ResponseWriter, r *http.Request) {
	var req request.DeleteMailbox
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "Email is required")
		return
	}
	address := strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.mailboxes.Deprovision(r.Context(), address); err != nil {
		writeAdminMailboxError(w, err, "Failed to delete email account")
		return
	}
	response.WriteOK(w, map[string]any{"message": fmt.Sprintf("Email account %s deleted successfully", address)})
}

// ---------- Accounts ----------

// ListAccounts returns all accounts, or those whose email starts with q.
func (h *Admin) ListAccounts(w http.ResponseWriter, r *http.Request) {
	var (
		accounts []model.Account
		err      error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		accounts, err = h.accounts.Search(r.Context(), q, request.Limit(r, 50))
	} else {
		accounts, err = h.accounts.List(r.Context())
	}
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	response.WriteOK(w, map[string]any{"accounts": accounts})
}

func (h *Admin) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req request.CreateAccount
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.auth.Register(r.Context(), req.Email, req.Password, req.DisplayName, req.IsAdmin)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "account": account})
}

func (h *Admin) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateAccount
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.accounts.Update(r.Context(), id, core.AccountUpdate{DisplayName: req.DisplayName, IsAdmin: req.IsAdmin})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"account": account})
}

// DeleteAccount removes an account and its credentials. Administrators are
// protected.
func (h *Admin) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accounts.Delete(r.Context(), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, nil)
}

// AccountsStream pushes the full account list whenever any account changes.
func (h *Admin) AccountsStream(w http.ResponseWriter, r *http.Request) {
	stream(w, r, h.origins, func(ctx context.Context, push func(any)) (*core.Subscription, error) {
		return h.accounts.SubscribeAccounts(ctx, func(accounts []model.Account) {
			push(map[string]any{"accounts": accounts})
		})
	})
}

// ---------- Stats ----------

// Stats returns the cached aggregate counts together with the panel's
// mailbox summary. A panel failure leaves "panel" null and sets
// "panel_error".
func (h *Admin) Stats(w http.ResponseWriter, r *http.Request) {
	var (
		stats    *model.SystemStats
		panel    *model.PanelStats
		panelErr error
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		stats, err = h.stats.Get(ctx)
		return err
	})
	g.Go(func() error {
		panel, panelErr = h.panel.Stats(ctx, "")
		return nil
	})
	if err := g.Wait(); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	body := map[string]any{"stats": stats, "panel": panel}
	if panelErr != nil {
		zerolog.Ctx(r.Context()).Warn().Err(panelErr).Msg("panel stats unavailable")
		body["panel_error"] = response.Message(panelErr)
	}
	response.WriteOK(w, body)
}

// RefreshStats recomputes the aggregate counts now.
func (h *Admin) RefreshStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Refresh(r.Context())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"stats": stats})
}

func (h *Admin) RecentLogins(w http.ResponseWriter, r *http.Request) {
	logins, err := h.accounts.RecentLogins(r.Context(), request.Limit(r, defaultRecentLogins))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if logins == nil {
		logins = []model.LoginEntry{}
	}
	response.WriteOK(w, map[string]any{"logins": logins})
}
