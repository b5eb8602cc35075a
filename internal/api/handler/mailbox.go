package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/animxo/mailpanel/internal/api/middleware"
	"github.com/animxo/mailpanel/internal/api/request"
	"github.com/animxo/mailpanel/internal/api/response"
	"github.com/animxo/mailpanel/internal/core"
)

// Mailbox serves the signed-in user's own mailboxes.
type Mailbox struct {
	svc *core.MailboxService
}

func NewMailbox(svc *core.MailboxService) *Mailbox {
	return &Mailbox{svc: svc}
}

func (h *Mailbox) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	mailboxes, err := h.svc.List(r.Context(), claims.Subject)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"mailboxes": mailboxes})
}

// Create provisions a mailbox on the panel and records it on the account.
// Storage defaults to core.DefaultAttachedQuotaMB.
func (h *Mailbox) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	var req request.CreateMailbox
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Storage == 0 {
		req.Storage = core.DefaultAttachedQuotaMB
	}

	mb, err := h.svc.Create(r.Context(), claims.Subject, req.Email, req.Password, req.Storage, core.UserQuota)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "mailbox": mb})
}

// AddExisting verifies and attaches a mailbox that already exists.
func (h *Mailbox) AddExisting(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	var req request.AttachMailbox
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	mb, err := h.svc.AddExisting(r.Context(), claims.Subject, req.Email, req.Password)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "mailbox": mb})
}

func (h *Mailbox) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), claims.Subject, id); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, nil)
}

func (h *Mailbox) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.ChangeMailboxPassword
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.ChangePassword(r.Context(), claims.Subject, id, req.NewPassword); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, nil)
}

func (h *Mailbox) Settings(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	settings, err := h.svc.Settings(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"settings": settings})
}

func (h *Mailbox) Usage(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	usage, err := h.svc.Usage(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"usage": usage})
}

// Sync refreshes quota, usage and status from the panel.
func (h *Mailbox) Sync(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	account, err := h.svc.SyncUsage(r.Context(), claims.Subject)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"mailboxes": account.Mailboxes})
}
