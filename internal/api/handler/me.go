package handler

import (
	"net/http"

	"github.com/animxo/mailpanel/internal/api/middleware"
	"github.com/animxo/mailpanel/internal/api/request"
	"github.com/animxo/mailpanel/internal/api/response"
	"github.com/animxo/mailpanel/internal/core"
)

type Me struct {
	accounts *core.AccountService
}

func NewMe(accounts *core.AccountService) *Me {
	return &Me{accounts: accounts}
}

// Get returns the signed-in user's profile.
func (h *Me) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	account, err := h.accounts.Get(r.Context(), claims.Subject)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"account": account})
}

// Update changes the display name.
func (h *Me) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	var req request.UpdateMe
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.accounts.Update(r.Context(), claims.Subject, core.AccountUpdate{DisplayName: req.DisplayName})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"account": account})
}
