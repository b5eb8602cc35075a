package handler

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/api/request"
	"github.com/animxo/mailpanel/internal/api/response"
	"github.com/animxo/mailpanel/internal/core"
	"github.com/animxo/mailpanel/internal/cpanel"
)

// Cpanel exposes the panel client directly. Panel failures are reported as
// 400 with the panel's message.
type Cpanel struct {
	client *cpanel.Client
}

func NewCpanel(client *cpanel.Client) *Cpanel {
	return &Cpanel{client: client}
}

func writeEnvelope(w http.ResponseWriter, env *cpanel.Envelope, fields map[string]any) {
	if err := env.Err(); err != nil {
		response.WriteError(w, http.StatusBadRequest, response.Message(err))
		return
	}
	response.WriteOK(w, fields)
}

func (h *Cpanel) CreateEmail(w http.ResponseWriter, r *http.Request) {
	var req request.PanelCreateEmail
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	username, _, qualified := strings.Cut(req.Email, "@")
	if username == "" {
		response.WriteError(w, http.StatusBadRequest, "Invalid email format")
		return
	}
	if qualified {
		if _, err := core.CheckDomain(req.Email, h.client.Domain()); err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	zerolog.Ctx(r.Context()).Info().Str("email", req.Email).Int("quota", req.Quota).Msg("creating email account")
	writeEnvelope(w, h.client.CreateMailbox(r.Context(), username, req.Password, req.Quota), nil)
}

func (h *Cpanel) DeleteEmail(w http.ResponseWriter, r *http.Request) {
	var req request.DeleteMailbox
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeEnvelope(w, h.client.DeleteMailbox(r.Context(), req.Email), nil)
}

func (h *Cpanel) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req request.PanelChangePassword
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeEnvelope(w, h.client.ChangePassword(r.Context(), req.Email, req.NewPassword), nil)
}

// EmailStats summarizes the mailboxes of the "domain" query parameter, or of
// the configured domain.
func (h *Cpanel) EmailStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.client.Stats(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, response.Message(err))
		return
	}
	response.WriteOK(w, map[string]any{"data": stats})
}

func (h *Cpanel) UpdateQuota(w http.ResponseWriter, r *http.Request) {
	var req request.PanelQuota
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeEnvelope(w, h.client.UpdateQuota(r.Context(), req.Email, req.Quota), nil)
}

func (h *Cpanel) Domains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.client.ListDomains(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, response.Message(err))
		return
	}
	response.WriteOK(w, map[string]any{"domains": domains})
}

func (h *Cpanel) DiskUsage(w http.ResponseWriter, r *http.Request) {
	data, err := h.client.DiskUsage(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, response.Message(err))
		return
	}
	response.WriteOK(w, map[string]any{"data": data})
}

func (h *Cpanel) CreateForwarder(w http.ResponseWriter, r *http.Request) {
	var req request.PanelForwarder
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeEnvelope(w, h.client.CreateForwarder(r.Context(), req.Email, req.Destination), nil)
}

func (h *Cpanel) DeleteForwarder(w http.ResponseWriter, r *http.Request) {
	var req request.DeleteMailbox
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeEnvelope(w, h.client.DeleteForwarder(r.Context(), req.Email), nil)
}

// Test probes panel connectivity; failures are 500.
func (h *Cpanel) Test(w http.ResponseWriter, r *http.Request) {
	if err := h.client.TestConnection(r.Context()).Err(); err != nil {
		response.WriteError(w, http.StatusInternalServerError, response.Message(err))
		return
	}
	response.WriteOK(w, map[string]any{"message": "cPanel API connection successful"})
}
