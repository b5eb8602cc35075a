package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/api/middleware"
	"github.com/animxo/mailpanel/internal/api/request"
	"github.com/animxo/mailpanel/internal/api/response"
	"github.com/animxo/mailpanel/internal/core"
	"github.com/animxo/mailpanel/internal/webmail"
)

// Email serves the mail endpoints. Folders, messages and sending are
// placeholders; credential verification uses the configured verifier.
type Email struct {
	verifier   webmail.Verifier
	mailboxes  *core.MailboxService
	mailServer string
	now        func() time.Time
}

func NewEmail(verifier webmail.Verifier, mailboxes *core.MailboxService, mailServer string) *Email {
	return &Email{verifier: verifier, mailboxes: mailboxes, mailServer: mailServer, now: time.Now}
}

func (h *Email) Folders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("email") == "" {
		response.WriteError(w, http.StatusBadRequest, "Email is required")
		return
	}
	response.WriteOK(w, map[string]any{"folders": webmail.Folders()})
}

func (h *Email) Messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	address := q.Get("email")
	if address == "" {
		response.WriteError(w, http.StatusBadRequest, "Email is required")
		return
	}

	msgs := webmail.Messages(address, q.Get("folder"), request.Limit(r, webmail.DefaultMessageLimit), h.now())
	response.WriteOK(w, map[string]any{"messages": msgs, "total": len(msgs)})
}

// Send accepts a message without delivering it and counts it against the
// sender's mailbox when the caller owns it.
func (h *Email) Send(w http.ResponseWriter, r *http.Request) {
	var msg webmail.Outgoing
	if err := request.Decode(r, &msg); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := webmail.Send(r.Context(), msg, h.now())

	if claims := middleware.GetClaims(r.Context()); claims != nil {
		if err := h.mailboxes.Track(r.Context(), claims.Subject, msg.From, core.UsageSent); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("track sent message failed")
		}
	}

	response.WriteOK(w, map[string]any{
		"message":    "Email sent successfully",
		"message_id": id,
	})
}

// Verify checks mailbox credentials and returns the client settings.
func (h *Email) Verify(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyEmail
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.verifier.Verify(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, webmail.ErrInvalidAddress), errors.Is(err, webmail.ErrInvalidCredentials):
		response.WriteError(w, http.StatusUnauthorized, webmail.ErrInvalidCredentials.Error())
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("credential verification failed")
		response.WriteError(w, http.StatusInternalServerError, "Failed to verify email credentials")
		return
	}

	imap, smtp := webmail.ProtocolSettings(h.mailServer)
	response.WriteOK(w, map[string]any{
		"message":  "Email credentials verified successfully",
		"settings": map[string]any{"imap": imap, "smtp": smtp},
	})
}

// IMAPVerify is the low-level probe. It always answers 200 and reports the
// outcome in the body.
func (h *Email) IMAPVerify(w http.ResponseWriter, r *http.Request) {
	var req request.IMAPVerify
	if err := request.Decode(r, &req); err != nil {
		response.WriteJSON(w, http.StatusOK, response.ErrorResponse{Error: err.Error()})
		return
	}

	err := h.verifier.Verify(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		response.WriteOK(w, nil)
	case errors.Is(err, webmail.ErrInvalidCredentials):
		response.WriteJSON(w, http.StatusOK, response.ErrorResponse{Error: "Authentication failed"})
	default:
		response.WriteJSON(w, http.StatusOK, response.ErrorResponse{Error: err.Error()})
	}
}
