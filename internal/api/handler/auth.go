package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/animxo/mailpanel/internal/api/middleware"
	"github.com/animxo/mailpanel/internal/api/request"
	"github.com/animxo/mailpanel/internal/api/response"
	"github.com/animxo/mailpanel/internal/core"
)

type Auth struct {
	svc          *core.AuthService
	secureCookie bool
}

// NewAuth creates the sign-in handler. secureCookie marks the session cookie
// Secure; it is off only for plain-HTTP development.
func NewAuth(svc *core.AuthService, secureCookie bool) *Auth {
	return &Auth{svc: svc, secureCookie: secureCookie}
}

// Login signs a user in and sets the session cookie. With remember_me the
// cookie persists until the token expires; otherwise it is a browser-session
// cookie.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req request.Login
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.svc.SignIn(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			response.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		response.WriteServiceError(w, err)
		return
	}

	cookie := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if sess.Remember {
		cookie.Expires = sess.ExpiresAt
		cookie.MaxAge = int(time.Until(sess.ExpiresAt).Seconds())
	}
	http.SetCookie(w, cookie)

	response.WriteOK(w, map[string]any{"session": sess})
}

// Logout revokes the current token and clears the cookie.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.SignOut(r.Context(), middleware.GetClaims(r.Context()))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	response.WriteOK(w, map[string]any{"session": sess})
}
