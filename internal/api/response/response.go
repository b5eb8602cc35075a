package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/animxo/mailpanel/internal/core"
	"github.com/animxo/mailpanel/internal/cpanel"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: message})
}

// WriteOK writes {"success": true} merged with fields.
func WriteOK(w http.ResponseWriter, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	WriteJSON(w, http.StatusOK, body)
}

// ServiceStatus maps an error from the service layer to an HTTP status.
func ServiceStatus(err error) int {
	var apiErr *cpanel.APIError
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden), errors.Is(err, core.ErrAdminProtected):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, cpanel.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusBadRequest {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError writes err with the status ServiceStatus picks. Internal
// errors are reported without detail.
func WriteServiceError(w http.ResponseWriter, err error) {
	status := ServiceStatus(err)
	if status == http.StatusInternalServerError {
		WriteError(w, status, "internal server error")
		return
	}
	WriteError(w, status, Message(err))
}

// Message returns the user-facing text of err. Panel failures report the
// panel's own message rather than the wrapped chain.
func Message(err error) string {
	var apiErr *cpanel.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
