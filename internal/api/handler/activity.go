package handler

import (
	"context"
	"net/http"

	"github.com/animxo/mailpanel/internal/api/middleware"
	"github.com/animxo/mailpanel/internal/api/request"
	"github.com/animxo/mailpanel/internal/api/response"
	"github.com/animxo/mailpanel/internal/core"
	"github.com/animxo/mailpanel/internal/model"
)

type Activity struct {
	svc     *core.ActivityService
	origins []string
}

func NewActivity(svc *core.ActivityService, origins []string) *Activity {
	return &Activity{svc: svc, origins: origins}
}

// List returns the newest activity entries, "limit" of them (default 10).
func (h *Activity) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}

	events, err := h.svc.Recent(r.Context(), claims.Subject, request.Limit(r, core.DefaultActivityLimit))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteOK(w, map[string]any{"activities": events})
}

// Stream pushes the activity list over a WebSocket whenever it changes.
func (h *Activity) Stream(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	limit := request.Limit(r, core.DefaultActivityLimit)

	stream(w, r, h.origins, func(ctx context.Context, push func(any)) (*core.Subscription, error) {
		return h.svc.Subscribe(ctx, claims.Subject, limit, func(events []model.ActivityEvent) {
			push(map[string]any{"activities": events})
		})
	})
}
