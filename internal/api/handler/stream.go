package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/core"
)

const streamWriteTimeout = 10 * time.Second

// subscribeFunc starts a subscription whose callback pushes a snapshot.
type subscribeFunc func(ctx context.Context, push func(v any)) (*core.Subscription, error)

// stream upgrades to a WebSocket and pushes every snapshot the subscription
// produces until the client goes away or the subscription ends. Client
// messages are discarded.
func stream(w http.ResponseWriter, r *http.Request, origins []string, subscribe subscribeFunc) {
	log := zerolog.Ctx(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	push := func(v any) {
		wctx, wcancel := context.WithTimeout(ctx, streamWriteTimeout)
		defer wcancel()
		if err := wsjson.Write(wctx, conn, v); err != nil {
			log.Debug().Err(err).Msg("stream write failed")
			cancel()
		}
	}

	sub, err := subscribe(ctx, push)
	if err != nil {
		log.Error().Err(err).Msg("stream subscribe failed")
		conn.Close(websocket.StatusInternalError, "subscription failed")
		return
	}
	defer sub.Close()

	select {
	case <-ctx.Done():
	case <-sub.Done():
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
