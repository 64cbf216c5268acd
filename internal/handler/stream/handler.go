package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/digital-twin/client/internal/model/chat"
	"github.com/zhouzirui/digital-twin/client/internal/render"
	"github.com/zhouzirui/digital-twin/client/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Source is the controller surface the stream reads from.
type Source interface {
	Snapshot() chat.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// AssetProbe reports whether the avatar can be shown.
type AssetProbe interface {
	Available(ctx context.Context) bool
}

// Handler pushes conversation state to browsers via Server-Sent Events.
type Handler struct {
	source    Source
	assets    AssetProbe
	heartbeat time.Duration
}

// New creates a new stream handler.
func New(source Source, assets AssetProbe) *Handler {
	return &Handler{source: source, assets: assets, heartbeat: defaultHeartbeat}
}

// RegisterRoutes mounts the stream endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation/stream", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	updates, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	log.Debug().Msg("[sse] stream opened")
	if err := h.sendState(ctx, w, flusher); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("[sse] stream closed")
			return
		case <-updates:
			if err := h.sendState(ctx, w, flusher); err != nil {
				log.Debug().Err(err).Msg("[sse] write failed")
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) sendState(ctx context.Context, w http.ResponseWriter, flusher http.Flusher) error {
	hasAvatar := false
	if h.assets != nil {
		hasAvatar = h.assets.Available(ctx)
	}
	return utils.SendSSEEvent(w, flusher, "state", render.NewView(h.source.Snapshot(), hasAvatar))
}
