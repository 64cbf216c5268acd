package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/digital-twin/client/internal/handler/chat"
	"github.com/zhouzirui/digital-twin/client/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/digital-twin/client/internal/middleware"
	"github.com/zhouzirui/digital-twin/client/internal/service/asset"
	chatService "github.com/zhouzirui/digital-twin/client/internal/service/chat"
	"github.com/zhouzirui/digital-twin/client/pkg/utils"
)

// NewRouter wires the local bridge routes to the conversation controller.
func NewRouter(controller *chatService.Controller, probe *asset.Probe, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	if probe == nil {
		probe = asset.NewProbe("", nil)
	}

	chatHandler := chat.New(controller, probe)
	streamHandler := stream.New(controller, probe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
