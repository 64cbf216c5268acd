package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	model "github.com/zhouzirui/digital-twin/client/internal/model/chat"
	"github.com/zhouzirui/digital-twin/client/internal/render"
	"github.com/zhouzirui/digital-twin/client/pkg/utils"
)

// Conversation is the controller surface the handlers drive.
type Conversation interface {
	Submit(ctx context.Context, utterance string) (<-chan struct{}, bool)
	Snapshot() model.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// AssetProbe reports whether the avatar can be shown.
type AssetProbe interface {
	Available(ctx context.Context) bool
}

// Handler 会话状态的HTTP处理器
type Handler struct {
	conv     Conversation
	assets   AssetProbe
	upgrader websocket.Upgrader
}

// New 创建会话处理器
func New(conv Conversation, assets AssetProbe) *Handler {
	return &Handler{
		conv:   conv,
		assets: assets,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation", h.handleGetConversation)
	r.Post("/messages", h.handleSubmit)
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) view(ctx context.Context) render.View {
	hasAvatar := false
	if h.assets != nil {
		hasAvatar = h.assets.Available(ctx)
	}
	return render.NewView(h.conv.Snapshot(), hasAvatar)
}

// handleGetConversation 返回当前会话视图
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.view(r.Context()))
}

// handleSubmit 提交一条用户消息
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	if _, ok := h.conv.Submit(r.Context(), payload.Message); !ok {
		utils.RespondError(w, http.StatusConflict, "a reply is still pending")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, h.view(r.Context()))
}
