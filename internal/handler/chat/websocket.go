package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type submitMessage struct {
	Message string `json:"message"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 推送会话状态并接收提交
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, unsubscribe := h.conv.Subscribe()
	defer unsubscribe()

	problems := make(chan string, 4)
	readDone := make(chan struct{})
	go h.readLoop(conn, problems, readDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := writeFrame(conn, "state", h.view(ctx)); err != nil {
		return
	}

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-updates:
			if err := writeFrame(conn, "state", h.view(ctx)); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case problem := <-problems:
			if err := writeFrame(conn, "error", map[string]string{"message": problem}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, problems chan<- string, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}

		switch msg.Type {
		case "submit":
			var payload submitMessage
			if err := json.Unmarshal(msg.Data, &payload); err != nil || strings.TrimSpace(payload.Message) == "" {
				report(problems, "message is required")
				continue
			}
			// The controller ignores submissions while a reply is pending; the
			// client learns the outcome from the next state frame.
			h.conv.Submit(context.Background(), payload.Message)
		default:
			report(problems, "unknown message type: "+msg.Type)
		}
	}
}

func report(problems chan<- string, problem string) {
	select {
	case problems <- problem:
	default:
	}
}

func writeFrame(conn *websocket.Conn, kind string, data interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(outgoingMessage{
		Type:      kind,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}
