package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/digital-twin/client/internal/render"
	chatservice "github.com/zhouzirui/digital-twin/client/internal/service/chat"
	"github.com/zhouzirui/digital-twin/client/internal/service/responder"
)

type gatedResponder struct {
	release chan struct{}
}

func (g *gatedResponder) Chat(ctx context.Context, req responder.Request) (responder.Reply, error) {
	select {
	case <-g.release:
		return responder.Reply{SessionID: "abc123", Response: "echo: " + req.Message}, nil
	case <-ctx.Done():
		return responder.Reply{}, ctx.Err()
	}
}

type staticProbe bool

func (p staticProbe) Available(context.Context) bool { return bool(p) }

func setupRouter() (*chi.Mux, *chatservice.Controller, *gatedResponder) {
	gate := &gatedResponder{release: make(chan struct{})}
	controller := chatservice.NewController(gate)
	handler := New(controller, staticProbe(true))

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, controller, gate
}

func postMessage(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestGetConversationEmpty(t *testing.T) {
	r, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/conversation", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var view render.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.True(t, view.Empty)
	assert.False(t, view.Pending)
	assert.True(t, view.HasAvatar)
}

func TestSubmitAccepted(t *testing.T) {
	r, controller, gate := setupRouter()

	resp := postMessage(r, `{"message":"hello"}`)
	require.Equal(t, http.StatusAccepted, resp.Code)

	var view render.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "hello", view.Entries[0].Content)
	assert.True(t, view.Pending)

	close(gate.release)
	require.Eventually(t, func() bool { return !controller.Pending() }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, controller.Transcript(), 2)
}

func TestSubmitWhilePendingConflicts(t *testing.T) {
	r, controller, gate := setupRouter()
	defer close(gate.release)

	require.Equal(t, http.StatusAccepted, postMessage(r, `{"message":"first"}`).Code)
	assert.Equal(t, http.StatusConflict, postMessage(r, `{"message":"second"}`).Code)
	assert.Len(t, controller.Transcript(), 1)
}

func TestSubmitRejectsBlankAndInvalid(t *testing.T) {
	r, controller, _ := setupRouter()

	assert.Equal(t, http.StatusBadRequest, postMessage(r, `{"message":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, postMessage(r, `not json`).Code)
	assert.False(t, controller.HasEntries())
}

func TestWebSocketSubmitAndState(t *testing.T) {
	r, _, gate := setupRouter()
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readState := func() render.View {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame struct {
			Type string      `json:"type"`
			Data render.View `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		require.Equal(t, "state", frame.Type)
		return frame.Data
	}

	initial := readState()
	assert.True(t, initial.Empty)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "submit",
		"data": map[string]string{"message": "hi there"},
	}))

	pending := readState()
	require.Len(t, pending.Entries, 1)
	assert.True(t, pending.Pending)

	close(gate.release)

	done := readState()
	require.Len(t, done.Entries, 2)
	assert.Equal(t, "echo: hi there", done.Entries[1].Content)
	assert.False(t, done.Pending)
}

func TestWebSocketReportsErrors(t *testing.T) {
	r, controller, _ := setupRouter()
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readFrame := func() (string, json.RawMessage) {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		return frame.Type, frame.Data
	}

	kind, _ := readFrame()
	require.Equal(t, "state", kind)

	cases := []struct {
		frame map[string]any
		want  string
	}{
		{map[string]any{"type": "submit", "data": map[string]string{"message": "   "}}, "message is required"},
		{map[string]any{"type": "cancel"}, "unknown message type: cancel"},
	}
	for _, tc := range cases {
		require.NoError(t, conn.WriteJSON(tc.frame))

		kind, data := readFrame()
		require.Equal(t, "error", kind)

		var problem map[string]string
		require.NoError(t, json.Unmarshal(data, &problem))
		assert.Equal(t, tc.want, problem["message"])
	}

	assert.False(t, controller.HasEntries())
}
