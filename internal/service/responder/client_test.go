package responder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/digital-twin/client/internal/service/responder"
)

func TestChatSendsMessageWithoutSessionOnFirstTurn(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"session_id":"abc123","response":"I have 3 years..."}`))
	}))
	defer srv.Close()

	client := responder.NewClient(srv.URL + "/")
	reply, err := client.Chat(context.Background(), responder.Request{Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "abc123", reply.SessionID)
	assert.Equal(t, "I have 3 years...", reply.Response)
	assert.Equal(t, "hello", got["message"])
	_, hasSession := got["session_id"]
	assert.False(t, hasSession, "session_id must be omitted when unknown")
}

func TestChatCarriesSessionID(t *testing.T) {
	var got responder.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"session_id":"abc123","response":"more"}`))
	}))
	defer srv.Close()

	_, err := responder.NewClient(srv.URL).Chat(context.Background(), responder.Request{Message: "Tell me more", SessionID: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.SessionID)
}

func TestChatNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := responder.NewClient(srv.URL).Chat(context.Background(), responder.Request{Message: "ping"})
	require.Error(t, err)

	var statusErr *responder.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestChatMalformedReplies(t *testing.T) {
	bodies := map[string]string{
		"not json":        `<html>`,
		"missing session": `{"response":"hi"}`,
		"blank session":   `{"session_id":"  ","response":"hi"}`,
		"missing reply":   `{"session_id":"abc"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := responder.NewClient(srv.URL).Chat(context.Background(), responder.Request{Message: "ping"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, responder.ErrMalformedReply), "got %v", err)
		})
	}
}

func TestChatConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := responder.NewClient(url).Chat(context.Background(), responder.Request{Message: "ping"})
	assert.Error(t, err)
}

func TestChatTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := responder.NewClient(srv.URL, responder.WithTimeout(50*time.Millisecond))
	_, err := client.Chat(context.Background(), responder.Request{Message: "ping"})
	assert.Error(t, err)
}

func TestWithTimeoutLeavesSharedClientUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"session_id":"abc","response":"late"}`))
	}))
	defer srv.Close()

	shared := &http.Client{}
	for _, opts := range [][]responder.Option{
		{responder.WithHTTPClient(shared), responder.WithTimeout(20 * time.Millisecond)},
		{responder.WithTimeout(20 * time.Millisecond), responder.WithHTTPClient(shared)},
	} {
		client := responder.NewClient(srv.URL, opts...)
		_, err := client.Chat(context.Background(), responder.Request{Message: "ping"})
		assert.Error(t, err, "timeout must apply regardless of option order")
		assert.Zero(t, shared.Timeout)
	}
}
