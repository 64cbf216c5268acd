package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformedReply is returned when a successful status carries an unusable body.
var ErrMalformedReply = errors.New("malformed reply from response service")

// StatusError reports a non-2xx answer from the response service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("response service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("response service returned status %d: %s", e.StatusCode, e.Body)
}

// Request is one user turn sent to the response service.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Reply is the decoded answer for one turn.
type Reply struct {
	SessionID string
	Response  string
}

type replyPayload struct {
	SessionID *string `json:"session_id"`
	Response  *string `json:"response"`
}

const (
	chatPath         = "/chat"
	maxReplyBytes    = 4 << 20
	maxErrorBodySize = 512
)

// Client talks to the remote response service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every call made by the client. A supplied HTTP client is
// copied rather than modified.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient builds a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		copied := *c.httpClient
		copied.Timeout = c.timeout
		c.httpClient = &copied
	}
	return c
}

// Endpoint returns the URL the client posts turns to.
func (c *Client) Endpoint() string {
	return c.baseURL + chatPath
}

// Chat submits one utterance and returns the service reply.
func (c *Client) Chat(ctx context.Context, req Request) (Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, errors.Wrap(err, "encode chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return Reply{}, errors.Wrap(err, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Reply{}, errors.Wrap(err, "send chat request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return Reply{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var payload replyPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&payload); err != nil {
		return Reply{}, errors.Wrapf(ErrMalformedReply, "decode body: %v", err)
	}
	if payload.SessionID == nil || strings.TrimSpace(*payload.SessionID) == "" {
		return Reply{}, errors.Wrap(ErrMalformedReply, "missing session_id")
	}
	if payload.Response == nil {
		return Reply{}, errors.Wrap(ErrMalformedReply, "missing response")
	}

	return Reply{SessionID: *payload.SessionID, Response: *payload.Response}, nil
}
