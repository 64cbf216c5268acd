package asset

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultProbeTimeout = 5 * time.Second

// Probe checks once whether an optional presentation asset (the avatar) exists
// and caches the answer for the life of the process.
type Probe struct {
	url    string
	client *http.Client

	once    sync.Once
	present bool
}

// NewProbe returns a probe for url. An empty url always reports absent.
func NewProbe(url string, client *http.Client) *Probe {
	if client == nil {
		client = &http.Client{}
	}
	if client.Timeout <= 0 {
		copied := *client
		copied.Timeout = defaultProbeTimeout
		client = &copied
	}
	return &Probe{url: url, client: client}
}

// URL returns the probed address.
func (p *Probe) URL() string {
	return p.url
}

// Available issues a HEAD request the first time it is called; later calls
// return the cached result. The request ignores caller cancellation and is
// bounded by the client timeout only.
func (p *Probe) Available(ctx context.Context) bool {
	p.once.Do(func() {
		p.present = p.check(context.WithoutCancel(ctx))
	})
	return p.present
}

func (p *Probe) check(ctx context.Context) bool {
	if p.url == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		log.Debug().Err(err).Str("url", p.url).Msg("invalid avatar url")
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", p.url).Msg("avatar probe failed")
		return false
	}
	resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	log.Debug().Str("url", p.url).Int("status", resp.StatusCode).Bool("present", ok).Msg("avatar probed")
	return ok
}
