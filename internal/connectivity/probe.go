package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"sendqueue/internal/constants"
)

// Probe reports current reachability of the chat backend. Implementations
// must be safe for concurrent use.
type Probe interface {
	Check(ctx context.Context) bool
}

// HTTPProbe determines reachability by hitting the chat backend's health
// endpoint. Any 2xx/3xx response counts as online.
type HTTPProbe struct {
	url    string
	client *http.Client
}

func NewHTTPProbe(baseURL, healthPath string, client *http.Client) (*HTTPProbe, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("probe base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid probe base URL: %w", err)
	}
	if healthPath == "" {
		healthPath = constants.DefaultConnectivityHealthPath
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPProbe{
		url:    strings.TrimRight(baseURL, "/") + healthPath,
		client: client,
	}, nil
}

func (p *HTTPProbe) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 400
}

// StaticProbe is a settable probe for tests and manual overrides.
type StaticProbe struct {
	mu     sync.RWMutex
	online bool
}

func NewStaticProbe(online bool) *StaticProbe {
	return &StaticProbe{online: online}
}

func (p *StaticProbe) Check(ctx context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

func (p *StaticProbe) Set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}
