// Package registry resolves capability names ("search", "chat") to live
// downstream endpoints via the registry service.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/homepilot/homepilot/internal/domain"
)

// Client queries the registry service over HTTP. Resolve results are cached
// for a short TTL to keep the registry off the per-request hot path.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	endpoints []domain.Endpoint
	expires   time.Time
}

// Config holds registry client settings.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// resolveResponse is the registry's wire format.
type resolveResponse struct {
	Endpoints []domain.Endpoint `json:"endpoints"`
}

// NewClient creates a registry client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		ttl:        cfg.CacheTTL,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// Resolve returns the live endpoints for a capability. An empty slice is a
// valid answer meaning no healthy provider is currently registered.
func (c *Client) Resolve(ctx context.Context, capability string) ([]domain.Endpoint, error) {
	if eps, ok := c.cached(capability); ok {
		return eps, nil
	}

	u := fmt.Sprintf("%s/v1/capabilities/%s/endpoints", c.baseURL, url.PathEscape(capability))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w: %w", capability, domain.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolve %s: registry status %d: %w", capability, resp.StatusCode, domain.ErrUnavailable)
	}

	var parsed resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode registry response for %s: %w", capability, err)
	}

	c.store(capability, parsed.Endpoints)
	c.logger.Debug("resolved capability",
		zap.String("capability", capability),
		zap.Int("endpoints", len(parsed.Endpoints)),
	)
	return parsed.Endpoints, nil
}

// HealthCheck probes the registry's own health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build registry health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry health check: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) cached(capability string) ([]domain.Endpoint, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[capability]
	if !ok || c.now().After(entry.expires) {
		return nil, false
	}
	return entry.endpoints, true
}

func (c *Client) store(capability string, eps []domain.Endpoint) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[capability] = cacheEntry{endpoints: eps, expires: c.now().Add(c.ttl)}
}
