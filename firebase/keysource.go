package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// KeySource supplies the current set of candidate public signing keys as a
// mapping from key id to PEM-encoded material. Each call returns a complete
// snapshot; callers must not mutate it.
type KeySource interface {
	Keys(ctx context.Context) (map[string]string, error)
}

// CertSource fetches x509 certificates from the issuer's distribution
// endpoint on every call.
type CertSource struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewCertSource builds a CertSource from the given configuration.
func NewCertSource(cfg Config) *CertSource {
	cfg.normalize()
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		}
	}
	return &CertSource{
		url:     cfg.CertsURL,
		timeout: cfg.HTTPTimeout,
		client:  client,
	}
}

// Keys performs a bounded GET against the endpoint and decodes the key map.
// The previous snapshot, if any, is replaced wholesale by the caller.
func (s *CertSource) Keys(ctx context.Context) (map[string]string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build key request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch public keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch public keys: unexpected status %d", resp.StatusCode)
	}

	keys := make(map[string]string)
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("decode public keys: %w", err)
	}
	return keys, nil
}

// CachedSource wraps a KeySource with a TTL-bounded snapshot. Concurrent
// callers racing on a miss or expiry trigger exactly one upstream fetch.
type CachedSource struct {
	mu      sync.RWMutex
	src     KeySource
	ttl     time.Duration
	now     func() time.Time
	keys    map[string]string
	expires time.Time
}

// NewCachedSource wraps src with a cache holding each snapshot for ttl.
func NewCachedSource(src KeySource, ttl time.Duration) *CachedSource {
	return &CachedSource{
		src: src,
		ttl: ttl,
		now: time.Now,
	}
}

// Keys returns the cached snapshot, refreshing it from the upstream source
// when missing or expired. A failed refresh leaves no partial state behind.
func (c *CachedSource) Keys(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	if c.keys != nil && c.now().Before(c.expires) {
		keys := c.keys
		c.mu.RUnlock()
		return keys, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys != nil && c.now().Before(c.expires) {
		return c.keys, nil
	}

	keys, err := c.src.Keys(ctx)
	if err != nil {
		return nil, err
	}
	c.keys = keys
	c.expires = c.now().Add(c.ttl)
	return keys, nil
}
