package extblock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"bastion/internal/iprange"

	"golang.org/x/sync/singleflight"
)

const maxResponseBytes = 10 << 20 // 10 MiB safety cap

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Source holds the CIDR prefixes published by one external provider and
// answers membership tests against them.
type Source interface {
	Name() string
	Prefixes() []string
	// Refresh fetches the provider's current list and replaces the stored
	// prefixes atomically. On failure the previous list is retained.
	Refresh(ctx context.Context) error
	HasIPAddress(ip string) bool
	Size() int
	// Clear empties the prefix list; called when the source is disabled.
	Clear()
}

// prefixSet is the shared state of the concrete sources: an atomically
// swapped prefix list plus refresh deduplication.
type prefixSet struct {
	name     string
	url      string
	prefixes atomic.Value
	refresh  singleflight.Group
	fetch    func(ctx context.Context, url string) ([]string, error)
}

func newPrefixSet(name, url string, fetch func(ctx context.Context, url string) ([]string, error)) *prefixSet {
	ps := &prefixSet{name: name, url: url, fetch: fetch}
	ps.prefixes.Store([]string(nil))
	return ps
}

func (ps *prefixSet) Name() string {
	return ps.name
}

func (ps *prefixSet) Prefixes() []string {
	prefixes, _ := ps.prefixes.Load().([]string)
	return prefixes
}

func (ps *prefixSet) Size() int {
	return len(ps.Prefixes())
}

func (ps *prefixSet) Clear() {
	ps.prefixes.Store([]string(nil))
}

func (ps *prefixSet) HasIPAddress(ip string) bool {
	for _, prefix := range ps.Prefixes() {
		if iprange.Matches(ip, prefix) {
			return true
		}
	}
	return false
}

func (ps *prefixSet) Refresh(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, err, _ := ps.refresh.Do("refresh", func() (any, error) {
		prefixes, err := ps.fetch(ctx, ps.url)
		if err != nil {
			return nil, err
		}
		ps.prefixes.Store(prefixes)
		return nil, nil
	})
	return err
}

func fetchBody(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return content, nil
}
