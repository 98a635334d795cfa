// Package gate implements per-client request admission over a sliding
// window. It is the only mutable state shared between concurrent requests
// for the same client, so the check-and-record step runs as one critical
// section.
package gate

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultLimit and DefaultWindow mirror the service-wide throttle of
	// ten admissions per minute per client identity.
	DefaultLimit  = 10
	DefaultWindow = time.Minute

	// DefaultMaxClients bounds memory under identity-spoofing load. When
	// the cap is hit the least recently seen identity is evicted, which
	// trades perfect fairness for a hard memory ceiling.
	DefaultMaxClients = 10000
)

// Gate admits or denies requests per opaque client identity. Denial is a
// normal outcome, never an error.
type Gate struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients *lru.Cache[string, *admissions]

	now func() time.Time
}

// admissions holds the recent admission timestamps for one client.
type admissions struct {
	times []time.Time
}

// Option tweaks gate construction.
type Option func(*Gate)

// WithLimits overrides the default admission limit and window.
func WithLimits(limit int, window time.Duration) Option {
	return func(g *Gate) {
		g.limit = limit
		g.window = window
	}
}

// WithMaxClients overrides the tracked-identity cap.
func WithMaxClients(n int) Option {
	return func(g *Gate) {
		cache, err := lru.New[string, *admissions](n)
		if err == nil {
			g.clients = cache
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New builds a Gate with the given options.
func New(opts ...Option) *Gate {
	cache, _ := lru.New[string, *admissions](DefaultMaxClients)
	g := &Gate{
		limit:   DefaultLimit,
		window:  DefaultWindow,
		clients: cache,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit reports whether the client may proceed, recording the admission
// atomically with the check when allowed.
func (g *Gate) Admit(clientID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	entry, ok := g.clients.Get(clientID)
	if !ok {
		entry = &admissions{}
		g.clients.Add(clientID, entry)
	}

	// Prune timestamps that fell out of the window.
	kept := entry.times[:0]
	for _, ts := range entry.times {
		if now.Sub(ts) < g.window {
			kept = append(kept, ts)
		}
	}
	entry.times = kept

	if len(entry.times) >= g.limit {
		return false
	}
	entry.times = append(entry.times, now)
	return true
}

// SetLimits swaps the limit and window at runtime. Existing admission
// history is kept; the new window applies on the next check.
func (g *Gate) SetLimits(limit int, window time.Duration) {
	if limit <= 0 || window <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limit = limit
	g.window = window
}

// Tracked reports how many client identities currently hold state.
func (g *Gate) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clients.Len()
}
