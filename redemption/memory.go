package redemption

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/magland/hchat/protocol"
)

// MemoryGuard is a thread-safe in-memory set of redeemed token keys. Each
// entry lives until its TTL passes; Cleanup drops expired entries so the set
// stays as small as the number of tokens redeemed within one token lifetime.
//
// A MemoryGuard only protects a single gateway process. Replicated
// deployments need RedisGuard or PostgresGuard.
type MemoryGuard struct {
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryGuard creates an empty guard. A nil clock means the wall clock.
func NewMemoryGuard(c clock.Clock) *MemoryGuard {
	if c == nil {
		c = clock.New()
	}
	return &MemoryGuard{
		clock:   c,
		entries: make(map[string]time.Time),
	}
}

// Claim implements protocol.RedemptionGuard.
func (g *MemoryGuard) Claim(ctx context.Context, key string, ttl time.Duration) error {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()
	if expiresAt, ok := g.entries[key]; ok && now.Before(expiresAt) {
		return protocol.ErrAlreadyRedeemed
	}
	g.entries[key] = now.Add(ttl)
	return nil
}

// Cleanup removes entries whose TTL has passed and returns how many were
// removed.
func (g *MemoryGuard) Cleanup(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, expiresAt := range g.entries {
		if !now.Before(expiresAt) {
			delete(g.entries, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (g *MemoryGuard) Run(ctx context.Context, interval time.Duration) {
	ticker := g.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.Cleanup(now)
		}
	}
}

// Len returns the current number of entries.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
