package identity

import (
	"context"
	"sync"
	"time"
)

// RedemptionGuard enforces single-use redemption of purpose tokens. The
// tokens themselves are stateless, so without a guard a redeemed token stays
// technically valid until it expires; that bounded-reuse window is the
// documented default. Wire a guard into the confirmation handlers to close
// it.
type RedemptionGuard interface {
	// Redeem records tokenID as used for at least ttl. It returns false when
	// the id was already recorded.
	Redeem(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
}

// MemoryRedemptionGuard tracks redeemed token ids in process memory. Entries
// are dropped lazily once their retention window passes. Suitable for single
// instance deployments and tests; use the Redis guard when running more than
// one replica.
type MemoryRedemptionGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryRedemptionGuard creates an empty in-memory guard.
func NewMemoryRedemptionGuard() *MemoryRedemptionGuard {
	return &MemoryRedemptionGuard{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Redeem implements RedemptionGuard.
func (g *MemoryRedemptionGuard) Redeem(_ context.Context, tokenID string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, until := range g.seen {
		if now.After(until) {
			delete(g.seen, id)
		}
	}

	if until, ok := g.seen[tokenID]; ok && now.Before(until) {
		return false, nil
	}

	g.seen[tokenID] = now.Add(ttl)
	return true, nil
}
