package risk

import (
	"time"

	"crypto_scalper/internal/domain"
)

const rateWindow = time.Minute

// Denial explains why a placement was refused.
type Denial string

const (
	DenyNone        Denial = ""
	DenyMaxOpen     Denial = "max_open_orders"
	DenyCooldown    Denial = "cooldown"
	DenyRateLimited Denial = "max_orders_per_minute"
)

// Governor gates new placements. Cancellations are never gated.
// Not safe for concurrent use; owned by the decision loop.
type Governor struct {
	maxOpen      int
	maxPerMinute int
	cooldown     time.Duration

	placements    []time.Time
	cooldownUntil time.Time
}

// NewGovernor creates a governor from the risk section of the config.
func NewGovernor(cfg domain.QuotingConfig) *Governor {
	return &Governor{
		maxOpen:      cfg.MaxOpenOrders,
		maxPerMinute: cfg.MaxOrdersPerMinute,
		cooldown:     cfg.Cooldown(),
	}
}

// Admit decides whether one more order may be placed while openOrders are
// live. On admission the placement is counted against the per-minute cap.
func (g *Governor) Admit(openOrders int, now time.Time) (bool, Denial) {
	if openOrders >= g.maxOpen {
		return false, DenyMaxOpen
	}
	if now.Before(g.cooldownUntil) {
		return false, DenyCooldown
	}
	g.prune(now)
	if len(g.placements) >= g.maxPerMinute {
		return false, DenyRateLimited
	}
	g.placements = append(g.placements, now)
	return true, DenyNone
}

// StartCooldown blocks placements for the configured cooldown. A zero
// cooldown disables the feature. An active longer cooldown is never shortened.
func (g *Governor) StartCooldown(now time.Time) {
	if g.cooldown <= 0 {
		return
	}
	if until := now.Add(g.cooldown); until.After(g.cooldownUntil) {
		g.cooldownUntil = until
	}
}

// CooldownUntil returns the end of the current cooldown, zero if never set.
func (g *Governor) CooldownUntil() time.Time {
	return g.cooldownUntil
}

// RecentPlacements counts admissions in the trailing minute.
func (g *Governor) RecentPlacements(now time.Time) int {
	g.prune(now)
	return len(g.placements)
}

func (g *Governor) prune(now time.Time) {
	i := 0
	for i < len(g.placements) && now.Sub(g.placements[i]) > rateWindow {
		i++
	}
	if i > 0 {
		g.placements = append(g.placements[:0], g.placements[i:]...)
	}
}
