// Package risk implements the regime gate: an RSI/ADX decision table that
// admits or denies quoting, plus the cool-down record entered on denial.
package risk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zo-gridbot/internal/indicator"
)

// Thresholds parameterize the decision table. The comparisons are strict:
// ADX exactly at TrendADX or StrongADX does not count as trending.
type Thresholds struct {
	RSILow    float64 // quiet-regime oversold bound
	RSIHigh   float64 // quiet-regime overbought bound
	TrendADX  float64 // above this the market is trending
	StrongADX float64 // above this the trend is too strong to quote into
	Cooldown  time.Duration
}

// DefaultThresholds is the classic 30/70, 25/30 parameterization with a
// 15-minute cool-down.
var DefaultThresholds = Thresholds{
	RSILow:    30,
	RSIHigh:   70,
	TrendADX:  25,
	StrongADX: 30,
	Cooldown:  15 * time.Minute,
}

// Verdict is the outcome of one gate evaluation.
type Verdict struct {
	Admit           bool
	TriggerCooldown bool
	Cautious        bool // admitted inside the trending band
	Reason          string
}

// Gate evaluates snapshots against the table and owns the cool-down state.
type Gate struct {
	thresholds Thresholds
	logger     *slog.Logger

	mu     sync.Mutex
	exitAt time.Time
}

// New returns a gate with the given thresholds.
func New(th Thresholds, logger *slog.Logger) *Gate {
	return &Gate{thresholds: th, logger: logger.With("component", "risk")}
}

// Evaluate runs the decision table. It does not touch cool-down state;
// the caller starts the cool-down when TriggerCooldown is set, so a
// verdict can be inspected (and logged) before it takes effect.
func (g *Gate) Evaluate(snap indicator.Snapshot) Verdict {
	th := g.thresholds
	rsi, adx := snap.RSI, snap.ADX

	switch {
	case adx > th.StrongADX:
		return Verdict{
			TriggerCooldown: true,
			Reason:          fmt.Sprintf("strong trend: ADX %.2f > %.0f", adx, th.StrongADX),
		}
	case adx > th.TrendADX:
		// Trending band: the RSI bounds widen by 5 on each side.
		if rsi < th.RSILow-5 || rsi > th.RSIHigh+5 {
			return Verdict{
				TriggerCooldown: true,
				Reason: fmt.Sprintf("trend with extreme RSI: ADX %.2f, RSI %.2f outside [%.0f, %.0f]",
					adx, rsi, th.RSILow-5, th.RSIHigh+5),
			}
		}
		return Verdict{Admit: true, Cautious: true, Reason: "trending but RSI balanced"}
	default:
		if rsi < th.RSILow || rsi > th.RSIHigh {
			return Verdict{
				TriggerCooldown: true,
				Reason: fmt.Sprintf("extreme RSI: %.2f outside [%.0f, %.0f]",
					rsi, th.RSILow, th.RSIHigh),
			}
		}
		return Verdict{Admit: true, Reason: "quiet regime"}
	}
}

// StartCooldown enters (or extends) the cool-down window from now.
func (g *Gate) StartCooldown(now time.Time, reason string) {
	g.mu.Lock()
	g.exitAt = now.Add(g.thresholds.Cooldown)
	exit := g.exitAt
	g.mu.Unlock()
	g.logger.Warn("cool-down started", "reason", reason, "until", exit.Format(time.RFC3339))
}

// InCooldown reports whether now is inside the cool-down window. Exit is
// purely time-based.
func (g *Gate) InCooldown(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return now.Before(g.exitAt)
}

// Remaining returns how much cool-down is left at now, zero if none.
func (g *Gate) Remaining(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Before(g.exitAt) {
		return g.exitAt.Sub(now)
	}
	return 0
}
