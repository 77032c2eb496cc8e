// Package engine runs the control loop: one tick at a time, indicators
// first, then the regime gate, then reconcile the grid against the local
// book. Ticks never overlap, errors back the loop off, and shutdown runs
// a bounded terminal sequence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"zo-gridbot/internal/exchange"
	"zo-gridbot/internal/feed"
	"zo-gridbot/internal/indicator"
	"zo-gridbot/internal/risk"
	"zo-gridbot/internal/strategy"
	"zo-gridbot/internal/wire"
	"zo-gridbot/pkg/types"
)

const (
	errorBackoff     = 60 * time.Second
	terminalTimeout  = 30 * time.Second
	terminalAttempts = 3
)

// Venue is the slice of the exchange adapter the engine drives.
type Venue interface {
	Connect(ctx context.Context) error
	EnsureSession(ctx context.Context) error
	PlaceOrder(ctx context.Context, side types.Side, price, size decimal.Decimal, mode wire.FillMode, reduceOnly bool) (types.Order, error)
	CancelOrder(ctx context.Context, id uint32) (exchange.CancelResult, error)
	CancelAll(ctx context.Context) ([]types.Order, error)
	Flatten(ctx context.Context, position decimal.Decimal) error
	TopOfBook(ctx context.Context) (types.TopOfBook, error)
	OpenOrders() []types.Order
}

// Indicators produces the per-tick oscillator snapshot.
type Indicators interface {
	Snapshot(ctx context.Context) (indicator.Snapshot, error)
}

// Options carries the engine's loop parameters.
type Options struct {
	Params            strategy.Params
	Tick              time.Duration
	CooldownTick      time.Duration
	FlattenOnCooldown bool
	FlattenOnExit     bool
}

// Engine owns the tick loop.
type Engine struct {
	venue      Venue
	indicators Indicators
	gate       *risk.Gate
	position   *strategy.Position
	opts       Options
	logger     *slog.Logger
}

// New wires the components together.
func New(venue Venue, ind Indicators, gate *risk.Gate, pos *strategy.Position, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		venue:      venue,
		indicators: ind,
		gate:       gate,
		position:   pos,
		opts:       opts,
		logger:     logger.With("component", "engine"),
	}
}

// Run connects, then ticks until ctx is cancelled or the venue reports an
// authentication failure. Either way the terminal sequence runs before
// return; the returned error is nil only for a clean shutdown.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.venue.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	e.logger.Info("engine started",
		"tick", e.opts.Tick, "cooldown_tick", e.opts.CooldownTick,
		"position", e.position.Net())

	var runErr error
	timer := time.NewTimer(0) // first tick immediately
	defer timer.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-timer.C:
		}

		err := e.safeTick(ctx)
		switch {
		case err == nil:
			timer.Reset(e.nextDelay())
		case errors.Is(err, exchange.ErrAuthFailure):
			e.logger.Error("authentication failure, stopping", "error", err)
			runErr = err
			break loop
		case ctx.Err() != nil:
			break loop
		default:
			e.logger.Error("tick failed, backing off", "error", err, "backoff", errorBackoff)
			timer.Reset(errorBackoff)
		}
	}

	e.terminal()
	return runErr
}

func (e *Engine) nextDelay() time.Duration {
	if e.gate.InCooldown(time.Now()) {
		return e.opts.CooldownTick
	}
	return e.opts.Tick
}

// safeTick converts a panic anywhere in the tick into an error so one bad
// snapshot cannot take the process down.
func (e *Engine) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return e.tick(ctx)
}

func (e *Engine) tick(ctx context.Context) error {
	now := time.Now()
	if e.gate.InCooldown(now) {
		e.logger.Info("cooled down, holding", "remaining", e.gate.Remaining(now).Round(time.Second))
		return e.failsafe(ctx)
	}

	snap, err := e.indicators.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, feed.ErrUnavailable) {
			// No data denies admission without entering cool-down, but a
			// denied tick still retires the ladder: quoting blind with no
			// regime gate in force is worse than not quoting.
			e.logger.Warn("indicators unavailable, denying tick", "error", err)
			return e.failsafe(ctx)
		}
		return fmt.Errorf("indicators: %w", err)
	}

	verdict := e.gate.Evaluate(snap)
	e.logger.Info("regime",
		"rsi", fmt.Sprintf("%.2f", snap.RSI), "adx", fmt.Sprintf("%.2f", snap.ADX),
		"admit", verdict.Admit, "cautious", verdict.Cautious, "reason", verdict.Reason)
	if verdict.TriggerCooldown {
		e.gate.StartCooldown(now, verdict.Reason)
		return e.failsafe(ctx)
	}
	if !verdict.Admit {
		return nil
	}

	book, err := e.venue.TopOfBook(ctx)
	if err != nil {
		return fmt.Errorf("top of book: %w", err)
	}

	plan := strategy.BuildPlan(e.opts.Params, book, e.position.Net())
	acts := strategy.Diff(plan, e.venue.OpenOrders())

	for _, o := range acts.Cancels {
		res, err := e.venue.CancelOrder(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("cancel: %w", err)
		}
		if res.Status == exchange.StatusFilled {
			net := e.position.ApplyFill(res.Order)
			e.logger.Info("position updated from fill", "net", net)
		}
	}

	var placed, dropped int
	for _, r := range acts.Places {
		_, err := e.venue.PlaceOrder(ctx, r.Side, r.Price, e.opts.Params.OrderSize, wire.FillPostOnly, false)
		switch {
		case err == nil:
			placed++
		case errors.Is(err, exchange.ErrPostOnlyWouldMatch):
			// The rung sits inside the spread by now; drop it silently
			// and let the next tick re-plan.
			dropped++
		case errors.Is(err, exchange.ErrInvalidOrder):
			e.logger.Warn("order rejected", "side", r.Side, "price", r.Price, "error", err)
		default:
			return fmt.Errorf("place: %w", err)
		}
	}

	e.logger.Info("tick reconciled",
		"mid", plan.Mid, "rungs", len(plan.Rungs),
		"cancelled", len(acts.Cancels), "placed", placed, "dropped", dropped,
		"open", len(e.venue.OpenOrders()), "position", e.position.Net())
	return nil
}

// failsafe is the cooled-down stance: no resting orders and, when
// configured, no position either.
func (e *Engine) failsafe(ctx context.Context) error {
	fills, err := e.venue.CancelAll(ctx)
	for _, o := range fills {
		e.position.ApplyFill(o)
	}
	if err != nil {
		return fmt.Errorf("failsafe cancel-all: %w", err)
	}
	if e.opts.FlattenOnCooldown {
		net := e.position.Net()
		if err := e.venue.Flatten(ctx, net); err != nil {
			return fmt.Errorf("failsafe flatten: %w", err)
		}
		// The close is immediate-or-cancel against a deep touch; treat an
		// accepted flatten as fully done.
		if !net.IsZero() {
			e.position.Reset()
		}
	}
	return nil
}

// terminal leaves the venue clean on the way out: cancel-all with bounded
// retries, then an optional flatten. It uses its own deadline because the
// run context is already cancelled.
func (e *Engine) terminal() {
	ctx, cancel := context.WithTimeout(context.Background(), terminalTimeout)
	defer cancel()

	e.logger.Info("terminal sequence", "open_orders", len(e.venue.OpenOrders()))
	for attempt := 1; attempt <= terminalAttempts; attempt++ {
		fills, err := e.venue.CancelAll(ctx)
		for _, o := range fills {
			e.position.ApplyFill(o)
		}
		if err == nil {
			break
		}
		e.logger.Warn("terminal cancel-all failed", "attempt", attempt, "error", err)
		if attempt == terminalAttempts {
			e.logger.Error("orders may remain on the venue", "open_orders", len(e.venue.OpenOrders()))
		}
	}

	if e.opts.FlattenOnExit {
		if err := e.venue.Flatten(ctx, e.position.Net()); err != nil {
			e.logger.Error("terminal flatten failed", "error", err, "position", e.position.Net())
		}
	}
	e.logger.Info("engine stopped", "position", e.position.Net())
}
