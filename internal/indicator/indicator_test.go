package indicator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"zo-gridbot/internal/feed"
	"zo-gridbot/pkg/types"
)

// trendCandles is a monotone rise with a constant step: every bar makes a
// higher high and a higher low, so every DX is exactly 100 and ADX must be
// exactly 100 under any smoothing of a constant.
func trendCandles(n int) []types.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = types.Candle{
			OpenTime: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:     c - 0.5,
			High:     c + 0.5,
			Low:      c - 0.5,
			Close:    c,
		}
	}
	return out
}

// alternatingCandles oscillates: each bar's whole range shifts up then down
// by step while keeping a constant intrabar range, closes at the bar mid.
// At steady state +DM and -DM alternate step,0 and 0,step; with Wilder
// smoothing (α = 1/period) the smoothed values settle at step/(2−α) and
// step·(1−α)/(2−α), so DX converges to 100·α/(2−α). For period 14 that is
// 100/27 ≈ 3.704. A simple-moving-average smoothing of the same series
// yields equal ±DM averages and DX = 0, so the assertion below rejects it.
func alternatingCandles(n int) []types.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	const rng, step = 10.0, 4.0
	out := make([]types.Candle, n)
	for i := range out {
		lo := 100.0
		if i%2 == 1 {
			lo += step
		}
		out[i] = types.Candle{
			OpenTime: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:     lo + rng/2,
			High:     lo + rng,
			Low:      lo,
			Close:    lo + rng/2,
		}
	}
	return out
}

func closesOf(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func TestADXTrend(t *testing.T) {
	t.Parallel()

	adx, err := ADX(trendCandles(60), 14)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(adx-100) > 1e-9 {
		t.Errorf("ADX on monotone trend = %v, want exactly 100", adx)
	}
}

func TestADXAlternation(t *testing.T) {
	t.Parallel()

	adx, err := ADX(alternatingCandles(120), 14)
	if err != nil {
		t.Fatal(err)
	}
	want := 100.0 / 27.0
	if math.Abs(adx-want) > 0.5 {
		t.Errorf("ADX on alternation = %v, want %v ± 0.5", adx, want)
	}
}

func TestRSITrend(t *testing.T) {
	t.Parallel()

	rsi, err := RSI(closesOf(trendCandles(60)), 14)
	if err != nil {
		t.Fatal(err)
	}
	if rsi != 100 {
		t.Errorf("RSI on pure uptrend = %v, want 100", rsi)
	}
}

func TestRSIAlternation(t *testing.T) {
	t.Parallel()

	// Closes alternate ±step; the smoothed averages settle at the same
	// two-phase fixed point as the ADX case, so RSI → 100·14/27 ≈ 51.85
	// when the last delta is a gain and 100·13/27 ≈ 48.15 when a loss.
	candles := alternatingCandles(120)
	rsi, err := RSI(closesOf(candles), 14)
	if err != nil {
		t.Fatal(err)
	}
	// 120 bars: last delta is close[119]−close[118]; index 119 is odd, so
	// the final move is up.
	want := 100.0 * 14 / 27
	if math.Abs(rsi-want) > 0.1 {
		t.Errorf("RSI on alternation = %v, want %v ± 0.1", rsi, want)
	}
}

func TestInsufficientData(t *testing.T) {
	t.Parallel()

	if _, err := RSI(make([]float64, 10), 14); err == nil {
		t.Error("RSI accepted 10 closes for period 14")
	}
	if _, err := ADX(trendCandles(20), 14); err == nil {
		t.Error("ADX accepted 20 candles for period 14")
	}
}

type stubFeed struct {
	candles []types.Candle
	err     error
}

func (s *stubFeed) Candles(context.Context, string, string, int) ([]types.Candle, error) {
	return s.candles, s.err
}

func TestEngineSnapshot(t *testing.T) {
	t.Parallel()

	e := New(&stubFeed{candles: trendCandles(48)}, "BTCUSDT", "15m", 14)
	if got := e.MinCandles(); got != 48 {
		t.Fatalf("MinCandles = %d, want 48", got)
	}
	snap, err := e.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.RSI != 100 || math.Abs(snap.ADX-100) > 1e-9 {
		t.Errorf("Snapshot = %+v, want RSI 100 and ADX 100", snap)
	}
}

func TestEngineSnapshotUnavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		feed feed.Feed
	}{
		{"fetch error", &stubFeed{err: feed.ErrUnavailable}},
		{"short window", &stubFeed{candles: trendCandles(30)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := New(tt.feed, "BTCUSDT", "15m", 14)
			if _, err := e.Snapshot(context.Background()); !errors.Is(err, feed.ErrUnavailable) {
				t.Errorf("Snapshot err = %v, want feed.ErrUnavailable", err)
			}
		})
	}
}
