// Package indicator computes the RSI and ADX oscillators that drive the
// regime gate.
//
// Smoothing convention: Wilder's recursion expressed as an exponential
// moving average with α = 1/period, seeded at the first raw value. ADX in
// particular must NOT use simple-moving-average smoothing of the
// directional movements; the two conventions diverge materially on
// oscillating markets.
package indicator

import (
	"context"
	"fmt"
	"math"

	"zo-gridbot/internal/feed"
	"zo-gridbot/pkg/types"
)

// warmupExtra is added on top of 2·period so both oscillators are past
// their seed transient before the newest value is read.
const warmupExtra = 20

// Snapshot is one indicator reading, computed over the newest candle.
type Snapshot struct {
	RSI float64
	ADX float64
}

// Engine binds a feed to a symbol/interval pair and a Wilder period.
type Engine struct {
	feed     feed.Feed
	symbol   string
	interval string
	period   int
}

// New returns an indicator engine. period is the Wilder period for both
// RSI and ADX (14 in the classic parameterization).
func New(f feed.Feed, symbol, interval string, period int) *Engine {
	return &Engine{feed: f, symbol: symbol, interval: interval, period: period}
}

// MinCandles is the number of candles required for a valid snapshot.
func (e *Engine) MinCandles() int {
	return 2*e.period + warmupExtra
}

// Snapshot fetches candles and computes the current RSI and ADX. A short
// or failed fetch surfaces as feed.ErrUnavailable.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	min := e.MinCandles()
	candles, err := e.feed.Candles(ctx, e.symbol, e.interval, min)
	if err != nil {
		return Snapshot{}, err
	}
	if len(candles) < min {
		return Snapshot{}, fmt.Errorf("%w: %d of %d candles", feed.ErrUnavailable, len(candles), min)
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	rsi, err := RSI(closes, e.period)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", feed.ErrUnavailable, err)
	}
	adx, err := ADX(candles, e.period)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", feed.ErrUnavailable, err)
	}
	return Snapshot{RSI: rsi, ADX: adx}, nil
}

// RSI returns the relative strength index of the last close. The average
// gain and loss are seeded with a simple mean over the first period deltas
// and then follow Wilder's recursion. A zero average loss reads as 100.
func RSI(closes []float64, period int) (float64, error) {
	if len(closes) < period+1 {
		return 0, fmt.Errorf("rsi: need %d closes, have %d", period+1, len(closes))
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}
	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// ADX returns the average directional index of the last candle.
func ADX(candles []types.Candle, period int) (float64, error) {
	// TR/DM need a previous candle; DX needs a smoothed run; ADX smooths DX.
	if len(candles) < 2*period+1 {
		return 0, fmt.Errorf("adx: need %d candles, have %d", 2*period+1, len(candles))
	}
	n := len(candles) - 1
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i <= n; i++ {
		cur, prev := candles[i], candles[i-1]
		tr[i-1] = trueRange(cur, prev)
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	atr := wilderSmooth(tr, period)
	plus := wilderSmooth(plusDM, period)
	minus := wilderSmooth(minusDM, period)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if atr[i] == 0 {
			continue
		}
		pdi := 100 * plus[i] / atr[i]
		mdi := 100 * minus[i] / atr[i]
		if sum := pdi + mdi; sum != 0 {
			dx[i] = 100 * math.Abs(pdi-mdi) / sum
		}
	}
	adx := wilderSmooth(dx, period)
	return adx[n-1], nil
}

// wilderSmooth applies Wilder's smoothing as an EMA with α = 1/period,
// seeded at the first raw value.
func wilderSmooth(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 1 / float64(period)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = out[i-1] + alpha*(xs[i]-out[i-1])
	}
	return out
}

func trueRange(cur, prev types.Candle) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}
