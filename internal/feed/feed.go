// Package feed supplies OHLCV candles for the indicator engine. Two
// implementations exist: a REST poller against the Binance klines endpoint
// and a streaming feed that backfills over REST and then follows the
// kline websocket.
package feed

import (
	"context"
	"errors"

	"zo-gridbot/pkg/types"
)

// ErrUnavailable means the feed cannot currently produce enough fresh
// candles. Consumers treat it as a deny-admission signal, never a crash.
var ErrUnavailable = errors.New("feed: candles unavailable")

// Feed returns up to limit candles for symbol at the given interval,
// oldest first, the most recent candle last.
type Feed interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
}
