package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"zo-gridbot/pkg/types"
)

// Binance fetches candles from the public Binance klines endpoint. No API
// key is needed for market data.
type Binance struct {
	client *binance.Client
}

// NewBinance returns a REST kline feed.
func NewBinance() *Binance {
	return &Binance{client: binance.NewClient("", "")}
}

// Candles implements Feed.
func (f *Binance) Candles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	klines, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch klines: %v", ErrUnavailable, err)
	}
	out := make([]types.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := candleFromKline(k.OpenTime, k.Open, k.High, k.Low, k.Close)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func candleFromKline(openTimeMillis int64, open, high, low, close string) (types.Candle, error) {
	var c types.Candle
	var err error
	if c.Open, err = strconv.ParseFloat(open, 64); err != nil {
		return c, fmt.Errorf("parse open %q: %v", open, err)
	}
	if c.High, err = strconv.ParseFloat(high, 64); err != nil {
		return c, fmt.Errorf("parse high %q: %v", high, err)
	}
	if c.Low, err = strconv.ParseFloat(low, 64); err != nil {
		return c, fmt.Errorf("parse low %q: %v", low, err)
	}
	if c.Close, err = strconv.ParseFloat(close, 64); err != nil {
		return c, fmt.Errorf("parse close %q: %v", close, err)
	}
	c.OpenTime = time.UnixMilli(openTimeMillis)
	return c, nil
}
