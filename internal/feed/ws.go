package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"zo-gridbot/pkg/types"
)

const (
	wsEndpoint    = "wss://stream.binance.com:9443/ws"
	pingInterval  = 50 * time.Second
	readTimeout   = 90 * time.Second
	reconnectMin  = 1 * time.Second
	reconnectMax  = 30 * time.Second
	staleInterval = 3 // candles older than 3 intervals are stale
)

// WSFeed streams klines over the Binance websocket, keeping a rolling
// window of closed candles plus the in-progress one. On connect (and on
// every reconnect) it backfills the window from the REST feed, so Candles
// is serviceable as soon as Run has completed one connect cycle.
type WSFeed struct {
	rest     Feed
	symbol   string
	interval string
	window   int
	logger   *slog.Logger

	mu      sync.Mutex
	candles []types.Candle
	updated time.Time
}

// NewWS returns a streaming feed for one symbol/interval pair. rest is
// used for backfill; window is the number of candles retained.
func NewWS(rest Feed, symbol, interval string, window int, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		rest:     rest,
		symbol:   symbol,
		interval: interval,
		window:   window,
		logger:   logger.With("component", "feed"),
	}
}

// Run connects and consumes the stream until ctx is cancelled, redialing
// with exponential back-off after any failure.
func (f *WSFeed) Run(ctx context.Context) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("stream disconnected", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (f *WSFeed) connectAndRead(ctx context.Context) error {
	if err := f.backfill(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s@kline_%s", wsEndpoint, strings.ToLower(f.symbol), f.interval)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	f.logger.Info("stream connected", "symbol", f.symbol, "interval", f.interval)

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go f.pingLoop(pingCtx, conn)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.handleMessage(msg)
	}
}

func (f *WSFeed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (f *WSFeed) backfill(ctx context.Context) error {
	candles, err := f.rest.Candles(ctx, f.symbol, f.interval, f.window)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	f.mu.Lock()
	f.candles = candles
	f.updated = time.Now()
	f.mu.Unlock()
	f.logger.Info("window backfilled", "candles", len(candles))
	return nil
}

type klineEvent struct {
	Kline struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Final    bool   `json:"x"`
	} `json:"k"`
}

func (f *WSFeed) handleMessage(msg []byte) {
	var ev klineEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		f.logger.Warn("unparseable stream message", "error", err)
		return
	}
	if ev.Kline.OpenTime == 0 {
		return
	}
	c, err := candleFromKline(ev.Kline.OpenTime, ev.Kline.Open, ev.Kline.High, ev.Kline.Low, ev.Kline.Close)
	if err != nil {
		f.logger.Warn("bad kline values", "error", err)
		return
	}
	f.push(c)
}

// push replaces the candle with the same open time or appends a new one,
// trimming the window from the front.
func (f *WSFeed) push(c types.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.candles)
	if n > 0 && f.candles[n-1].OpenTime.Equal(c.OpenTime) {
		f.candles[n-1] = c
	} else {
		f.candles = append(f.candles, c)
		if len(f.candles) > f.window {
			f.candles = f.candles[len(f.candles)-f.window:]
		}
	}
	f.updated = time.Now()
}

// Candles implements Feed from the in-memory window. symbol and interval
// must match the stream's; a stale or short window is ErrUnavailable.
func (f *WSFeed) Candles(_ context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	if !strings.EqualFold(symbol, f.symbol) || interval != f.interval {
		return nil, fmt.Errorf("%w: stream bound to %s@%s", ErrUnavailable, f.symbol, f.interval)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.candles) < limit {
		return nil, fmt.Errorf("%w: %d of %d candles buffered", ErrUnavailable, len(f.candles), limit)
	}
	if maxAge := f.maxAge(); time.Since(f.updated) > maxAge {
		return nil, fmt.Errorf("%w: window stale for %s", ErrUnavailable, time.Since(f.updated).Round(time.Second))
	}
	out := make([]types.Candle, limit)
	copy(out, f.candles[len(f.candles)-limit:])
	return out, nil
}

func (f *WSFeed) maxAge() time.Duration {
	d, err := intervalDuration(f.interval)
	if err != nil {
		return staleInterval * 15 * time.Minute
	}
	return staleInterval * d
}

// intervalDuration maps exchange interval notation ("15m", "1h", "1d")
// onto a duration; time.ParseDuration has no day unit.
func intervalDuration(iv string) (time.Duration, error) {
	if n, ok := strings.CutSuffix(iv, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("parse interval %q: %w", iv, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(iv)
}
