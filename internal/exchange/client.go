package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"zo-gridbot/internal/tracker"
	"zo-gridbot/internal/wire"
	"zo-gridbot/pkg/types"
)

const (
	actionPath    = "/action"
	infoPath      = "/info"
	timestampPath = "/timestamp"

	requestTimeout = 10 * time.Second
	flattenSlip    = "0.005" // flatten prices 0.5% through the opposite touch
)

// Config carries the adapter's connection parameters.
type Config struct {
	BaseURL   string
	SecretKey string // base58 ed25519 identity key
	MarketID  uint32
	Symbol    string
	DryRun    bool
}

// MarketInfo is one entry of the venue's /info listing.
type MarketInfo struct {
	ID            uint32 `json:"id"`
	Symbol        string `json:"symbol"`
	PriceDecimals int    `json:"price_decimals"`
	SizeDecimals  int    `json:"size_decimals"`
}

// CancelStatus distinguishes a true cancel from a fill discovered by the
// cancel path.
type CancelStatus int

const (
	StatusCancelled CancelStatus = iota
	StatusFilled
)

// CancelResult reports what happened to the targeted order. Order is the
// local record that was retired.
type CancelResult struct {
	Order  types.Order
	Status CancelStatus
}

// Client is the venue adapter. Actions are serialized by the engine's
// tick loop; the client itself only guards session state.
type Client struct {
	http       *resty.Client
	identity   *wire.Keypair
	sessionKey *wire.Keypair
	sess       *session
	marketID   uint32
	symbol     string
	book       *tracker.Book
	pacer      *Pacer
	dryRun     bool
	logger     *slog.Logger
	nonce      atomic.Uint64
	now        func() time.Time
}

// New builds the adapter. The identity key is decoded eagerly so a bad
// key fails at boot, not on the first action.
func New(cfg Config, book *tracker.Book, logger *slog.Logger) (*Client, error) {
	identity, err := wire.KeypairFromBase58(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(requestTimeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Never auto-retry the signed action channel: a replayed
			// place could double an order. Reads are safe.
			if r != nil && r.Request != nil && r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || (r != nil && r.StatusCode() >= 500)
		})

	c := &Client{
		http:     httpClient,
		identity: identity,
		sess:     &session{},
		marketID: cfg.MarketID,
		symbol:   cfg.Symbol,
		book:     book,
		pacer:    NewPacer(),
		dryRun:   cfg.DryRun,
		logger:   logger.With("component", "exchange"),
		now:      time.Now,
	}
	c.nonce.Store(uint64(time.Now().UnixNano()))
	return c, nil
}

// Connect probes the venue and establishes the first session. A market
// listing that does not include the configured instrument is fatal.
func (c *Client) Connect(ctx context.Context) error {
	info, err := c.fetchMarketInfo(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("market bound",
		"market_id", info.ID, "symbol", info.Symbol,
		"price_decimals", info.PriceDecimals, "size_decimals", info.SizeDecimals)

	if c.dryRun {
		c.logger.Warn("dry-run mode: no orders will reach the venue")
		return nil
	}
	return c.EnsureSession(ctx)
}

func (c *Client) fetchMarketInfo(ctx context.Context) (MarketInfo, error) {
	var listing struct {
		Markets []MarketInfo `json:"markets"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&listing).Get(infoPath)
	if err != nil {
		return MarketInfo{}, fmt.Errorf("%w: fetch info: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return MarketInfo{}, fmt.Errorf("%w: info returned %s", ErrTransport, resp.Status())
	}
	for _, m := range listing.Markets {
		if m.ID == c.marketID {
			if !strings.EqualFold(m.Symbol, c.symbol) {
				return MarketInfo{}, fmt.Errorf("market %d is %s, configured symbol is %s",
					m.ID, m.Symbol, c.symbol)
			}
			return m, nil
		}
	}
	return MarketInfo{}, fmt.Errorf("market %d not in venue listing", c.marketID)
}

// ServerTime reads the venue clock (plain integer seconds). On failure it
// falls back to the local clock; action timestamps tolerate small skew.
func (c *Client) ServerTime(ctx context.Context) int64 {
	resp, err := c.http.R().SetContext(ctx).Get(timestampPath)
	if err != nil || resp.IsError() {
		c.logger.Warn("server time unavailable, using local clock", "error", err)
		return c.now().Unix()
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(string(resp.Body())), 10, 64)
	if err != nil {
		c.logger.Warn("unparseable server time, using local clock", "body", string(resp.Body()))
		return c.now().Unix()
	}
	return ts
}

// EnsureSession makes sure a usable session exists, creating one if the
// current one is missing or inside the renewal margin. Idempotent: a live
// young session costs no network call.
func (c *Client) EnsureSession(ctx context.Context) error {
	if c.sess.usable(c.now()) {
		return nil
	}
	return c.createSession(ctx)
}

func (c *Client) createSession(ctx context.Context) error {
	c.sess.beginCreate()
	key, err := wire.NewSessionKeypair()
	if err != nil {
		c.sess.invalidate()
		return fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}

	st := c.ServerTime(ctx)
	act := &wire.Action{
		Timestamp: st,
		Nonce:     c.nonce.Add(1),
		CreateSession: &wire.CreateSession{
			UserPubkey:    c.identity.Public(),
			SessionPubkey: key.Public(),
			Expiry:        st + int64(sessionLifetime/time.Second),
		},
	}
	receipt, err := c.postAction(ctx, act, c.identity.UserSign)
	if err != nil {
		c.sess.invalidate()
		return err
	}
	if rerr := receiptError(receipt.Err); rerr != nil {
		c.sess.invalidate()
		return fmt.Errorf("%w: create session rejected: %v", ErrAuthFailure, rerr)
	}
	if receipt.CreateSession == nil {
		c.sess.invalidate()
		return fmt.Errorf("%w: create session receipt missing result", ErrTransport)
	}

	c.sessionKey = key
	c.sess.activate(receipt.CreateSession.SessionID, c.now())
	c.logger.Info("session established", "session_id", receipt.CreateSession.SessionID)
	return nil
}

// postAction frames, signs, and posts one action, returning the decoded
// receipt. sign produces the 64-byte trailer over the frame.
func (c *Client) postAction(ctx context.Context, act *wire.Action, sign func([]byte) []byte) (*wire.Receipt, error) {
	frame := wire.Frame(act.Marshal())
	body := append(frame, sign(frame)...)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(body).
		Post(actionPath)
	if err != nil {
		return nil, fmt.Errorf("%w: post action: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: action returned %s", ErrTransport, resp.Status())
	}
	receipt, err := wire.DecodeReceiptFrame(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: decode receipt: %v", ErrTransport, err)
	}
	return receipt, nil
}

// sessionAction runs a session-signed action, retrying exactly once with a
// fresh session when the venue reports expiry. A second expiry in the same
// call is an authentication failure.
func (c *Client) sessionAction(ctx context.Context, build func(sessionID uint64) *wire.Action) (*wire.Receipt, error) {
	if err := c.EnsureSession(ctx); err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		act := build(c.sess.currentID())
		receipt, err := c.postAction(ctx, act, c.sessionKey.SessionSign)
		if err != nil {
			return nil, err
		}
		if errors.Is(receiptError(receipt.Err), ErrSessionExpired) {
			if attempt > 0 {
				return nil, fmt.Errorf("%w: session expired twice in one action", ErrAuthFailure)
			}
			c.logger.Warn("session expired mid-action, re-creating")
			c.sess.invalidate()
			if err := c.createSession(ctx); err != nil {
				return nil, err
			}
			continue
		}
		return receipt, nil
	}
}

// PlaceOrder posts a limit order and, for resting fill modes, records it
// in the tracker. Size is unsigned; side determines the wire sign.
func (c *Client) PlaceOrder(ctx context.Context, side types.Side, price, size decimal.Decimal, mode wire.FillMode, reduceOnly bool) (types.Order, error) {
	if err := c.pacer.Action.Wait(ctx); err != nil {
		return types.Order{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	order := types.Order{
		ID:          c.allocOrderID(),
		MarketID:    c.marketID,
		Side:        side,
		Price:       price,
		Size:        size,
		SubmittedAt: c.now(),
	}

	if c.dryRun {
		c.logger.Info("dry-run place", "side", side, "price", price, "size", size, "order_id", order.ID)
		if mode == wire.FillPostOnly {
			c.book.Add(order)
		}
		return order, nil
	}

	receipt, err := c.sessionAction(ctx, func(sessionID uint64) *wire.Action {
		return &wire.Action{
			Timestamp: c.ServerTime(ctx),
			Nonce:     c.nonce.Add(1),
			PlaceOrder: &wire.PlaceOrder{
				SessionID:     sessionID,
				MarketID:      c.marketID,
				ClientOrderID: order.ID,
				Price:         types.ToWireUnits(price),
				Size:          types.ToWireUnits(size) * side.Sign(),
				FillMode:      mode,
				ReduceOnly:    reduceOnly,
			},
		}
	})
	if err != nil {
		return types.Order{}, err
	}
	if rerr := receiptError(receipt.Err); rerr != nil {
		return types.Order{}, fmt.Errorf("place %s %s @ %s: %w", side, size, price, rerr)
	}

	// IOC orders never rest; only post-only orders enter the book.
	if mode == wire.FillPostOnly {
		if receipt.PlaceOrder == nil || receipt.PlaceOrder.Posted == nil {
			return types.Order{}, fmt.Errorf("%w: place receipt missing posted order", ErrTransport)
		}
		c.book.Add(order)
	}
	c.logger.Debug("order placed", "order_id", order.ID, "side", side, "price", price)
	return order, nil
}

// CancelOrder removes an order. An ORDER_NOT_FOUND receipt means the order
// filled before the cancel arrived; the tracker entry is retired as filled
// and the caller folds it into the position.
func (c *Client) CancelOrder(ctx context.Context, id uint32) (CancelResult, error) {
	if err := c.pacer.Action.Wait(ctx); err != nil {
		return CancelResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if c.dryRun {
		o, _ := c.book.Remove(id, types.OrderCancelled)
		c.logger.Info("dry-run cancel", "order_id", id)
		return CancelResult{Order: o, Status: StatusCancelled}, nil
	}

	receipt, err := c.sessionAction(ctx, func(sessionID uint64) *wire.Action {
		return &wire.Action{
			Timestamp: c.ServerTime(ctx),
			Nonce:     c.nonce.Add(1),
			CancelOrder: &wire.CancelOrder{
				SessionID: sessionID,
				OrderID:   id,
			},
		}
	})
	if err != nil {
		return CancelResult{}, err
	}

	switch rerr := receiptError(receipt.Err); {
	case rerr == nil:
		o, _ := c.book.Remove(id, types.OrderCancelled)
		return CancelResult{Order: o, Status: StatusCancelled}, nil
	case errors.Is(rerr, ErrOrderNotFound):
		o, ok := c.book.Remove(id, types.OrderFilled)
		if ok {
			c.logger.Info("fill discovered via cancel",
				"order_id", id, "side", o.Side, "price", o.Price, "size", o.Size)
		}
		return CancelResult{Order: o, Status: StatusFilled}, nil
	default:
		return CancelResult{}, fmt.Errorf("cancel %d: %w", id, rerr)
	}
}

// CancelAll cancels every tracked open order and returns the orders that
// turned out to be fills, for the caller to fold into the position.
func (c *Client) CancelAll(ctx context.Context) ([]types.Order, error) {
	var fills []types.Order
	for _, o := range c.book.ListOpen() {
		res, err := c.CancelOrder(ctx, o.ID)
		if err != nil {
			return fills, fmt.Errorf("cancel all: %w", err)
		}
		if res.Status == StatusFilled {
			fills = append(fills, res.Order)
		}
	}
	return fills, nil
}

// Flatten closes the given signed position with an immediate-or-cancel,
// reduce-only order priced 0.5% through the opposite touch. A zero
// position is a no-op.
func (c *Client) Flatten(ctx context.Context, position decimal.Decimal) error {
	if position.IsZero() {
		return nil
	}
	book, err := c.TopOfBook(ctx)
	if err != nil {
		return fmt.Errorf("flatten: %w", err)
	}

	slip := decimal.RequireFromString(flattenSlip)
	var side types.Side
	var price decimal.Decimal
	if position.IsPositive() {
		side = types.SELL
		price = book.Bid.Mul(decimal.NewFromInt(1).Sub(slip))
	} else {
		side = types.BUY
		price = book.Ask.Mul(decimal.NewFromInt(1).Add(slip))
	}

	c.logger.Info("flattening position", "position", position, "side", side, "price", price)
	_, err = c.PlaceOrder(ctx, side, price, position.Abs(), wire.FillImmediateOrCancel, true)
	if err != nil && !errors.Is(err, ErrInvalidOrder) {
		return fmt.Errorf("flatten: %w", err)
	}
	return nil
}

// TopOfBook reads the first level of each side of the order book.
func (c *Client) TopOfBook(ctx context.Context) (types.TopOfBook, error) {
	if err := c.pacer.Book.Wait(ctx); err != nil {
		return types.TopOfBook{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	// Levels arrive as ["price", "size"] string pairs, best price first.
	var book struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	path := fmt.Sprintf("/market/%d/orderbook", c.marketID)
	resp, err := c.http.R().SetContext(ctx).SetResult(&book).Get(path)
	if err != nil {
		return types.TopOfBook{}, fmt.Errorf("%w: fetch orderbook: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return types.TopOfBook{}, fmt.Errorf("%w: orderbook returned %s", ErrTransport, resp.Status())
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 || len(book.Bids[0]) < 1 || len(book.Asks[0]) < 1 {
		return types.TopOfBook{}, fmt.Errorf("%w: orderbook has an empty side", ErrTransport)
	}
	bid, err := decimal.NewFromString(book.Bids[0][0])
	if err != nil {
		return types.TopOfBook{}, fmt.Errorf("%w: bad bid %q", ErrTransport, book.Bids[0][0])
	}
	ask, err := decimal.NewFromString(book.Asks[0][0])
	if err != nil {
		return types.TopOfBook{}, fmt.Errorf("%w: bad ask %q", ErrTransport, book.Asks[0][0])
	}
	if !bid.IsPositive() || !ask.IsPositive() || ask.LessThanOrEqual(bid) {
		return types.TopOfBook{}, fmt.Errorf("%w: crossed or empty book %s/%s", ErrTransport, bid, ask)
	}
	return types.TopOfBook{Bid: bid, Ask: ask}, nil
}

// OpenOrders exposes the tracker snapshot for the engine's differ.
func (c *Client) OpenOrders() []types.Order {
	return c.book.ListOpen()
}

// allocOrderID derives a client order id from the microsecond clock modulo
// 2³¹−1, retrying until it is nonzero and not already tracked.
func (c *Client) allocOrderID() uint32 {
	for {
		id := uint32(c.now().UnixMicro() % (1<<31 - 1))
		if id != 0 && !c.book.Contains(id) {
			return id
		}
		time.Sleep(time.Microsecond)
	}
}
