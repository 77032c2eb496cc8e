// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot: order sides and
// states, the local order record, candles, and top-of-book snapshots.
// It has no dependencies on internal packages, so it can be imported by
// any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

// Sign returns +1 for BUY and -1 for SELL. The wire protocol carries order
// size as a signed integer with this convention; the local order record
// keeps size unsigned and the side carries the sign.
func (s Side) Sign() int64 {
	if s == BUY {
		return 1
	}
	return -1
}

// OrderState is the lifecycle state of a locally tracked order.
type OrderState string

const (
	OrderOpen      OrderState = "open"
	OrderFilled    OrderState = "filled"
	OrderCancelled OrderState = "cancelled"
)

// Order is the local record of an order resting on the venue. The venue
// exposes no order-query endpoint, so this record is the authoritative view
// of what we believe is on the book.
//
// ID is the client order id: a 32-bit positive integer allocated locally,
// unique within the process lifetime. Price and Size are strictly positive;
// Size is unsigned and Side carries the sign convention used on the wire.
type Order struct {
	ID          uint32
	MarketID    uint32
	Side        Side
	Price       decimal.Decimal
	Size        decimal.Decimal
	SubmittedAt time.Time
	State       OrderState
}

// TopOfBook is the current best bid and best ask for the traded market.
type TopOfBook struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Mid returns the midpoint between best bid and best ask.
func (t TopOfBook) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

// Candle is a single OHLC bar from the indicator feed. Values are float64:
// the only consumer is oscillator math compared within tolerances, and
// every feed source delivers at most 8 significant digits.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// priceUnit is the venue's fixed-point scale: prices and sizes travel as
// integers in 10⁻⁸ units.
var priceUnit = decimal.New(1, 8) // 1e8

// ToWireUnits converts a decimal price or size to integer 10⁻⁸ units,
// rounding to the nearest unit.
func ToWireUnits(d decimal.Decimal) int64 {
	return d.Mul(priceUnit).Round(0).IntPart()
}

// FromWireUnits converts integer 10⁻⁸ units back to a decimal.
func FromWireUnits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Div(priceUnit)
}
