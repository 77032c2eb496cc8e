package strategy

import (
	"sync"

	"github.com/shopspring/decimal"

	"zo-gridbot/pkg/types"
)

// Position is the signed instrument position: positive long, negative
// short. No venue read exists for it, so it is seeded from configuration
// and updated on every discovered fill.
type Position struct {
	mu  sync.Mutex
	net decimal.Decimal
}

// NewPosition seeds the record.
func NewPosition(initial decimal.Decimal) *Position {
	return &Position{net: initial}
}

// ApplyFill folds a filled order into the position: buys add, sells
// subtract. Returns the new net position.
func (p *Position) ApplyFill(o types.Order) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	signed := o.Size.Mul(decimal.NewFromInt(o.Side.Sign()))
	p.net = p.net.Add(signed)
	return p.net
}

// Reset zeroes the position after a confirmed flatten.
func (p *Position) Reset() {
	p.mu.Lock()
	p.net = decimal.Zero
	p.mu.Unlock()
}

// Net returns the current signed position.
func (p *Position) Net() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.net
}

// Multiplier returns |position| / orderSize, the k used for grid skew.
func (p *Position) Multiplier(orderSize decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.net.Abs().Div(orderSize)
}
