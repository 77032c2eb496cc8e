// Package tracker maintains the local order model. The venue has no
// order-query endpoint, so this book is the only record of what is resting
// on the exchange; the engine reconciles grid plans against it and the
// adapter records every place and cancel outcome here.
package tracker

import (
	"sync"

	"github.com/shopspring/decimal"

	"zo-gridbot/pkg/types"
)

// historyLimit bounds the retained done-order list.
const historyLimit = 512

// levelKey buckets a price to whole cents so that venue rounding of the
// eighth decimal cannot split one logical level into two.
type levelKey struct {
	side  types.Side
	cents int64
}

var centUnit = decimal.New(1, 2) // 1e2

func keyFor(side types.Side, price decimal.Decimal) levelKey {
	return levelKey{side: side, cents: price.Mul(centUnit).Round(0).IntPart()}
}

// Book is the mutex-serialized order store: an id-keyed map of open orders
// plus a (side, cent-bucket) secondary index used by the grid differ.
type Book struct {
	mu      sync.Mutex
	open    map[uint32]types.Order
	byLevel map[levelKey]uint32
	history []types.Order
	filled  int
	cancels int
}

// New returns an empty book.
func New() *Book {
	return &Book{
		open:    make(map[uint32]types.Order),
		byLevel: make(map[levelKey]uint32),
	}
}

// Add records a newly posted order. It returns false if the id is already
// tracked; the caller must allocate a fresh id and retry.
func (b *Book) Add(o types.Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.open[o.ID]; exists {
		return false
	}
	o.State = types.OrderOpen
	b.open[o.ID] = o
	b.byLevel[keyFor(o.Side, o.Price)] = o.ID
	return true
}

// Contains reports whether id is an open order.
func (b *Book) Contains(id uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.open[id]
	return ok
}

// Remove retires an open order into history with the given terminal state
// and returns the removed order. ok is false when id is not open.
func (b *Book) Remove(id uint32, state types.OrderState) (types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.open[id]
	if !ok {
		return types.Order{}, false
	}
	delete(b.open, id)
	k := keyFor(o.Side, o.Price)
	if b.byLevel[k] == id {
		delete(b.byLevel, k)
	}
	o.State = state
	switch state {
	case types.OrderFilled:
		b.filled++
	case types.OrderCancelled:
		b.cancels++
	}
	b.history = append(b.history, o)
	if len(b.history) > historyLimit {
		b.history = b.history[len(b.history)-historyLimit:]
	}
	return o, true
}

// FindByPrice returns the open order at the given side and price level, if
// any. Matching is at 1¢ granularity.
func (b *Book) FindByPrice(side types.Side, price decimal.Decimal) (types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.byLevel[keyFor(side, price)]
	if !ok {
		return types.Order{}, false
	}
	o, ok := b.open[id]
	return o, ok
}

// ListOpen returns a snapshot of all open orders.
func (b *Book) ListOpen() []types.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Order, 0, len(b.open))
	for _, o := range b.open {
		out = append(out, o)
	}
	return out
}

// OpenCount returns the number of open orders.
func (b *Book) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.open)
}

// Counters returns lifetime fill and cancel counts for status logs.
func (b *Book) Counters() (filled, cancelled int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filled, b.cancels
}

// History returns a snapshot of retired orders, oldest first.
func (b *Book) History() []types.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Order, len(b.history))
	copy(out, b.history)
	return out
}
