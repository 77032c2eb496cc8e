// Package strategy builds the grid ladder and diffs it against the local
// order book. The planner is pure decimal arithmetic over a top-of-book
// snapshot and the current position; the differ turns the plan into the
// minimal cancel/place set.
package strategy

import (
	"sort"

	"github.com/shopspring/decimal"

	"zo-gridbot/pkg/types"
)

var (
	half  = decimal.RequireFromString("0.5")
	one   = decimal.NewFromInt(1)
	cents = decimal.New(1, 2)
)

// Params are the static grid parameters, validated at boot.
type Params struct {
	TotalOrders   int             // N, split across both sides
	Window        decimal.Decimal // half-width of the price window as a fraction of mid
	OrderSize     decimal.Decimal // o, size per rung
	Offset        decimal.Decimal // δ, distance of the first rung from the touch
	Step          decimal.Decimal // g, spacing between consecutive rungs
	MaxMultiplier decimal.Decimal // k_max, position cap in units of o
	MinValidPrice decimal.Decimal // sanity floor for quotes; zero disables
}

// Rung is one target quote level.
type Rung struct {
	Side  types.Side
	Price decimal.Decimal
}

// Plan is the full target ladder for one tick.
type Plan struct {
	Mid   decimal.Decimal
	Rungs []Rung
}

// SideSplit returns how many of the total rungs go to each side given the
// signed position. The skew is linear in k = |position|/orderSize up to
// k_max, at which point only the reducing side quotes.
func SideSplit(position, orderSize, maxMultiplier decimal.Decimal, total int) (buys, sells int) {
	n := decimal.NewFromInt(int64(total))
	if position.IsZero() {
		each := n.Mul(half).Floor().IntPart()
		return int(each), int(each)
	}
	k := position.Abs().Div(orderSize)
	if k.GreaterThanOrEqual(maxMultiplier) {
		if position.IsPositive() {
			return 0, total
		}
		return total, 0
	}
	r := k.Div(maxMultiplier)
	grow := half.Mul(one.Add(r))   // reducing side
	shrink := half.Mul(one.Sub(r)) // accumulating side
	growN := n.Mul(grow).Floor().IntPart()
	shrinkN := n.Mul(shrink).Floor().IntPart()
	if position.IsPositive() {
		return int(shrinkN), int(growN)
	}
	return int(growN), int(shrinkN)
}

// BuildPlan lays out the ladder: sells at ask+δ, ask+δ+g, …, buys at
// bid−δ, bid−δ−g, …, with per-side counts from SideSplit and every rung
// clipped to the window around mid.
func BuildPlan(p Params, book types.TopOfBook, position decimal.Decimal) Plan {
	mid := book.Mid()
	low := mid.Mul(one.Sub(p.Window))
	high := mid.Mul(one.Add(p.Window))

	buys, sells := SideSplit(position, p.OrderSize, p.MaxMultiplier, p.TotalOrders)

	rungs := make([]Rung, 0, buys+sells)
	price := book.Ask.Add(p.Offset)
	for i := 0; i < sells; i++ {
		if price.LessThanOrEqual(high) && p.validPrice(price) {
			rungs = append(rungs, Rung{Side: types.SELL, Price: price})
		}
		price = price.Add(p.Step)
	}
	price = book.Bid.Sub(p.Offset)
	for i := 0; i < buys; i++ {
		if price.GreaterThanOrEqual(low) && p.validPrice(price) {
			rungs = append(rungs, Rung{Side: types.BUY, Price: price})
		}
		price = price.Sub(p.Step)
	}
	return Plan{Mid: mid, Rungs: rungs}
}

func (p Params) validPrice(price decimal.Decimal) bool {
	if !price.IsPositive() {
		return false
	}
	if p.MinValidPrice.IsPositive() && price.LessThan(p.MinValidPrice) {
		return false
	}
	return true
}

// Actions is the reconcile output: cancels are executed first, farthest
// from mid first; places follow, nearest to mid first.
type Actions struct {
	Cancels []types.Order
	Places  []Rung
}

// Diff compares the plan against the open orders. Levels match when side
// and cent-rounded price agree, so venue rounding of the eighth decimal
// cannot force a churn of cancels and replacements.
func Diff(plan Plan, open []types.Order) Actions {
	type level struct {
		side  types.Side
		cents int64
	}
	toCents := func(side types.Side, price decimal.Decimal) level {
		return level{side: side, cents: price.Mul(cents).Round(0).IntPart()}
	}

	want := make(map[level]Rung, len(plan.Rungs))
	for _, r := range plan.Rungs {
		want[toCents(r.Side, r.Price)] = r
	}

	var out Actions
	have := make(map[level]bool, len(open))
	for _, o := range open {
		k := toCents(o.Side, o.Price)
		if _, ok := want[k]; ok && !have[k] {
			have[k] = true
			continue
		}
		out.Cancels = append(out.Cancels, o)
	}
	for k, r := range want {
		if !have[k] {
			out.Places = append(out.Places, r)
		}
	}

	distance := func(p decimal.Decimal) decimal.Decimal { return p.Sub(plan.Mid).Abs() }
	sort.Slice(out.Cancels, func(i, j int) bool {
		return distance(out.Cancels[i].Price).GreaterThan(distance(out.Cancels[j].Price))
	})
	sort.Slice(out.Places, func(i, j int) bool {
		return distance(out.Places[i].Price).LessThan(distance(out.Places[j].Price))
	})
	return out
}
