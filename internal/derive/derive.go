// Package derive reconstructs a lead's per-symbol position state by
// replaying its order history. It is pure: no I/O, no clock, and the
// same ordered input always yields the same terminal state.
package derive

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order is one fill from a lead's order history.
type Order struct {
	OrderID      string
	Symbol       string
	Side         string // BUY or SELL
	PositionSide string // LONG or SHORT, informational
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	Leverage     decimal.Decimal
	Time         time.Time
}

// Lot is the running open position for one symbol. Size is signed:
// positive long, negative short, zero flat.
type Lot struct {
	Symbol     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	Leverage   decimal.Decimal

	OpenOrderID string
	FirstSeenAt time.Time
	OpenedAt    time.Time

	// Closed marks a lot that went to exactly zero and has not been
	// reopened since.
	Closed   bool
	ClosedAt time.Time
}

// Direction returns LONG, SHORT, or "" for a flat lot.
func (l *Lot) Direction() string {
	switch l.Size.Sign() {
	case 1:
		return "LONG"
	case -1:
		return "SHORT"
	default:
		return ""
	}
}

// Anomaly flags an order that could not be applied cleanly, usually a
// close larger than the open lot, which implies missing history.
type Anomaly struct {
	Symbol  string
	OrderID string
	Reason  string
}

// Replay applies the order history in strictly increasing time order
// (ties broken by order id) and returns the terminal lot per symbol.
//
// Rules: a fill in the lot's direction grows it and re-averages the
// entry price; a fill against it shrinks it without touching the entry;
// exactly zero closes the lot and clears the open metadata; crossing
// zero closes the lot and opens an opposite one at the crossing order's
// price and time, so a lot never carries a negative size.
func Replay(orders []Order) (map[string]*Lot, []Anomaly) {
	sorted := make([]Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Time.Equal(sorted[j].Time) {
			return sorted[i].Time.Before(sorted[j].Time)
		}
		return sorted[i].OrderID < sorted[j].OrderID
	})

	lots := map[string]*Lot{}
	var anomalies []Anomaly

	for _, o := range sorted {
		if o.Symbol == "" || o.Quantity.Sign() <= 0 {
			continue
		}
		delta := o.Quantity
		if o.Side == SideSell {
			delta = delta.Neg()
		} else if o.Side != SideBuy {
			continue
		}

		lot, ok := lots[o.Symbol]
		if !ok {
			lot = &Lot{Symbol: o.Symbol}
			lots[o.Symbol] = lot
		}

		oldSize := lot.Size
		newSize := oldSize.Add(delta)

		switch {
		case oldSize.IsZero():
			openLot(lot, o, newSize)

		case oldSize.Sign() == delta.Sign():
			// Growing the lot: volume-weighted entry over the whole lot.
			oldAbs := oldSize.Abs()
			newAbs := newSize.Abs()
			lot.EntryPrice = lot.EntryPrice.Mul(oldAbs).Add(o.Price.Mul(o.Quantity)).Div(newAbs)
			lot.Size = newSize

		case newSize.IsZero():
			closeLot(lot, o)

		case oldSize.Sign() == newSize.Sign():
			// Partial close: size shrinks, entry stays.
			lot.Size = newSize

		default:
			// Close larger than the lot: treat as full close plus a
			// fresh lot in the opposite direction at the crossing
			// order's price and time.
			anomalies = append(anomalies, Anomaly{
				Symbol:  o.Symbol,
				OrderID: o.OrderID,
				Reason:  "close exceeds open lot",
			})
			closeLot(lot, o)
			openLot(lot, o, newSize)
		}
	}

	return lots, anomalies
}

func openLot(lot *Lot, o Order, size decimal.Decimal) {
	lot.Size = size
	lot.EntryPrice = o.Price
	lot.Leverage = o.Leverage
	lot.OpenOrderID = o.OrderID
	lot.FirstSeenAt = o.Time
	lot.OpenedAt = o.Time
	lot.Closed = false
	lot.ClosedAt = time.Time{}
}

func closeLot(lot *Lot, o Order) {
	lot.Size = decimal.Zero
	lot.EntryPrice = decimal.Zero
	lot.Leverage = decimal.Zero
	lot.OpenOrderID = ""
	lot.FirstSeenAt = time.Time{}
	lot.OpenedAt = time.Time{}
	lot.Closed = true
	lot.ClosedAt = o.Time
}
