package domain

import "time"

// Side is the direction of an order.
type Side string

// Order side constants
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the lifecycle state of a grid order.
type OrderStatus string

// Order status constants
const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
)

// GridOrder is a resting limit order placed once at grid creation.
type GridOrder struct {
	ID         string
	GridID     string
	TokenID    string
	Side       Side
	Amount     float64 // token units
	LimitPrice float64
	Status     OrderStatus
	Fill       *OrderFill // set once filled, immutable thereafter
}

// OrderFill holds the realized terms of a filled order.
type OrderFill struct {
	Price       float64 // realized price after slippage
	MarketPrice float64 // tick price that triggered the fill
	Slippage    float64 // applied slippage fraction
	Fee         float64
	FilledAt    time.Time
}

// BeatLimit reports whether the realized price improved on the limit.
func (o *GridOrder) BeatLimit() bool {
	if o.Fill == nil {
		return false
	}
	if o.Side == SideBuy {
		return o.Fill.Price < o.LimitPrice
	}
	return o.Fill.Price > o.LimitPrice
}

// Clone returns a deep copy.
func (o *GridOrder) Clone() *GridOrder {
	c := *o
	if o.Fill != nil {
		f := *o.Fill
		c.Fill = &f
	}
	return &c
}
