package domain

import "time"

// PriceTick is one simulated time step.
type PriceTick struct {
	Index     int64     // 0-based position in the session history
	Timestamp time.Time // simulated time
	Price     float64   // > 0
	Volume    float64   // >= 0
}

// ValuePoint is one sample of portfolio equity.
type ValuePoint struct {
	Timestamp time.Time
	Value     float64
}
