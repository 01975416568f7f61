package candle

import (
	"math"
	"time"
)

const (
	// DefaultCapacity bounds the visible candle sequence.
	DefaultCapacity = 30
	// DefaultInterval is the wall-clock bucket width in interval mode.
	DefaultInterval = time.Minute

	labelLayout = "15:04"
)

// Mode selects how samples are bucketed into candles.
type Mode string

const (
	// ModeTick opens one candle per observed sample.
	ModeTick Mode = "tick"
	// ModeInterval accumulates samples into fixed wall-clock buckets.
	ModeInterval Mode = "interval"
)

// Candle is one OHLC summary.
type Candle struct {
	Seq   uint64    `json:"seq"`
	Time  string    `json:"time"`
	Start time.Time `json:"start"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Up reports whether the candle closed at or above its open.
func (c Candle) Up() bool {
	return c.Close >= c.Open
}

func (c *Candle) extend(price float64) {
	c.Close = price
	c.High = math.Max(c.High, price)
	c.Low = math.Min(c.Low, price)
}

// ValidPrice rejects samples that cannot seed or extend a candle.
func ValidPrice(price float64) bool {
	return !math.IsNaN(price) && !math.IsInf(price, 0) && price > 0
}
