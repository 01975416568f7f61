package candle

import (
	"time"

	"github.com/shopspring/decimal"
)

// Options tune aggregation.
type Options struct {
	Mode     Mode
	Capacity int
	Interval time.Duration
}

// Aggregator folds price samples into a bounded sequence of candles.
// It is not safe for concurrent use; the owning chart view serialises access.
type Aggregator struct {
	opts Options

	closed  []Candle
	current *Candle
	bucket  time.Time
	nextSeq uint64
}

// NewAggregator constructs an empty aggregator, filling unset options with defaults.
func NewAggregator(opts Options) *Aggregator {
	if opts.Mode == "" {
		opts.Mode = ModeTick
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Aggregator{opts: opts}
}

// Options returns the effective options.
func (a *Aggregator) Options() Options {
	return a.opts
}

// Empty reports whether no valid sample has been observed yet.
func (a *Aggregator) Empty() bool {
	return a.current == nil
}

// Observe applies one sample and reports whether the candle set changed.
func (a *Aggregator) Observe(price float64, at time.Time) bool {
	if !ValidPrice(price) {
		return false
	}

	bucket := a.bucketOf(at)
	if a.current == nil {
		a.open(price, price, bucket)
		return true
	}

	if a.opts.Mode == ModeInterval && bucket.Equal(a.bucket) {
		a.current.extend(price)
		return true
	}

	prev := *a.current
	a.push(prev)
	if a.opts.Mode == ModeInterval {
		a.open(prev.Close, price, bucket)
	} else {
		a.open(price, price, bucket)
	}
	return true
}

// ObserveString parses a feed price string before applying it.
func (a *Aggregator) ObserveString(raw string, at time.Time) bool {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return a.Observe(d.InexactFloat64(), at)
}

// Candles returns the visible candles, oldest first.
func (a *Aggregator) Candles() []Candle {
	n := len(a.closed)
	if a.current != nil {
		n++
	}
	out := make([]Candle, 0, n)
	out = append(out, a.closed...)
	if a.current != nil {
		out = append(out, *a.current)
	}
	return out
}

// Last returns the current candle.
func (a *Aggregator) Last() (Candle, bool) {
	if a.current == nil {
		return Candle{}, false
	}
	return *a.current, true
}

// Reset discards every candle.
func (a *Aggregator) Reset() {
	a.closed = nil
	a.current = nil
	a.bucket = time.Time{}
}

func (a *Aggregator) open(open, price float64, bucket time.Time) {
	c := Candle{
		Seq:   a.nextSeq,
		Time:  bucket.Format(labelLayout),
		Start: bucket,
		Open:  open,
		High:  open,
		Low:   open,
		Close: open,
	}
	c.extend(price)
	a.nextSeq++
	a.current = &c
	a.bucket = bucket
}

// push closes c into the sequence, leaving room for the candle about to open.
func (a *Aggregator) push(c Candle) {
	a.closed = append(a.closed, c)
	if over := len(a.closed) - (a.opts.Capacity - 1); over > 0 {
		a.closed = append(a.closed[:0:0], a.closed[over:]...)
	}
}

func (a *Aggregator) bucketOf(at time.Time) time.Time {
	if a.opts.Mode == ModeInterval {
		return at.Truncate(a.opts.Interval)
	}
	return at
}
