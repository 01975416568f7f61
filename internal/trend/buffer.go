// Package trend keeps the bounded, durable per-instrument price history that
// drives sparklines and percent-change display.
package trend

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"stratum/internal/kvstore"
)

// DefaultCapacity is the number of raw samples retained per instrument.
const DefaultCapacity = 50

// Snapshot is the observable state of one instrument's trend.
type Snapshot struct {
	Series        []float64
	ChangePercent float64
	BasePrice     float64
}

// Positive reports whether the change is non-negative.
func (s Snapshot) Positive() bool {
	return s.ChangePercent >= 0
}

type state struct {
	series  []float64
	base    float64
	hasBase bool
	change  float64
}

// Buffer holds trend state for every observed instrument and writes each
// mutation through to the store.
type Buffer struct {
	store    kvstore.Store
	capacity int
	logger   zerolog.Logger

	mu     sync.Mutex
	states map[string]*state
}

// New constructs a Buffer over store.
func New(store kvstore.Store, capacity int, logger zerolog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		store:    store,
		capacity: capacity,
		logger:   logger.With().Str("component", "trend").Logger(),
		states:   make(map[string]*state),
	}
}

// Capacity returns the series bound.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Load reads the persisted series for id. Missing or malformed data yields a
// flat series of currentPrice.
func (b *Buffer) Load(ctx context.Context, id string, currentPrice float64) []float64 {
	series, found := b.stored(ctx, id)
	if !found {
		return b.flat(currentPrice)
	}
	return series
}

// Stored returns the persisted series and change for id without any
// fallback. found is false when no usable series is stored.
func (b *Buffer) Stored(ctx context.Context, id string) (series []float64, change float64, found bool) {
	series, found = b.stored(ctx, id)
	if !found {
		return nil, 0, false
	}
	if raw, ok, err := b.store.Get(ctx, kvstore.ChangeKey(id)); err == nil && ok {
		change, _ = parseFinite(raw)
	}
	return series, change, true
}

func (b *Buffer) stored(ctx context.Context, id string) ([]float64, bool) {
	key := kvstore.SparklineKey(id)
	raw, found, err := b.store.Get(ctx, key)
	if err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("load trend failed; using flat series")
		return nil, false
	}
	if !found {
		return nil, false
	}

	var series []float64
	if err := json.Unmarshal([]byte(raw), &series); err != nil || len(series) == 0 {
		b.logger.Warn().Err(err).Str("key", key).Msg("malformed trend; using flat series")
		return nil, false
	}
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	if len(series) > b.capacity {
		series = series[len(series)-b.capacity:]
	}
	return series, true
}

// EnsureBasePrice sets the anchor for id only if none is stored, and returns
// the anchor in effect.
func (b *Buffer) EnsureBasePrice(ctx context.Context, id string, price float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.states[id]
	if st != nil && st.hasBase {
		return st.base
	}
	base := b.ensureBase(ctx, id, price)
	if st != nil {
		st.base, st.hasBase = base, true
	}
	return base
}

// Observe records price for id. It reports false, leaving state untouched,
// when price repeats the last value or is not a finite number.
func (b *Buffer) Observe(ctx context.Context, id string, price float64) (Snapshot, bool) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return b.Snapshot(id), false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.states[id]
	if st == nil {
		st = b.initState(ctx, id, price)
		b.states[id] = st
	}

	if n := len(st.series); n > 0 && st.series[n-1] == price {
		return st.snapshot(), false
	}

	st.series = append(st.series, price)
	if over := len(st.series) - b.capacity; over > 0 {
		st.series = append(st.series[:0:0], st.series[over:]...)
	}
	st.change = ChangePercent(price, st.base)

	b.persist(ctx, id, st)
	return st.snapshot(), true
}

// Snapshot returns the in-memory state for id; zero value if never observed.
func (b *Buffer) Snapshot(id string) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.states[id]
	if st == nil {
		return Snapshot{}
	}
	return st.snapshot()
}

// Forget drops the in-memory state for id; the store is untouched.
func (b *Buffer) Forget(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, id)
}

// ChangePercent is the move from base to price in percent, 0 when base is 0.
func ChangePercent(price, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (price - base) / base * 100
}

func (b *Buffer) initState(ctx context.Context, id string, price float64) *state {
	st := &state{series: b.Load(ctx, id, price)}
	st.base, st.hasBase = b.ensureBase(ctx, id, price), true

	key := kvstore.ChangeKey(id)
	if raw, found, err := b.store.Get(ctx, key); err == nil && found {
		if v, ok := parseFinite(raw); ok {
			st.change = v
		}
	}
	b.logger.Debug().Str("instrument", id).Float64("base_price", st.base).Int("points", len(st.series)).Msg("trend initialised")
	return st
}

func (b *Buffer) ensureBase(ctx context.Context, id string, price float64) float64 {
	key := kvstore.BasePriceKey(id)
	raw, found, err := b.store.Get(ctx, key)
	if err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("load base price failed; using current price")
		return price
	}
	if found {
		if v, ok := parseFinite(raw); ok {
			return v
		}
		b.logger.Warn().Str("key", key).Str("value", raw).Msg("malformed base price; resetting")
	}
	if err := b.store.Set(ctx, key, formatFloat(price)); err != nil {
		b.logger.Error().Err(err).Str("key", key).Msg("persist base price failed")
	}
	return price
}

func (b *Buffer) persist(ctx context.Context, id string, st *state) {
	encoded, err := json.Marshal(st.series)
	if err != nil {
		b.logger.Error().Err(err).Str("instrument", id).Msg("encode trend failed")
		return
	}
	if err := b.store.Set(ctx, kvstore.SparklineKey(id), string(encoded)); err != nil {
		b.logger.Error().Err(err).Str("instrument", id).Msg("persist trend failed")
	}
	if err := b.store.Set(ctx, kvstore.ChangeKey(id), formatFloat(st.change)); err != nil {
		b.logger.Error().Err(err).Str("instrument", id).Msg("persist change failed")
	}
}

func (b *Buffer) flat(price float64) []float64 {
	series := make([]float64, b.capacity)
	for i := range series {
		series[i] = price
	}
	return series
}

func (s *state) snapshot() Snapshot {
	series := make([]float64, len(s.series))
	copy(series, s.series)
	return Snapshot{Series: series, ChangePercent: s.change, BasePrice: s.base}
}

func parseFinite(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
