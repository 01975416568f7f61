package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"stratum/internal/candle"
	"stratum/internal/feed"
	"stratum/internal/render"
)

// Frame is one rendered chart image.
type Frame struct {
	Seq     uint64
	At      time.Time
	PNG     []byte
	Layout  render.Layout
	Candles []candle.Candle
}

// ChartView is the live candlestick chart of one instrument. Candles live only
// as long as the view.
type ChartView struct {
	ID         string
	Instrument feed.Instrument

	feed    feed.PriceFeed
	logger  zerolog.Logger
	alive   atomic.Bool
	onClose func()

	frameEvery time.Duration
	done       chan struct{}
	animWG     sync.WaitGroup

	mu        sync.Mutex
	agg       *candle.Aggregator
	renderer  *render.ChartRenderer
	size      render.Size
	frame     Frame
	subs      map[int]chan Frame
	nextSub   int
	animating bool
}

func newChartView(inst feed.Instrument, f feed.PriceFeed, candles candle.Options, chart render.Config, size render.Size, frameEvery time.Duration, logger zerolog.Logger) *ChartView {
	if frameEvery <= 0 {
		frameEvery = DefaultFrameInterval
	}
	id := ulid.Make().String()
	v := &ChartView{
		ID:         id,
		Instrument: inst,
		feed:       f,
		logger:     logger.With().Str("component", "chart_view").Str("view", id).Str("instrument", inst.ID).Logger(),
		agg:        candle.NewAggregator(candles),
		renderer:   render.NewChartRenderer(chart),
		size:       size,
		frameEvery: frameEvery,
		done:       make(chan struct{}),
		subs:       make(map[int]chan Frame),
	}
	v.alive.Store(true)
	v.mu.Lock()
	v.redraw(time.Now().UTC())
	v.mu.Unlock()
	return v
}

// Alive reports whether the view is still open.
func (v *ChartView) Alive() bool {
	return v.alive.Load()
}

// Poll fetches prices once and applies this view's instrument. Responses that
// arrive after Close are discarded.
func (v *ChartView) Poll(ctx context.Context, tick time.Time) error {
	if !v.Alive() {
		return ErrViewClosed
	}
	prices, err := v.feed.Prices(ctx)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	if !v.Alive() {
		v.logger.Debug().Msg("discarding response for closed view")
		return nil
	}
	raw, ok := feed.Lookup(prices, v.Instrument.ID)
	if !ok {
		return nil
	}
	price, err := feed.ParsePrice(raw)
	if err != nil {
		v.logger.Debug().Err(err).Msg("skip invalid sample")
		return nil
	}
	_, err = v.Observe(price, tick)
	return err
}

// Observe feeds one sample and redraws when the candles changed.
func (v *ChartView) Observe(price float64, at time.Time) (bool, error) {
	if !v.Alive() {
		return false, ErrViewClosed
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	// Close may have won the race since the check above
	if !v.Alive() {
		return false, ErrViewClosed
	}
	if !v.agg.Observe(price, at) {
		return false, nil
	}
	v.redraw(at)
	return true, nil
}

// Resize sets the host container size and redraws if it changed.
func (v *ChartView) Resize(size render.Size) error {
	if !v.Alive() {
		return ErrViewClosed
	}
	size = size.Normalize()
	if !size.Valid() {
		return fmt.Errorf("invalid chart size %vx%v", size.Width, size.Height)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.Alive() {
		return ErrViewClosed
	}
	if size == v.size {
		return nil
	}
	v.size = size
	v.redraw(time.Now().UTC())
	return nil
}

// Size returns the current container size.
func (v *ChartView) Size() render.Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

// Candles returns a copy of the candle sequence.
func (v *ChartView) Candles() []candle.Candle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.agg.Candles()
}

// Frame returns the latest rendered frame.
func (v *ChartView) Frame() (Frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame, v.frame.Seq > 0
}

// Settle redraws the current candles with the scroll anchor at rest and
// returns that frame.
func (v *ChartView) Settle() (Frame, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.Alive() {
		return Frame{}, ErrViewClosed
	}
	if !v.frame.Layout.Settled() {
		v.renderer.Settle()
		v.redraw(time.Now().UTC())
	}
	return v.frame, nil
}

// Subscribe returns a channel of frames, primed with the latest one. Slow
// readers miss intermediate frames but always see the newest. The returned
// func unsubscribes; the channel is closed on unsubscribe or Close.
func (v *ChartView) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)
	v.mu.Lock()
	if !v.Alive() {
		v.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch
	if v.frame.Seq > 0 {
		ch <- v.frame
	}
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if c, ok := v.subs[id]; ok {
				delete(v.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the view's poll loop and releases its candles and subscribers.
// It is safe to call more than once.
func (v *ChartView) Close() {
	if !v.alive.CompareAndSwap(true, false) {
		return
	}
	if v.onClose != nil {
		v.onClose()
	}
	// under the lock so no redraw can start a frame goroutine after the wait
	v.mu.Lock()
	close(v.done)
	v.mu.Unlock()
	v.animWG.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
	v.agg.Reset()
	v.renderer.Reset()
	v.logger.Info().Uint64("frames", v.frame.Seq).Msg("chart view closed")
}

// redraw renders the full chart and publishes it. A frame drawn with the
// anchor still moving schedules follow-up frames. Callers hold v.mu.
func (v *ChartView) redraw(at time.Time) {
	v.render(at)
	if !v.frame.Layout.Settled() && !v.animating && v.Alive() {
		v.animating = true
		v.animWG.Add(1)
		go v.animate()
	}
}

// animate redraws every frameEvery until the anchor comes to rest or the
// view closes.
func (v *ChartView) animate() {
	defer v.animWG.Done()
	ticker := time.NewTicker(v.frameEvery)
	defer ticker.Stop()
	for {
		select {
		case <-v.done:
			return
		case <-ticker.C:
		}
		v.mu.Lock()
		if !v.Alive() {
			v.mu.Unlock()
			return
		}
		v.render(time.Now().UTC())
		if v.frame.Layout.Settled() {
			v.animating = false
			v.mu.Unlock()
			return
		}
		v.mu.Unlock()
	}
}

func (v *ChartView) render(at time.Time) {
	candles := v.agg.Candles()
	var buf bytes.Buffer
	layout, err := v.renderer.RenderPNG(&buf, v.size, candles)
	if err != nil {
		v.logger.Error().Err(err).Msg("render chart failed")
		return
	}
	v.frame = Frame{
		Seq:     v.frame.Seq + 1,
		At:      at,
		PNG:     buf.Bytes(),
		Layout:  layout,
		Candles: candles,
	}
	for _, ch := range v.subs {
		publish(ch, v.frame)
	}
}

// publish replaces any unread frame with f.
func publish(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}
