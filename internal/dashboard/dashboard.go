// Package dashboard ties the price feed to trend cards and live chart views.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stratum/internal/candle"
	"stratum/internal/config"
	"stratum/internal/feed"
	"stratum/internal/render"
	"stratum/internal/scheduler"
	"stratum/internal/trend"
)

const cardsLoop = "cards"

// DefaultFrameInterval paces the redraws that carry a chart to rest.
const DefaultFrameInterval = 50 * time.Millisecond

// ErrViewClosed is returned by operations on a torn down chart view.
var ErrViewClosed = errors.New("chart view closed")

// Options configure a Dashboard.
type Options struct {
	Scheduler     scheduler.Options
	Candles       candle.Options
	Chart         render.Config
	DefaultSize   render.Size
	FrameInterval time.Duration
}

// OptionsFromConfig derives dashboard options from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Scheduler: scheduler.Options{
			Interval:     cfg.Scheduler.Interval,
			AlignToStart: cfg.Scheduler.AlignToBucket,
			StartupDelay: cfg.Scheduler.StartupDelay,
			Immediate:    true,
		},
		Candles: candle.Options{
			Mode:     candle.Mode(cfg.Candles.Mode),
			Capacity: cfg.Candles.Capacity,
			Interval: cfg.Candles.Interval,
		},
		Chart:         render.ConfigFromChart(cfg.Chart),
		DefaultSize:   render.Size{Width: cfg.Chart.Width, Height: cfg.Chart.Height, DPR: cfg.Chart.DPR},
		FrameInterval: cfg.Chart.FrameInterval,
	}
}

// Card is the list entry for one priced instrument.
type Card struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"change_percent"`
	Positive      bool      `json:"positive"`
	Trend         []float64 `json:"trend"`
	Icon          string    `json:"icon"`
}

// Dashboard polls the feed for the card list and owns every open chart view.
type Dashboard struct {
	feed     feed.PriceFeed
	trends   *trend.Buffer
	opts     Options
	logger   zerolog.Logger
	loops    *scheduler.Registry
	interval time.Duration

	mu          sync.RWMutex
	instruments []feed.Instrument
	prices      map[string]string
	polledAt    time.Time
	views       map[string]*ChartView
}

// New constructs a dashboard. Nothing runs until Start.
func New(f feed.PriceFeed, trends *trend.Buffer, opts Options, logger zerolog.Logger) *Dashboard {
	if opts.Scheduler.Interval <= 0 {
		opts.Scheduler.Interval = time.Second
	}
	if !opts.DefaultSize.Valid() {
		opts.DefaultSize = render.Size{Width: 500, Height: 400, DPR: 1}
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	return &Dashboard{
		feed:     f,
		trends:   trends,
		opts:     opts,
		logger:   logger.With().Str("component", "dashboard").Logger(),
		loops:    scheduler.NewRegistry(logger),
		interval: opts.Scheduler.Interval,
		prices:   make(map[string]string),
		views:    make(map[string]*ChartView),
	}
}

// LoadInstruments fetches the instrument list. On failure the previous list
// is kept.
func (d *Dashboard) LoadInstruments(ctx context.Context) error {
	list, err := d.feed.Instruments(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("fetch instruments failed")
		return fmt.Errorf("fetch instruments: %w", err)
	}
	d.mu.Lock()
	d.instruments = list
	d.mu.Unlock()
	d.logger.Info().Int("instruments", len(list)).Msg("instruments loaded")
	return nil
}

// Instruments returns the loaded instrument list.
func (d *Dashboard) Instruments() []feed.Instrument {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]feed.Instrument, len(d.instruments))
	copy(out, d.instruments)
	return out
}

// Poll fetches the price table once and feeds every priced instrument into
// its trend. A failed fetch keeps the previous table.
func (d *Dashboard) Poll(ctx context.Context, tick time.Time) error {
	prices, err := d.feed.Prices(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("fetch prices failed; keeping previous table")
		return fmt.Errorf("fetch prices: %w", err)
	}

	d.mu.Lock()
	d.prices = prices
	d.polledAt = tick
	instruments := d.instruments
	d.mu.Unlock()

	updated := 0
	for _, inst := range instruments {
		raw, ok := feed.Lookup(prices, inst.ID)
		if !ok {
			continue
		}
		price, err := feed.ParsePrice(raw)
		if err != nil {
			d.logger.Debug().Err(err).Str("instrument", inst.ID).Msg("skip unpriced instrument")
			continue
		}
		if _, changed := d.trends.Observe(ctx, inst.ID, price); changed {
			updated++
		}
	}
	d.logger.Debug().Int("symbols", len(prices)).Int("updated", updated).Msg("poll complete")
	return nil
}

// Cards lists priced instruments whose name contains query, case
// insensitively. Instruments with a missing or zero price are hidden.
func (d *Dashboard) Cards(query string) []Card {
	query = strings.ToLower(strings.TrimSpace(query))

	d.mu.RLock()
	instruments := d.instruments
	prices := d.prices
	d.mu.RUnlock()

	cards := make([]Card, 0, len(instruments))
	for _, inst := range instruments {
		if query != "" && !strings.Contains(strings.ToLower(inst.Name), query) {
			continue
		}
		if card, ok := d.card(inst, prices); ok {
			cards = append(cards, card)
		}
	}
	return cards
}

// Card returns the card for id, matched case insensitively.
func (d *Dashboard) Card(id string) (Card, bool) {
	inst, found := d.instrument(id)
	if !found {
		return Card{}, false
	}
	d.mu.RLock()
	prices := d.prices
	d.mu.RUnlock()
	return d.card(inst, prices)
}

func (d *Dashboard) card(inst feed.Instrument, prices map[string]string) (Card, bool) {
	raw, ok := feed.Lookup(prices, inst.ID)
	if !ok {
		return Card{}, false
	}
	price, err := feed.ParsePrice(raw)
	if err != nil {
		return Card{}, false
	}
	snap := d.trends.Snapshot(inst.ID)
	return Card{
		ID:            inst.ID,
		Symbol:        strings.ToUpper(inst.ID),
		Name:          inst.Name,
		Price:         price,
		ChangePercent: snap.ChangePercent,
		Positive:      snap.Positive(),
		Trend:         snap.Series,
		Icon:          IconPath(inst.ID),
	}, true
}

// Trend returns the trend snapshot for id.
func (d *Dashboard) Trend(id string) trend.Snapshot {
	if inst, ok := d.instrument(id); ok {
		id = inst.ID
	}
	return d.trends.Snapshot(id)
}

// IconPath is the icon URL for an instrument id.
func IconPath(id string) string {
	return "/icons/" + strings.ToLower(id) + ".svg"
}

func (d *Dashboard) instrument(id string) (feed.Instrument, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, inst := range d.instruments {
		if strings.EqualFold(inst.ID, id) {
			return inst, true
		}
	}
	return feed.Instrument{}, false
}

// Start loads instruments if none are loaded and launches the card poll loop.
func (d *Dashboard) Start(ctx context.Context) {
	if len(d.Instruments()) == 0 {
		// the list is fetched once; cards stay empty until a restart if this fails
		_ = d.LoadInstruments(ctx)
	}
	d.loops.Start(ctx, cardsLoop, scheduler.New(d.opts.Scheduler, d.logger), d.Poll)
	d.logger.Info().Dur("interval", d.interval).Msg("card polling started")
}

// Stop cancels the card loop and closes every chart view.
func (d *Dashboard) Stop() {
	d.loops.Stop(cardsLoop)
	for _, v := range d.Views() {
		v.Close()
	}
	d.loops.StopAll()
	d.logger.Info().Msg("dashboard stopped")
}

// OpenChart creates a chart view for id with its own poll loop. An id with
// no matching metadata opens with an empty name.
func (d *Dashboard) OpenChart(ctx context.Context, id string, size render.Size) (*ChartView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("instrument id required")
	}
	if size.Width <= 0 || size.Height <= 0 {
		size = d.opts.DefaultSize
	}
	size = size.Normalize()

	inst, found := d.instrument(id)
	if !found {
		inst = feed.Instrument{ID: id}
		d.logger.Warn().Str("instrument", id).Msg("no metadata for instrument; opening unnamed chart")
	}

	view := newChartView(inst, d.feed, d.opts.Candles, d.opts.Chart, size, d.opts.FrameInterval, d.logger)
	key := viewLoop(view.ID)
	view.onClose = func() {
		d.loops.Stop(key)
		d.mu.Lock()
		delete(d.views, view.ID)
		d.mu.Unlock()
	}

	// the loop exists before the view is reachable, so any Close stops it
	d.loops.Start(ctx, key, scheduler.New(d.opts.Scheduler, view.logger), view.Poll)

	d.mu.Lock()
	d.views[view.ID] = view
	d.mu.Unlock()

	view.logger.Info().Str("name", inst.Name).Msg("chart view opened")
	return view, nil
}

// CloseChart closes the view with viewID. It reports whether one was open.
func (d *Dashboard) CloseChart(viewID string) bool {
	v, ok := d.View(viewID)
	if !ok {
		return false
	}
	v.Close()
	return true
}

// View returns an open chart view.
func (d *Dashboard) View(viewID string) (*ChartView, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.views[viewID]
	return v, ok
}

// Views returns the open chart views ordered by id.
func (d *Dashboard) Views() []*ChartView {
	d.mu.RLock()
	out := make([]*ChartView, 0, len(d.views))
	for _, v := range d.views {
		out = append(out, v)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func viewLoop(id string) string {
	return "chart:" + id
}
