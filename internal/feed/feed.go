// Package feed provides price table sources for the dashboard.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stratum/internal/config"
)

// ErrInvalidPrice marks a price string that is not a positive number.
var ErrInvalidPrice = errors.New("invalid price")

// Instrument is a tracked symbol and its display name.
type Instrument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PriceFeed retrieves the current price table and the instrument list.
type PriceFeed interface {
	Prices(ctx context.Context) (map[string]string, error)
	Instruments(ctx context.Context) ([]Instrument, error)
}

// New builds the feed selected by cfg.Driver.
func New(cfg config.FeedConfig, logger zerolog.Logger) (PriceFeed, error) {
	switch cfg.Driver {
	case config.FeedHTTP, "":
		return NewHTTP(HTTPOptions{
			BaseURL:         cfg.HTTP.BaseURL,
			PricesPath:      cfg.HTTP.PricesPath,
			InstrumentsPath: cfg.HTTP.InstrumentsPath,
			Timeout:         cfg.HTTP.RequestTimeout,
			UserAgent:       cfg.HTTP.UserAgent,
		}, logger), nil
	case config.FeedChainlink:
		feeds := make([]ChainlinkFeed, 0, len(cfg.Chainlink.Feeds))
		for _, f := range cfg.Chainlink.Feeds {
			feeds = append(feeds, ChainlinkFeed{ID: f.ID, Name: f.Name, Address: f.Address})
		}
		return NewChainlink(ChainlinkOptions{
			RPCURL:  cfg.Chainlink.RPCURL,
			Timeout: cfg.Chainlink.RequestTimeout,
			Feeds:   feeds,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown feed driver %q", cfg.Driver)
	}
}

// ParsePrice decodes a feed price string. Zero, negative and non-numeric
// values yield ErrInvalidPrice.
func ParsePrice(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidPrice, raw, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w %q: not positive", ErrInvalidPrice, raw)
	}
	f, _ := d.Float64()
	return f, nil
}

// Lookup finds the price of id in a table keyed by upper-case symbol.
func Lookup(prices map[string]string, id string) (string, bool) {
	if v, ok := prices[strings.ToUpper(id)]; ok {
		return v, true
	}
	v, ok := prices[id]
	return v, ok
}

// Static replays a fixed sequence of price tables. The last table repeats
// once the sequence is exhausted.
type Static struct {
	instruments []Instrument

	mu    sync.Mutex
	ticks []map[string]string
	next  int
}

// NewStatic constructs a replaying feed.
func NewStatic(instruments []Instrument, ticks ...map[string]string) *Static {
	return &Static{instruments: instruments, ticks: ticks}
}

// Prices returns the next table.
func (s *Static) Prices(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ticks) == 0 {
		return map[string]string{}, nil
	}
	i := s.next
	if i >= len(s.ticks) {
		i = len(s.ticks) - 1
	} else {
		s.next++
	}
	out := make(map[string]string, len(s.ticks[i]))
	for k, v := range s.ticks[i] {
		out[k] = v
	}
	return out, nil
}

// Instruments returns the configured instruments.
func (s *Static) Instruments(ctx context.Context) ([]Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Instrument, len(s.instruments))
	copy(out, s.instruments)
	return out, nil
}

// Remaining reports how many tables have not been served yet.
func (s *Static) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks) - s.next
}

var _ PriceFeed = (*Static)(nil)
