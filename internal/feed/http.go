package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL         = "https://main-crypto.onrender.com"
	defaultPricesPath      = "/price"
	defaultInstrumentsPath = "/coins"
)

// HTTPOptions parameterise the REST price table feed.
type HTTPOptions struct {
	BaseURL         string
	PricesPath      string
	InstrumentsPath string
	Timeout         time.Duration
	UserAgent       string
}

// HTTP fetches the price table and instrument list over REST.
type HTTP struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTP constructs a REST feed.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if opts.PricesPath == "" {
		opts.PricesPath = defaultPricesPath
	}
	if opts.InstrumentsPath == "" {
		opts.InstrumentsPath = defaultInstrumentsPath
	}

	return &HTTP{
		opts:    opts,
		logger:  logger.With().Str("component", "http_feed").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Prices returns the symbol to price table. Numeric JSON values are kept in
// their literal form.
func (h *HTTP) Prices(ctx context.Context) (map[string]string, error) {
	payload, err := h.get(ctx, h.opts.PricesPath)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode price table: %w", err)
	}

	prices := make(map[string]string, len(raw))
	for symbol, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			prices[symbol] = s
			continue
		}
		if lit := strings.TrimSpace(string(v)); lit != "" && lit != "null" {
			prices[symbol] = lit
		}
	}
	h.logger.Debug().Int("symbols", len(prices)).Msg("price table fetched")
	return prices, nil
}

// Instruments returns the instrument list. Both an array of {id, name} and an
// object keyed by id are accepted; the latter is ordered by id.
func (h *HTTP) Instruments(ctx context.Context) ([]Instrument, error) {
	payload, err := h.get(ctx, h.opts.InstrumentsPath)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var byID map[string]string
		if err := json.Unmarshal(trimmed, &byID); err != nil {
			return nil, fmt.Errorf("decode instruments: %w", err)
		}
		out := make([]Instrument, 0, len(byID))
		for id, name := range byID {
			out = append(out, Instrument{ID: id, Name: name})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	}

	var out []Instrument
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	return out, nil
}

func (h *HTTP) get(ctx context.Context, path string) ([]byte, error) {
	endpoint := h.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "stratum/1.0")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}
	return payload, nil
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("price api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("price api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("price api error (%d)", status)
}

var _ PriceFeed = (*HTTP)(nil)
