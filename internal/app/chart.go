package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stratum/internal/dashboard"
)

// Chart opens a live chart view for opts.ID, waits until opts.Ticks candles
// have been drawn and writes the last frame as PNG.
func (a *App) Chart(ctx context.Context, opts ChartOptions) error {
	if opts.ID == "" {
		return errors.New("--id is required")
	}
	if opts.Ticks <= 0 {
		opts.Ticks = 1
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := a.newFeed()
	if err != nil {
		return err
	}
	a.warnPolling()

	dash := a.newDashboard(f, store)
	if err := dash.LoadInstruments(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("continuing without instrument metadata")
	}
	defer dash.Stop()

	wait := time.Duration(opts.Ticks+1)*a.Config.Scheduler.Interval*3 + 10*time.Second
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	view, err := dash.OpenChart(ctx, opts.ID, opts.Size)
	if err != nil {
		return err
	}
	frame, err := awaitCandles(ctx, view, opts.Ticks)
	if err != nil {
		return err
	}
	if rest, err := view.Settle(); err == nil {
		frame = rest
	}

	a.Logger.Info().Str("instrument", view.Instrument.ID).Int("candles", len(frame.Candles)).Msg("chart captured")
	if opts.PNGPath == "" {
		return nil
	}
	return writeFile(opts.PNGPath, frame.PNG)
}

func awaitCandles(ctx context.Context, view *dashboard.ChartView, n int) (dashboard.Frame, error) {
	frames, unsubscribe := view.Subscribe()
	defer unsubscribe()

	var last dashboard.Frame
	for {
		select {
		case <-ctx.Done():
			if len(last.Candles) > 0 {
				return last, nil
			}
			return last, fmt.Errorf("no samples for %s: %w", view.Instrument.ID, ctx.Err())
		case f, ok := <-frames:
			if !ok {
				return last, dashboard.ErrViewClosed
			}
			last = f
			if len(f.Candles) >= n {
				return f, nil
			}
		}
	}
}

func writeFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
