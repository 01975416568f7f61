package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"stratum/internal/candle"
	"stratum/internal/dashboard"
	"stratum/internal/feed"
	"stratum/internal/kvstore"
	"stratum/internal/scheduler"
	"stratum/internal/trend"
)

// Simulate replays opts.Prices through a static feed into a chart view, one
// price per scheduler interval, and prints the resulting candles.
func (a *App) Simulate(ctx context.Context, w io.Writer, opts SimulateOptions) error {
	if len(opts.Prices) == 0 {
		return errors.New("--prices requires at least one price")
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = "SIM"
	}
	symbol := strings.ToUpper(id)

	ticks := make([]map[string]string, len(opts.Prices))
	for i, p := range opts.Prices {
		ticks[i] = map[string]string{symbol: strings.TrimSpace(p)}
	}
	f := feed.NewStatic([]feed.Instrument{{ID: id, Name: "Simulated"}}, ticks...)

	dopts := dashboard.OptionsFromConfig(a.Config)
	// ticks are driven by hand below
	dopts.Scheduler = scheduler.Options{Interval: time.Hour}
	dash := dashboard.New(f, trend.New(kvstore.NewMemory(), a.Config.Trend.Capacity, a.Logger), dopts, a.Logger)
	if err := dash.LoadInstruments(ctx); err != nil {
		return err
	}
	defer dash.Stop()

	view, err := dash.OpenChart(ctx, id, opts.Size)
	if err != nil {
		return err
	}

	step := a.Config.Scheduler.Interval
	start := time.Now().UTC()
	if dopts.Candles.Mode == candle.ModeInterval {
		start = start.Truncate(dopts.Candles.Interval)
	}
	for i := range opts.Prices {
		if err := view.Poll(ctx, start.Add(time.Duration(i)*step)); err != nil {
			return fmt.Errorf("tick %d: %w", i, err)
		}
	}

	frame, err := view.Settle()
	if err != nil {
		return err
	}
	if len(frame.Candles) == 0 {
		return errors.New("no valid prices; nothing to chart")
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Seq\tTime\tOpen\tHigh\tLow\tClose")
	for _, k := range frame.Candles {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\n",
			k.Seq, k.Time, fixed(k.Open), fixed(k.High), fixed(k.Low), fixed(k.Close))
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if opts.PNGPath == "" {
		return nil
	}
	if err := writeFile(opts.PNGPath, frame.PNG); err != nil {
		return err
	}
	a.Logger.Info().Str("path", opts.PNGPath).Int("candles", len(frame.Candles)).Msg("simulated chart written")
	return nil
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
