package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"

	"stratum/internal/render"
	"stratum/internal/trend"
)

// Export writes the stored trend of opts.ID as a sparkline and/or CSV.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.ID == "" {
		return errors.New("--id is required")
	}
	if opts.CSVPath == "" && opts.SVGPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv, --svg or --png must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	buf := trend.New(store, a.Config.Trend.Capacity, a.Logger)
	series, change, found := buf.Stored(ctx, opts.ID)
	if !found {
		return fmt.Errorf("no stored trend for %s", opts.ID)
	}
	a.Logger.Info().Str("instrument", opts.ID).Int("points", len(series)).Msg("exporting trend")

	if opts.CSVPath != "" {
		if err := writeTrendCSV(opts.CSVPath, series); err != nil {
			return err
		}
	}

	sparkline := render.NewSparklineRenderer(a.Config.Sparkline)
	positive := change >= 0
	if opts.SVGPath != "" {
		if err := writeSparkline(opts.SVGPath, sparkline, chart.SVG, series, positive); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSparkline(opts.PNGPath, sparkline, chart.PNG, series, positive); err != nil {
			return err
		}
	}

	return nil
}

func writeTrendCSV(path string, series []float64) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"index", "price"}); err != nil {
		return err
	}
	for i, v := range series {
		if err := writer.Write([]string{strconv.Itoa(i), strconv.FormatFloat(v, 'f', -1, 64)}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSparkline(path string, r render.SparklineRenderer, provider chart.RendererProvider, series []float64, positive bool) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return r.Render(file, provider, series, positive)
}
