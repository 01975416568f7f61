package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show polls the feed once and prints the card list.
func (a *App) Show(ctx context.Context, w io.Writer, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := a.newFeed()
	if err != nil {
		return err
	}

	dash := a.newDashboard(f, store)
	if err := dash.LoadInstruments(ctx); err != nil {
		return err
	}
	if err := dash.Poll(ctx, time.Now().UTC()); err != nil {
		return err
	}

	cards := dash.Cards(opts.Query)
	if len(cards) == 0 {
		fmt.Fprintln(w, "no priced instruments found")
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tName\tPrice\tChange%\tPoints")
	for _, card := range cards {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%d\n",
			card.Symbol,
			card.Name,
			decimal.NewFromFloat(card.Price).StringFixed(2),
			formatChange(card.ChangePercent),
			len(card.Trend),
		)
	}

	return writer.Flush()
}

func formatChange(pct float64) string {
	s := decimal.NewFromFloat(pct).StringFixed(2)
	if pct >= 0 {
		return "+" + s
	}
	return s
}
