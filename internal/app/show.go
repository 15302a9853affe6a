package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"tvwebhook/internal/storage"
)

// Show prints the most recent alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	alerts, closeBackend, err := a.openAlerts(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	items, err := a.newQuery(alerts).Recent(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAge\tAlert\tSymbol\tLimit\tQty\tNotional\tID")
	for _, item := range items {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			item.Timestamp,
			a.age(item.Time()),
			sanitizeInline(item.AlertName),
			sanitizeInline(item.Symbol),
			item.LimitPrice,
			item.TotalQuantity,
			notional(item),
			item.AlertID,
		)
	}
	return writer.Flush()
}

func (a *App) age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, a.Clock.Now(), "ago", "from now")
}

func notional(item storage.Item) string {
	n, ok := item.Notional()
	if !ok {
		return "-"
	}
	return n.StringFixed(2)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
