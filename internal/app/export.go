package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"tvwebhook/internal/storage"
)

var csvHeader = []string{
	"alert_id", "timestamp", "alert_name", "symbol", "limit_price",
	"capital_percent", "lot_size", "order_slicing_value", "total_quantity",
	"notional", "processed", "index_name", "expiry_date", "option_type",
	"strike_price", "expires_at",
}

// Export writes stored alerts as CSV and/or a PNG chart of alerts per bucket.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
		return errors.New("from must be before to")
	}

	alerts, closeBackend, err := a.openAlerts(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	maxRows := a.Config.ResolveMaxRows(opts.MaxRows)
	items, err := alerts.Scan(ctx, maxRows)
	if err != nil {
		return err
	}
	if len(items) >= maxRows {
		a.Logger.Warn().
			Int("max_rows", maxRows).
			Msg("export scan reached max_rows; alerts beyond it are not considered by --from/--to")
	}
	items = filterWindow(items, opts.From, opts.To)
	if len(items) == 0 {
		a.Logger.Info().Msg("no alerts found for export window")
		return nil
	}
	a.Logger.Info().Int("exported", len(items)).Int("max_rows", maxRows).Msg("exporting alerts")

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, items); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeAlertsPNG(opts.PNGPath, items, a.Config.Export.Bucket); err != nil {
			return err
		}
	}
	return nil
}

// filterWindow keeps items with from <= time < to, oldest first. Items whose
// timestamp cannot be parsed are kept only when no window is set.
func filterWindow(items []storage.Item, from, to *time.Time) []storage.Item {
	out := make([]storage.Item, 0, len(items))
	for _, item := range items {
		ts := item.Time()
		if from != nil && (ts.IsZero() || ts.Before(from.UTC())) {
			continue
		}
		if to != nil && (ts.IsZero() || !ts.Before(to.UTC())) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

func writeAlertsCSV(path string, items []storage.Item) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, item := range items {
		n := ""
		if v, ok := item.Notional(); ok {
			n = v.StringFixed(2)
		}
		expires := ""
		if !item.Expiry.IsZero() {
			expires = item.Expiry.UTC().Format(time.RFC3339)
		}
		record := []string{
			item.AlertID,
			item.Timestamp,
			item.AlertName,
			item.Symbol,
			item.LimitPrice,
			item.CapitalPercent,
			item.LotSize,
			item.OrderSlicingValue,
			item.TotalQuantity,
			n,
			strconv.FormatBool(item.Processed),
			item.IndexName,
			item.ExpiryDate,
			string(item.OptionType),
			item.StrikePrice,
			expires,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// bucketCounts counts items per bucket between the first and last item,
// including empty buckets. At least two buckets are returned so the chart
// has a non-zero time range.
func bucketCounts(items []storage.Item, bucket time.Duration) ([]time.Time, []float64) {
	counts := make(map[time.Time]float64)
	var first, last time.Time
	for _, item := range items {
		ts := item.Time()
		if ts.IsZero() {
			continue
		}
		b := ts.Truncate(bucket)
		counts[b]++
		if first.IsZero() || b.Before(first) {
			first = b
		}
		if b.After(last) {
			last = b
		}
	}
	if first.IsZero() {
		return nil, nil
	}
	if !last.After(first) {
		last = first.Add(bucket)
	}

	var xs []time.Time
	var ys []float64
	for b := first; !b.After(last); b = b.Add(bucket) {
		xs = append(xs, b)
		ys = append(ys, counts[b])
	}
	return xs, ys
}

func writeAlertsPNG(path string, items []storage.Item, bucket time.Duration) error {
	xs, ys := bucketCounts(items, bucket)
	if len(xs) == 0 {
		return errors.New("no alerts with parseable timestamps to chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	peak := 0.0
	for _, y := range ys {
		if y > peak {
			peak = y
		}
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Alerts per " + bucket.String(),
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: peak + 1,
			},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Alerts",
				XValues: xs,
				YValues: ys,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
