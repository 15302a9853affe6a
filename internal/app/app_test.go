package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/alerting"
	"tvwebhook/internal/config"
	"tvwebhook/internal/httpapi"
	"tvwebhook/internal/query"
	"tvwebhook/internal/router"
	"tvwebhook/internal/storage"
)

var base = time.Date(2025, 9, 30, 9, 10, 0, 0, time.UTC)

func testConfig(dir string) *config.Config {
	return &config.Config{
		App:    config.AppConfig{ServiceName: "Test Handler"},
		Store:  config.StoreConfig{Driver: config.DriverBolt, TTL: time.Hour},
		Bolt:   config.BoltConfig{Path: filepath.Join(dir, "alerts.db"), Bucket: "alerts"},
		Query:  config.QueryConfig{ScanLimit: 100},
		Export: config.ExportConfig{MaxRows: 1000, Bucket: time.Hour},
	}
}

func newTestApp(t *testing.T) (*App, *clock.Mock, *bytes.Buffer) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(base)
	out := &bytes.Buffer{}
	a := NewApp(testConfig(t.TempDir()), zerolog.Nop())
	a.Clock = clk
	a.Out = out
	return a, clk, out
}

func record(ts time.Time, name, limit, qty string) alert.Record {
	return alert.Record{
		Timestamp:     alert.FormatTimestamp(ts),
		AlertName:     name,
		Symbol:        "NIFTY250930P25800",
		LimitPrice:    limit,
		TotalQuantity: qty,
		Processed:     true,
	}
}

// seed writes records into the app's bolt file and closes it again.
func seed(t *testing.T, a *App, recs ...alert.Record) {
	t.Helper()
	alerts, closeBackend, err := a.openAlerts(context.Background())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeBackend()
	for _, rec := range recs {
		if receipt := alerts.Store(context.Background(), rec); receipt.Degraded {
			t.Fatalf("store: %v", receipt.Err)
		}
	}
}

func TestShowPrintsNewestFirst(t *testing.T) {
	a, clk, out := newTestApp(t)
	seed(t, a,
		record(base, "NEW BUY ORDER", "101.5", "75"),
		record(base.Add(time.Hour), "PROFIT BOOKING SELL", "abc", "75"),
	)
	clk.Add(4 * time.Hour)

	if err := a.Show(context.Background(), ShowOptions{Limit: 10}); err != nil {
		t.Fatalf("show: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header plus two rows, got:\n%s", out.String())
	}
	if !strings.Contains(lines[1], "PROFIT BOOKING SELL") || !strings.Contains(lines[1], "3 hours ago") {
		t.Fatalf("newest row wrong: %q", lines[1])
	}
	if !strings.Contains(lines[2], "7612.50") || !strings.Contains(lines[2], "4 hours ago") {
		t.Fatalf("notional or age missing: %q", lines[2])
	}
}

func TestShowEmptyStore(t *testing.T) {
	a, _, out := newTestApp(t)
	if err := a.Show(context.Background(), ShowOptions{Limit: 5}); err != nil {
		t.Fatalf("show: %v", err)
	}
	if strings.TrimSpace(out.String()) != "no alerts found" {
		t.Fatalf("output: %q", out.String())
	}
}

func TestExportCSVWindow(t *testing.T) {
	a, _, _ := newTestApp(t)
	seed(t, a,
		record(base, "first", "10", "2"),
		record(base.Add(30*time.Minute), "second", "10", "x"),
		record(base.Add(3*time.Hour), "outside", "10", "2"),
	)

	to := base.Add(2 * time.Hour)
	path := filepath.Join(t.TempDir(), "out", "alerts.csv")
	if err := a.Export(context.Background(), ExportOptions{CSVPath: path, To: &to}); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want header plus two rows, got %d", len(rows))
	}
	if diff := cmp.Diff(csvHeader, rows[0]); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	if rows[1][2] != "first" || rows[1][9] != "20.00" {
		t.Fatalf("first row: %v", rows[1])
	}
	if rows[2][2] != "second" || rows[2][9] != "" {
		t.Fatalf("second row: %v", rows[2])
	}
}

func TestExportPNG(t *testing.T) {
	a, _, _ := newTestApp(t)
	seed(t, a, record(base, "only", "1", "1"))

	path := filepath.Join(t.TempDir(), "alerts.png")
	if err := a.Export(context.Background(), ExportOptions{PNGPath: path}); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("output is not a png")
	}
}

func TestExportRequiresOutput(t *testing.T) {
	a, _, _ := newTestApp(t)
	if err := a.Export(context.Background(), ExportOptions{}); err == nil {
		t.Fatal("expected error without --csv or --png")
	}
}

func TestBucketCounts(t *testing.T) {
	items := []storage.Item{
		{Record: record(base, "a", "", "")},
		{Record: record(base.Add(40*time.Minute), "b", "", "")},
		{Record: record(base.Add(2*time.Hour), "c", "", "")},
		{Record: alert.Record{Timestamp: "garbage"}},
	}
	xs, ys := bucketCounts(items, time.Hour)

	wantX := []time.Time{
		time.Date(2025, 9, 30, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 30, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 30, 11, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(wantX, xs); diff != "" {
		t.Fatalf("buckets mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{2, 0, 1}, ys); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}

	xs, ys = bucketCounts(items[:1], time.Hour)
	if len(xs) != 2 || ys[0] != 1 || ys[1] != 0 {
		t.Fatalf("single bucket should be padded: %v %v", xs, ys)
	}
}

func TestSendAgainstService(t *testing.T) {
	alerts := storage.NewAlerts(storage.NewMemory(), storage.AlertsOptions{}, zerolog.Nop())
	r, err := router.New(router.Options{
		Normalizer: alert.NewNormalizer(nil, zerolog.Nop()),
		Store:      alerts,
		Lister:     query.New(alerts, query.Options{}, zerolog.Nop()),
		Version:    "test",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	srv := httptest.NewServer(httpapi.New(httpapi.Options{}, r, nil, zerolog.Nop()).Handler())
	defer srv.Close()

	a, _, out := newTestApp(t)
	a.Clock = clock.New()
	err = a.Send(context.Background(), SendOptions{BaseURL: srv.URL, Samples: []string{"buy", "loss"}, Count: 5})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	text := out.String()
	for _, want := range []string{"TradingView Webhook Handler is operational", "buy: NEW BUY ORDER", "loss: LOSS BOOKING SELL", "alerts:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestSendUnknownSample(t *testing.T) {
	a, _, _ := newTestApp(t)
	err := a.Send(context.Background(), SendOptions{BaseURL: "http://127.0.0.1:1", Samples: []string{"nope"}})
	if err == nil || !strings.Contains(err.Error(), "unknown sample") {
		t.Fatalf("err = %v", err)
	}
}

type recordingNotifier struct {
	notes []alerting.Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.notes = append(r.notes, note)
	return r.err
}

func TestSimulateUsesSample(t *testing.T) {
	a, _, _ := newTestApp(t)
	n := &recordingNotifier{}
	if err := a.simulate(context.Background(), n, "profit"); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(n.notes) != 1 {
		t.Fatalf("notifications = %d", len(n.notes))
	}
	note := n.notes[0]
	if !note.Test || note.Record.AlertName != "PROFIT BOOKING SELL" || !strings.HasPrefix(note.AlertID, "alert_20250930_091000_") {
		t.Fatalf("notification: %+v", note)
	}

	n.err = errors.New("telegram down")
	if err := a.simulate(context.Background(), n, "buy"); err == nil {
		t.Fatal("notifier failure should surface")
	}
}

func TestSimulateRequiresAlerting(t *testing.T) {
	a, _, _ := newTestApp(t)
	if err := a.SimulateAlert(context.Background(), "buy"); err == nil {
		t.Fatal("expected error when alerting is disabled")
	}
}

func TestNewRetention(t *testing.T) {
	a, _, _ := newTestApp(t)
	if a.newRetention(storage.NewMemory()) != nil {
		t.Fatal("retention should be off when disabled")
	}

	a.Config.Retention = config.RetentionConfig{Enabled: true, Interval: time.Minute}
	if a.newRetention(storage.NewMemory()) == nil {
		t.Fatal("memory backend needs the purge loop")
	}
	if a.newRetention(storage.NewDynamo(nil, "alerts")) != nil {
		t.Fatal("dynamodb expires natively")
	}
}

func TestExportWarnsWhenScanIsTruncated(t *testing.T) {
	a, _, _ := newTestApp(t)
	seed(t, a,
		record(base, "a", "1", "1"),
		record(base.Add(time.Minute), "b", "1", "1"),
		record(base.Add(2*time.Minute), "c", "1", "1"),
	)
	var logs bytes.Buffer
	a.Logger = zerolog.New(&logs)

	path := filepath.Join(t.TempDir(), "alerts.csv")
	if err := a.Export(context.Background(), ExportOptions{CSVPath: path, MaxRows: 2}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(logs.String(), "export scan reached max_rows") {
		t.Fatalf("missing truncation warning:\n%s", logs.String())
	}

	logs.Reset()
	if err := a.Export(context.Background(), ExportOptions{CSVPath: path, MaxRows: 10}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Contains(logs.String(), "export scan reached max_rows") {
		t.Fatalf("unexpected truncation warning:\n%s", logs.String())
	}
}
