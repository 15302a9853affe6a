package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"tvwebhook/internal/alert"
)

func testItem(i int, expiry time.Time) Item {
	ts := time.Date(2025, 9, 30, 9, 0, i, 0, time.UTC)
	return Item{
		AlertID: fmt.Sprintf("alert_%02d", i),
		Record: alert.Record{
			Timestamp:  alert.FormatTimestamp(ts),
			AlertName:  fmt.Sprintf("alert %d", i),
			Symbol:     "NIFTY250930P25800",
			LimitPrice: "25800",
			Processed:  true,
			RawPayload: alert.Payload{"ALERTNAME": fmt.Sprintf("alert %d", i)},
		},
		Expiry: expiry,
	}
}

// exerciseBackend runs the behaviour every Backend must share.
func exerciseBackend(t *testing.T, b interface {
	Backend
	ExpiredDeleter
}) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		expiry := now.Add(time.Hour)
		if i < 2 {
			expiry = now.Add(-time.Hour)
		}
		if err := b.Put(ctx, testItem(i, expiry)); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	n, err := b.Count(ctx)
	if err != nil || n != 5 {
		t.Fatalf("count = %d, %v; want 5", n, err)
	}

	got, err := b.Get(ctx, "alert_03")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AlertName != "alert 3" || got.LimitPrice != "25800" || !got.Processed {
		t.Fatalf("get returned %+v", got)
	}
	if got.RawPayload["ALERTNAME"] != "alert 3" {
		t.Fatalf("raw payload not restored: %#v", got.RawPayload)
	}

	if _, err := b.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key should return ErrNotFound, got %v", err)
	}

	items, err := b.Scan(ctx, 3)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("scan limit ignored: got %d items", len(items))
	}

	// Overwrite keeps a single item per key.
	if err := b.Put(ctx, testItem(4, now.Add(time.Hour))); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if n, _ := b.Count(ctx); n != 5 {
		t.Fatalf("overwrite changed count to %d", n)
	}

	removed, err := b.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if n, _ := b.Count(ctx); n != 3 {
		t.Fatalf("count after purge = %d, want 3", n)
	}
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemory())
}

func TestMemoryScanInsertionOrder(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	for _, i := range []int{3, 1, 2} {
		_ = mem.Put(ctx, testItem(i, time.Time{}))
	}
	items, _ := mem.Scan(ctx, 0)
	if len(items) != 3 || items[0].AlertID != "alert_03" || items[2].AlertID != "alert_02" {
		t.Fatalf("scan should follow insertion order, got %v", items)
	}
}

func TestBoltBackend(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "data", "alerts.db"), "")
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	exerciseBackend(t, b)
}

func TestOpenBoltRequiresPath(t *testing.T) {
	if _, err := OpenBolt("", ""); err == nil {
		t.Fatal("empty path should be rejected")
	}
}
