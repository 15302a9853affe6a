// Package query implements the recent-alerts listing.
//
// The engine sorts only the batch a single scan returns. When the store holds
// more than the scan limit the result is not guaranteed to be the globally
// most recent alerts.
package query

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"tvwebhook/internal/storage"
)

const (
	// DefaultCount is used when the caller does not ask for a count.
	DefaultCount = 10
	// MinCount and MaxCount bound every request.
	MinCount = 1
	MaxCount = 50
	// DefaultScanLimit is the number of items read per listing.
	DefaultScanLimit = 100
)

// Summary is the projection returned by the listing endpoint.
type Summary struct {
	AlertID    string `json:"alert_id"`
	Timestamp  string `json:"timestamp"`
	AlertName  string `json:"alert_name"`
	Symbol     string `json:"symbol"`
	LimitPrice string `json:"limit_price"`
	Processed  bool   `json:"processed"`
}

// Scanner is the part of the alert store the engine reads from.
type Scanner interface {
	Scan(ctx context.Context, limit int) ([]storage.Item, error)
}

// Options tune the engine.
type Options struct {
	ScanLimit int
}

// Engine lists recent alerts.
type Engine struct {
	store     Scanner
	scanLimit int
	logger    zerolog.Logger
}

// New constructs an Engine.
func New(store Scanner, opts Options, logger zerolog.Logger) *Engine {
	limit := opts.ScanLimit
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	return &Engine{
		store:     store,
		scanLimit: limit,
		logger:    logger.With().Str("component", "query").Logger(),
	}
}

// Clamp forces n into [MinCount, MaxCount].
func Clamp(n int) int {
	if n < MinCount {
		return MinCount
	}
	if n > MaxCount {
		return MaxCount
	}
	return n
}

// ParseCount reads a count query parameter. Missing or non-numeric values
// fall back to DefaultCount; numeric values are clamped.
func ParseCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultCount
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultCount
	}
	return Clamp(n)
}

// List returns at most Clamp(requested) summaries, newest first.
func (e *Engine) List(ctx context.Context, requested int) ([]Summary, error) {
	items, err := e.Recent(ctx, requested)
	if err != nil {
		return nil, err
	}
	return Summarize(items), nil
}

// Recent returns at most Clamp(requested) full items from one scan, newest
// first.
func (e *Engine) Recent(ctx context.Context, requested int) ([]storage.Item, error) {
	count := Clamp(requested)
	items, err := e.store.Scan(ctx, e.scanLimit)
	if err != nil {
		return nil, err
	}
	scanned := len(items)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})
	if len(items) > count {
		items = items[:count]
	}

	e.logger.Debug().
		Int("scanned", scanned).
		Int("requested", requested).
		Int("returned", len(items)).
		Msg("listed alerts")
	return items, nil
}

// Summarize projects stored items in their given order.
func Summarize(items []storage.Item) []Summary {
	out := make([]Summary, 0, len(items))
	for _, item := range items {
		out = append(out, Summary{
			AlertID:    item.AlertID,
			Timestamp:  item.Timestamp,
			AlertName:  item.AlertName,
			Symbol:     item.Symbol,
			LimitPrice: item.LimitPrice,
			Processed:  item.Processed,
		})
	}
	return out
}
