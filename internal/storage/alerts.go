package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"tvwebhook/internal/alert"
)

// DefaultTTL is how long an alert is retained before the store may purge it.
const DefaultTTL = 30 * 24 * time.Hour

const idSuffixModulus = 10000

// AlertsOptions tune the alert store adapter.
type AlertsOptions struct {
	TTL   time.Duration
	Clock clock.Clock
}

// Receipt describes the outcome of Alerts.Store.
//
// A degraded receipt means the write failed: AlertID then holds a
// storage_error_ placeholder and Err the cause. Callers still report success
// to the webhook sender.
type Receipt struct {
	AlertID  string
	Expiry   time.Time
	Degraded bool
	Err      error
}

// Alerts assigns identifiers and expiry to records and writes them to a
// Backend. It is the only writer of alert items.
type Alerts struct {
	backend Backend
	ttl     time.Duration
	clock   clock.Clock
	logger  zerolog.Logger
}

// NewAlerts wires a backend into the adapter.
func NewAlerts(backend Backend, opts AlertsOptions, logger zerolog.Logger) *Alerts {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Alerts{
		backend: backend,
		ttl:     ttl,
		clock:   clk,
		logger:  logger.With().Str("component", "alert_store").Logger(),
	}
}

// Backend returns the wrapped backend.
func (a *Alerts) Backend() Backend {
	return a.backend
}

// Store persists rec and returns its identifier. Backend failures are logged
// and turned into a degraded receipt instead of an error.
func (a *Alerts) Store(ctx context.Context, rec alert.Record) Receipt {
	now := a.clock.Now().UTC()
	item := Item{
		AlertID: AlertID(rec, now),
		Record:  flatten(rec),
		Expiry:  now.Add(a.ttl),
	}

	err := ErrNotConfigured
	if a.backend != nil {
		err = a.backend.Put(ctx, item)
	}
	if err != nil {
		fallback := "storage_error_" + alert.FormatCompact(now)
		a.logger.Error().Err(err).
			Str("alert_id", item.AlertID).
			Str("fallback_id", fallback).
			Msg("failed to store alert; reporting degraded success")
		return Receipt{AlertID: fallback, Degraded: true, Err: err}
	}

	a.logger.Info().Str("alert_id", item.AlertID).Str("symbol", rec.Symbol).Msg("alert stored")
	return Receipt{AlertID: item.AlertID, Expiry: item.Expiry}
}

// Get fetches a single item.
func (a *Alerts) Get(ctx context.Context, alertID string) (Item, error) {
	if a.backend == nil {
		return Item{}, ErrNotConfigured
	}
	return a.backend.Get(ctx, alertID)
}

// Count returns the number of stored items.
func (a *Alerts) Count(ctx context.Context) (int64, error) {
	if a.backend == nil {
		return 0, fmt.Errorf("%w: %w", ErrRead, ErrNotConfigured)
	}
	n, err := a.backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count alerts: %w", ErrRead, err)
	}
	return n, nil
}

// Scan returns up to limit items in backend order.
func (a *Alerts) Scan(ctx context.Context, limit int) ([]Item, error) {
	if a.backend == nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, ErrNotConfigured)
	}
	items, err := a.backend.Scan(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: scan alerts: %w", ErrRead, err)
	}
	return items, nil
}

// AlertID derives the store key for rec. The suffix comes from hashing the
// record timestamp, so two records with the same timestamp share an id and
// the later write replaces the earlier one.
func AlertID(rec alert.Record, fallback time.Time) string {
	ts := rec.Time()
	if ts.IsZero() {
		ts = fallback
	}
	suffix := xxhash.Sum64String(rec.Timestamp) % idSuffixModulus
	return fmt.Sprintf("alert_%s_%d", alert.FormatCompact(ts), suffix)
}

// flatten drops decomposition fields unless the symbol was fully parsed.
func flatten(rec alert.Record) alert.Record {
	if rec.SymbolParsed {
		return rec
	}
	rec.IndexName = ""
	rec.ExpiryDate = ""
	rec.OptionType = ""
	rec.StrikePrice = ""
	return rec
}
