package storage

import (
	"context"
	"errors"
	"time"

	"tvwebhook/internal/alert"
)

var (
	// ErrNotConfigured indicates no backend was wired.
	ErrNotConfigured = errors.New("storage: backend not configured")
	// ErrNotFound is returned by Get when no item has the requested id.
	ErrNotFound = errors.New("storage: alert not found")
	// ErrRead marks failures on the count and scan paths.
	ErrRead = errors.New("storage: read failed")
)

// Item is a persisted alert: the canonical record plus its store key and
// expiry instant.
type Item struct {
	AlertID string `json:"alert_id"`
	alert.Record
	Expiry time.Time `json:"expiry"`
}

// Backend is the external key-value store holding alerts keyed by AlertID.
// Put overwrites any item with the same key.
type Backend interface {
	Put(ctx context.Context, item Item) error
	Get(ctx context.Context, alertID string) (Item, error)
	// Scan returns up to limit items in backend-defined order.
	Scan(ctx context.Context, limit int) ([]Item, error)
	Count(ctx context.Context) (int64, error)
}

// ExpiredDeleter is implemented by backends without native expiry.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}
