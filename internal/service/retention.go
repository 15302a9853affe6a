// Package service runs background maintenance for the alert store.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"tvwebhook/internal/scheduler"
	"tvwebhook/internal/storage"
)

// RetentionOptions tune the purge job.
type RetentionOptions struct {
	// LockKey guards the purge with a Postgres advisory lock when the
	// backend supports it. Zero disables locking.
	LockKey int64
	Clock   clock.Clock
}

// Retention deletes alerts whose expiry has passed, for backends that do not
// expire items natively.
type Retention struct {
	scheduler *scheduler.Scheduler
	deleter   storage.ExpiredDeleter
	locker    storage.AdvisoryLocker
	lockKey   int64
	clock     clock.Clock
	logger    zerolog.Logger
}

// NewRetention constructs the purge job. The advisory lock is used only when
// deleter also implements storage.AdvisoryLocker.
func NewRetention(sched *scheduler.Scheduler, deleter storage.ExpiredDeleter, opts RetentionOptions, logger zerolog.Logger) *Retention {
	var locker storage.AdvisoryLocker
	if l, ok := deleter.(storage.AdvisoryLocker); ok {
		locker = l
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Retention{
		scheduler: sched,
		deleter:   deleter,
		locker:    locker,
		lockKey:   opts.LockKey,
		clock:     clk,
		logger:    logger.With().Str("component", "retention").Logger(),
	}
}

// Run purges on every scheduler tick until ctx is cancelled.
func (r *Retention) Run(ctx context.Context) error {
	if r.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return r.scheduler.Run(ctx, r.Purge)
}

// Purge removes every item that expired before now.
func (r *Retention) Purge(ctx context.Context, tick time.Time) error {
	if r.deleter == nil {
		return storage.ErrNotConfigured
	}

	unlock, proceed, err := r.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		r.logger.Debug().Time("tick", tick).Msg("skip purge because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	cutoff := r.clock.Now().UTC()
	removed, err := r.deleter.DeleteExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired alerts: %w", err)
	}

	r.logger.Info().
		Time("tick", tick).
		Time("cutoff", cutoff).
		Int64("removed", removed).
		Msg("expired alerts purged")
	return nil
}

func (r *Retention) acquireLock(ctx context.Context) (func(), bool, error) {
	if r.lockKey == 0 || r.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := r.locker.TryAdvisoryLock(ctx, r.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
