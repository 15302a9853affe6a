package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/alerting"
	"tvwebhook/internal/config"
	"tvwebhook/internal/httpapi"
	"tvwebhook/internal/lambdafn"
	"tvwebhook/internal/query"
	"tvwebhook/internal/router"
	"tvwebhook/internal/scheduler"
	"tvwebhook/internal/service"
	"tvwebhook/internal/storage"
	"tvwebhook/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives human-readable command output.
	Out   io.Writer
	Clock clock.Clock
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
		Clock:  clock.New(),
	}
}

func (a *App) openBackend(ctx context.Context) (storage.Backend, func(), error) {
	noop := func() {}
	switch a.Config.Store.Driver {
	case config.DriverMemory:
		a.Logger.Warn().Msg("memory store selected; alerts are lost on exit")
		return storage.NewMemory(), noop, nil
	case config.DriverBolt:
		db, err := storage.OpenBolt(a.Config.Bolt.Path, a.Config.Bolt.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if err := db.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("close bolt store")
			}
		}, nil
	case config.DriverPostgres:
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgres(pool)
		if a.Config.Database.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return pg, pg.Close, nil
	case config.DriverDynamoDB:
		table, err := storage.OpenDynamo(a.Config.DynamoDB)
		if err != nil {
			return nil, nil, err
		}
		return table, noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", a.Config.Store.Driver)
	}
}

func (a *App) openAlerts(ctx context.Context) (*storage.Alerts, func(), error) {
	backend, closeBackend, err := a.openBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	alerts := storage.NewAlerts(backend, storage.AlertsOptions{
		TTL:   a.Config.Store.TTL,
		Clock: a.Clock,
	}, a.Logger)
	return alerts, closeBackend, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	return alerting.NewTelegramNotifier(alerting.TelegramOptions{
		BotToken:   cfg.BotToken,
		ChatID:     cfg.ChatID,
		BaseURL:    cfg.APIBase,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, a.Logger)
}

func (a *App) newQuery(alerts *storage.Alerts) *query.Engine {
	return query.New(alerts, query.Options{ScanLimit: a.Config.Query.ScanLimit}, a.Logger)
}

// newRouter wires the request router. asyncNotify moves forwarding off the
// response path; the caller must then Wait on the router before exiting.
func (a *App) newRouter(alerts *storage.Alerts, asyncNotify bool) (*router.Router, error) {
	return router.New(router.Options{
		Normalizer:    alert.NewNormalizer(a.Clock, a.Logger),
		Store:         alerts,
		Lister:        a.newQuery(alerts),
		Notifier:      a.newNotifier(),
		Clock:         a.Clock,
		ServiceName:   a.Config.App.ServiceName,
		Version:       version.Version,
		NotifyTimeout: a.Config.Alerting.ForwardTimeout,
		AsyncNotify:   asyncNotify,
	}, a.Logger)
}

// newRetention returns nil when retention is disabled or the backend expires
// items on its own.
func (a *App) newRetention(backend storage.Backend) *service.Retention {
	cfg := a.Config.Retention
	if !cfg.Enabled {
		return nil
	}
	deleter, ok := backend.(storage.ExpiredDeleter)
	if !ok {
		a.Logger.Info().Str("driver", a.Config.Store.Driver).Msg("backend expires alerts natively; retention loop not started")
		return nil
	}
	sched := scheduler.New(scheduler.Options{
		Interval:     cfg.Interval,
		AlignToStart: cfg.AlignToInterval,
		StartupDelay: cfg.StartupDelay,
		Clock:        a.Clock,
	}, a.Logger)
	return service.NewRetention(sched, deleter, service.RetentionOptions{
		LockKey: cfg.AdvisoryLockKey,
		Clock:   a.Clock,
	}, a.Logger)
}

// Serve runs the HTTP server and, when enabled, the retention loop.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	alerts, closeBackend, err := a.openAlerts(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	r, err := a.newRouter(alerts, true)
	if err != nil {
		return err
	}

	var metrics *httpapi.Metrics
	metricsPath := ""
	if a.Config.HTTP.MetricsEnabled {
		metrics = httpapi.NewMetrics()
		metricsPath = a.Config.HTTP.MetricsPath
	}
	srv := httpapi.New(httpapi.Options{
		Addr:            a.Config.HTTP.Addr,
		MaxBodyBytes:    a.Config.HTTP.MaxBodyBytes,
		ReadTimeout:     a.Config.HTTP.ReadTimeout,
		WriteTimeout:    a.Config.HTTP.WriteTimeout,
		ShutdownTimeout: a.Config.HTTP.ShutdownTimeout,
		MetricsPath:     metricsPath,
	}, r, metrics, a.Logger)

	done := make(chan struct{})
	if retention := a.newRetention(alerts.Backend()); retention != nil {
		go func() {
			defer close(done)
			if err := retention.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("retention loop terminated with error")
			}
		}()
	} else {
		close(done)
	}

	a.Logger.Info().
		Str("driver", a.Config.Store.Driver).
		Str("version", version.Version).
		Msg("starting webhook service")
	err = srv.Run(ctx)
	cancel()
	<-done
	r.Wait()

	if err != nil {
		a.Logger.Error().Err(err).Msg("webhook service terminated with error")
		return err
	}
	a.Logger.Info().Msg("webhook service stopped")
	return nil
}

// Lambda serves API Gateway proxy invocations. It does not return while the
// Lambda runtime is active.
func (a *App) Lambda(ctx context.Context) error {
	alerts, closeBackend, err := a.openAlerts(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	// The runtime may freeze the process once a response is returned, so
	// forwarding stays on the request path, bounded by the forward timeout.
	r, err := a.newRouter(alerts, false)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("driver", a.Config.Store.Driver).Msg("starting lambda handler")
	lambdafn.NewHandler(r, a.Logger).Start()
	return nil
}

// ExportOptions hold parameters for exporting stored alerts.
//
// From and To filter a single scan of at most MaxRows items taken in backend
// order (key order for bolt and postgres, table order for dynamodb), not the
// whole store. Raise MaxRows above the store size for a complete window.
type ExportOptions struct {
	From    *time.Time
	To      *time.Time
	PNGPath string
	CSVPath string
	MaxRows int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SendOptions configure the send command.
type SendOptions struct {
	BaseURL string
	// Samples names the sample alerts to post. Empty posts all of them
	// unless Test is set.
	Samples  []string
	Test     bool
	Count    int
	Interval time.Duration
}
