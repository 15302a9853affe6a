package app

import (
	"context"
	"errors"
	"fmt"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/alerting"
	"tvwebhook/internal/client"
	"tvwebhook/internal/storage"
)

// SimulateAlert pushes a sample alert through the configured notifier
// without storing it.
func (a *App) SimulateAlert(ctx context.Context, sampleName string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}
	return a.simulate(ctx, notifier, sampleName)
}

func (a *App) simulate(ctx context.Context, notifier alerting.Notifier, sampleName string) error {
	sample, ok := client.SampleByName(sampleName)
	if !ok {
		return fmt.Errorf("unknown sample %q", sampleName)
	}

	rec := alert.NewNormalizer(a.Clock, a.Logger).Normalize(sample.Payload)
	note := alerting.Notification{
		AlertID: storage.AlertID(rec, a.Clock.Now()),
		Record:  rec,
		Test:    true,
	}
	if err := notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("simulate %s alert: %w", sample.Name, err)
	}
	a.Logger.Info().Str("sample", sample.Name).Str("alert_id", note.AlertID).Msg("simulated alert delivered")
	return nil
}
