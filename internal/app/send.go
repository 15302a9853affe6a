package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"tvwebhook/internal/client"
)

// Send exercises a running service: status check, sample alerts or the test
// endpoint, then a read-back of recent alerts.
func (a *App) Send(ctx context.Context, opts SendOptions) error {
	samples, err := resolveSamples(opts)
	if err != nil {
		return err
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = a.Config.Client.BaseURL
	}
	c := client.New(client.Options{
		BaseURL:    baseURL,
		Timeout:    a.Config.Client.Timeout,
		MaxRetries: a.Config.Client.MaxRetries,
		UserAgent:  a.Config.Client.UserAgent,
	}, a.Logger)

	status, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("check status: %w", err)
	}
	fmt.Fprintf(a.Out, "%s (version %s, %d alerts stored)\n", status.Message, status.Version, status.TotalAlerts)

	if opts.Test {
		resp, err := c.Test(ctx)
		if err != nil {
			return fmt.Errorf("send test alert: %w", err)
		}
		fmt.Fprintf(a.Out, "test: %s (symbol parsed: %t)\n", resp.AlertID, resp.SymbolParsed)
	}

	for i, sample := range samples {
		// Ids have one-second resolution; spacing the sends keeps them apart.
		if i > 0 || opts.Test {
			if err := a.pause(ctx, opts.Interval); err != nil {
				return err
			}
		}
		resp, err := c.Send(ctx, sample.Payload)
		if err != nil {
			return fmt.Errorf("send %s alert: %w", sample.Name, err)
		}
		fmt.Fprintf(a.Out, "%s: %s %s -> %s\n", sample.Name, resp.AlertName, resp.Symbol, resp.AlertID)
	}

	listing, err := c.Alerts(ctx, opts.Count)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}
	fmt.Fprintf(a.Out, "%d of %d alerts:\n", listing.AlertsReturned, listing.TotalCount)
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAlert\tSymbol\tLimit\tID")
	for _, s := range listing.Alerts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", s.Timestamp, sanitizeInline(s.AlertName), sanitizeInline(s.Symbol), s.LimitPrice, s.AlertID)
	}
	return writer.Flush()
}

func resolveSamples(opts SendOptions) ([]client.Sample, error) {
	if len(opts.Samples) == 0 {
		if opts.Test {
			return nil, nil
		}
		return client.Samples(), nil
	}
	out := make([]client.Sample, 0, len(opts.Samples))
	for _, name := range opts.Samples {
		s, ok := client.SampleByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown sample %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}

func (a *App) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := a.Clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
