// Package router dispatches HTTP-shaped events to the webhook handlers and
// renders every outcome in the same JSON envelope.
package router

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/alerting"
	"tvwebhook/internal/query"
	"tvwebhook/internal/storage"
)

// Routes served by the router.
const (
	PathWebhook = "/webhook"
	PathStatus  = "/status"
	PathAlerts  = "/alerts"
	PathTest    = "/test"
)

// Client-facing messages.
const (
	MsgNoData      = "No data received"
	MsgInvalidJSON = "Invalid JSON format"
	MsgNotFound    = "Endpoint not found"
)

// DefaultNotifyTimeout bounds one forwarding call, retries included.
const DefaultNotifyTimeout = 5 * time.Second

// Event is an inbound request in API Gateway proxy shape.
type Event struct {
	HTTPMethod            string            `json:"httpMethod"`
	Path                  string            `json:"path"`
	Body                  string            `json:"body"`
	IsBase64Encoded       bool              `json:"isBase64Encoded"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
}

// Response is the uniform reply. Body is always a JSON document.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Normalizer builds canonical records.
type Normalizer interface {
	Normalize(payload alert.Payload) alert.Record
}

// AlertStore persists records and reports the stored total.
type AlertStore interface {
	Store(ctx context.Context, rec alert.Record) storage.Receipt
	Count(ctx context.Context) (int64, error)
}

// Lister returns the most recent summaries.
type Lister interface {
	List(ctx context.Context, requested int) ([]query.Summary, error)
}

// Options wire the router's collaborators. Notifier is optional.
type Options struct {
	Normalizer  Normalizer
	Store       AlertStore
	Lister      Lister
	Notifier    alerting.Notifier
	Clock       clock.Clock
	ServiceName string
	Version     string

	// NotifyTimeout caps forwarding; zero uses DefaultNotifyTimeout.
	NotifyTimeout time.Duration
	// AsyncNotify forwards in the background after the response is built.
	// Callers must Wait before exiting.
	AsyncNotify bool
}

// Router is safe for concurrent use.
type Router struct {
	normalizer Normalizer
	store      AlertStore
	lister     Lister
	notifier   alerting.Notifier
	clock      clock.Clock
	service    string
	version    string
	logger     zerolog.Logger

	notifyTimeout time.Duration
	asyncNotify   bool
	pending       sync.WaitGroup
}

// New validates opts and constructs a Router.
func New(opts Options, logger zerolog.Logger) (*Router, error) {
	if opts.Normalizer == nil {
		return nil, fmt.Errorf("router: normalizer is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("router: alert store is required")
	}
	if opts.Lister == nil {
		return nil, fmt.Errorf("router: lister is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	service := opts.ServiceName
	if service == "" {
		service = "TradingView Webhook Handler"
	}
	notifyTimeout := opts.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	return &Router{
		normalizer:    opts.Normalizer,
		store:         opts.Store,
		lister:        opts.Lister,
		notifier:      opts.Notifier,
		clock:         clk,
		service:       service,
		version:       opts.Version,
		logger:        logger.With().Str("component", "router").Logger(),
		notifyTimeout: notifyTimeout,
		asyncNotify:   opts.AsyncNotify,
	}, nil
}

// handler serves one branch. A returned *requestError is reported with its
// own status; any other error becomes a 500 prefixed with the branch label.
type handler struct {
	label string
	serve func(ctx context.Context, ev Event) (any, error)
}

func (r *Router) match(ev Event) (handler, bool) {
	switch {
	case ev.HTTPMethod == "POST" && ev.Path == PathWebhook:
		return handler{"Processing error", r.handleWebhook}, true
	case ev.HTTPMethod == "GET" && ev.Path == PathStatus:
		return handler{"Status check failed", r.handleStatus}, true
	case ev.HTTPMethod == "GET" && ev.Path == PathAlerts:
		return handler{"Alert retrieval failed", r.handleAlerts}, true
	case ev.HTTPMethod == "POST" && ev.Path == PathTest:
		return handler{"Test failed", r.handleTest}, true
	}
	return handler{}, false
}

// Route handles one event. It never panics and never returns an error: every
// failure is rendered as an error envelope.
func (r *Router) Route(ctx context.Context, ev Event) (resp Response) {
	start := r.clock.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("path", ev.Path).Msg("handler panicked")
			resp = r.ErrorResponse(500, fmt.Sprintf("Internal server error: %v", rec))
		}
		r.logger.Debug().
			Str("method", ev.HTTPMethod).
			Str("path", ev.Path).
			Int("status", resp.StatusCode).
			Dur("elapsed", r.clock.Since(start)).
			Msg("event routed")
	}()

	h, ok := r.match(ev)
	if !ok {
		return r.ErrorResponse(404, MsgNotFound)
	}

	body, err := h.serve(ctx, ev)
	if err != nil {
		if reqErr, ok := err.(*requestError); ok {
			return r.ErrorResponse(reqErr.status, reqErr.message)
		}
		r.logger.Error().Err(err).Str("path", ev.Path).Msg("handler failed")
		return r.ErrorResponse(500, fmt.Sprintf("%s: %v", h.label, err))
	}
	return r.jsonResponse(200, body)
}

func (r *Router) handleWebhook(ctx context.Context, ev Event) (any, error) {
	raw := []byte(ev.Body)
	if ev.IsBase64Encoded && len(raw) > 0 {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, badRequest(MsgInvalidJSON)
		}
		raw = decoded
	}

	payload, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	rec := r.normalizer.Normalize(payload)
	receipt := r.store.Store(ctx, rec)
	r.forward(ctx, rec, receipt, false)

	return webhookBody{
		Status:    "success",
		Message:   "TradingView alert received and processed",
		AlertID:   receipt.AlertID,
		Timestamp: rec.Timestamp,
		AlertName: rec.AlertName,
		Symbol:    rec.Symbol,
	}, nil
}

func (r *Router) handleStatus(ctx context.Context, _ Event) (any, error) {
	total, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return statusBody{
		Status:      "running",
		Message:     r.service + " is operational",
		TotalAlerts: total,
		ServerTime:  r.now(),
		Version:     r.version,
		Endpoints:   []string{PathWebhook, PathStatus, PathAlerts, PathTest},
	}, nil
}

func (r *Router) handleAlerts(ctx context.Context, ev Event) (any, error) {
	requested := query.ParseCount(ev.QueryStringParameters["count"])
	alerts, err := r.lister.List(ctx, requested)
	if err != nil {
		return nil, err
	}
	total, err := r.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return alertsBody{
		Alerts:         alerts,
		AlertsReturned: len(alerts),
		TotalCount:     total,
		Message:        fmt.Sprintf("Returning %d most recent alerts", len(alerts)),
	}, nil
}

// TestPayload is the synthetic alert stored by POST /test.
func TestPayload() alert.Payload {
	return alert.Payload{
		alert.KeyAlertName:         "TEST ALERT",
		alert.KeySymbol:            "NIFTY250930P25800",
		alert.KeyLimitPrice:        "25800",
		alert.KeyCapitalPercent:    "50",
		alert.KeyLotSize:           "75",
		alert.KeyOrderSlicingValue: "1800",
		alert.KeyTotalQuantity:     "3750",
		"test_mode":                true,
	}
}

func (r *Router) handleTest(ctx context.Context, _ Event) (any, error) {
	rec := r.normalizer.Normalize(TestPayload())
	receipt := r.store.Store(ctx, rec)
	r.forward(ctx, rec, receipt, true)

	return testBody{
		Status:       "test_success",
		Message:      "Test alert generated and processed successfully",
		AlertID:      receipt.AlertID,
		Timestamp:    rec.Timestamp,
		SymbolParsed: rec.SymbolParsed,
	}, nil
}

// forward hands a stored alert to the notifier under its own deadline,
// detached from the request. Failures never change the response.
func (r *Router) forward(ctx context.Context, rec alert.Record, receipt storage.Receipt, test bool) {
	if receipt.Degraded {
		r.logger.Warn().Err(receipt.Err).Str("alert_id", receipt.AlertID).Msg("alert accepted without being stored")
	}
	if r.notifier == nil {
		return
	}
	note := alerting.Notification{
		AlertID:  receipt.AlertID,
		Record:   rec,
		Degraded: receipt.Degraded,
		Test:     test,
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.notifyTimeout)
	if !r.asyncNotify {
		defer cancel()
		r.notify(notifyCtx, note)
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer cancel()
		r.notify(notifyCtx, note)
	}()
}

func (r *Router) notify(ctx context.Context, note alerting.Notification) {
	if err := r.notifier.Notify(ctx, note); err != nil {
		r.logger.Error().Err(err).Str("alert_id", note.AlertID).Msg("failed to forward alert")
	}
}

// Wait blocks until background forwarding has finished.
func (r *Router) Wait() {
	r.pending.Wait()
}

func (r *Router) now() string {
	return alert.FormatTimestamp(r.clock.Now())
}
