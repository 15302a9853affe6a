package lambdafn

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/query"
	"tvwebhook/internal/router"
	"tvwebhook/internal/storage"
)

func newHandler(t *testing.T) (*Handler, *storage.Memory) {
	t.Helper()
	return newHandlerWithLogger(t, zerolog.Nop())
}

func newHandlerWithLogger(t *testing.T, logger zerolog.Logger) (*Handler, *storage.Memory) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 9, 30, 9, 15, 0, 0, time.UTC))

	mem := storage.NewMemory()
	alerts := storage.NewAlerts(mem, storage.AlertsOptions{Clock: clk}, zerolog.Nop())
	r, err := router.New(router.Options{
		Normalizer: alert.NewNormalizer(clk, zerolog.Nop()),
		Store:      alerts,
		Lister:     query.New(alerts, query.Options{}, zerolog.Nop()),
		Clock:      clk,
	}, logger)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return NewHandler(r, logger), mem
}

func TestHandleWebhookBase64(t *testing.T) {
	h, mem := newHandler(t)
	body := base64.StdEncoding.EncodeToString([]byte(`{"ALERTNAME":"BUY","symbol":"NIFTY250930P25800"}`))

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      "POST",
		Path:            "/webhook",
		Body:            body,
		IsBase64Encoded: true,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.StatusCode != 200 || resp.Headers["Access-Control-Allow-Origin"] != "*" {
		t.Fatalf("response: %+v", resp)
	}
	if n, _ := mem.Count(context.Background()); n != 1 {
		t.Fatalf("stored %d alerts, want 1", n)
	}
}

func TestHandleAlertsQuery(t *testing.T) {
	h, _ := newHandler(t)
	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            "GET",
		Path:                  "/alerts",
		QueryStringParameters: map[string]string{"count": "500"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != 200 || body["alerts_returned"] != float64(0) {
		t.Fatalf("response: %d %v", resp.StatusCode, body)
	}
}

func TestHandleErrorsAreResponses(t *testing.T) {
	h, _ := newHandler(t)
	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "POST", Path: "/webhook"})
	if err != nil {
		t.Fatalf("router errors must be rendered, not returned: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestHandleLogsOneInfoLine(t *testing.T) {
	var buf bytes.Buffer
	h, _ := newHandlerWithLogger(t, zerolog.New(&buf).Level(zerolog.InfoLevel))

	if _, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/status"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"message":"event handled"`) || !strings.Contains(lines[0], `"status":200`) {
		t.Fatalf("want a single access line, got:\n%s", buf.String())
	}
}
