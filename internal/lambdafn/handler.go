// Package lambdafn runs the router behind API Gateway proxy integration.
package lambdafn

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"tvwebhook/internal/router"
)

// Router dispatches one event.
type Router interface {
	Route(ctx context.Context, ev router.Event) router.Response
}

// Handler adapts API Gateway proxy requests to router events.
type Handler struct {
	router Router
	logger zerolog.Logger
}

// NewHandler wraps r.
func NewHandler(r Router, logger zerolog.Logger) *Handler {
	return &Handler{router: r, logger: logger.With().Str("component", "lambda").Logger()}
}

// Handle never returns an error: failures are already rendered by the router.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	h.logger.Debug().
		Str("method", req.HTTPMethod).
		Str("path", req.Path).
		Str("request_id", req.RequestContext.RequestID).
		Bool("base64", req.IsBase64Encoded).
		Msg("received event")

	resp := h.router.Route(ctx, router.Event{
		HTTPMethod:            req.HTTPMethod,
		Path:                  req.Path,
		Body:                  req.Body,
		IsBase64Encoded:       req.IsBase64Encoded,
		QueryStringParameters: req.QueryStringParameters,
	})
	h.logger.Info().
		Str("method", req.HTTPMethod).
		Str("path", req.Path).
		Str("request_id", req.RequestContext.RequestID).
		Int("status", resp.StatusCode).
		Msg("event handled")
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, nil
}

// Start blocks serving Lambda invocations.
func (h *Handler) Start() {
	lambda.Start(h.Handle)
}
