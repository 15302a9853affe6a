// Package httpapi serves the router over plain HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"tvwebhook/internal/router"
)

// DefaultMaxBodyBytes bounds webhook bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// Router is the request dispatcher the server exposes.
type Router interface {
	Route(ctx context.Context, ev router.Event) router.Response
	ErrorResponse(status int, message string) router.Response
}

// Options configure the HTTP server.
type Options struct {
	Addr            string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath mounts the Prometheus handler; empty disables it.
	MetricsPath string
}

// Server adapts net/http requests into router events.
type Server struct {
	opts    Options
	router  Router
	metrics *Metrics
	logger  zerolog.Logger
}

// New constructs a Server. metrics may be nil.
func New(opts Options, r Router, metrics *Metrics, logger zerolog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		opts:    opts,
		router:  r,
		metrics: metrics,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Handler returns the full handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.metrics != nil && s.opts.MetricsPath != "" {
		mux.Handle(s.opts.MetricsPath, s.metrics.Handler())
	}
	mux.HandleFunc("/", s.serveEvent)
	return withRequestID(s.logger, logRequests(s.metrics, mux))
}

func (s *Server) serveEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, "body_too_large", s.router.ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large"))
			return
		}
		s.reject(w, "read_error", s.router.ErrorResponse(http.StatusBadRequest, router.MsgNoData))
		return
	}

	resp := s.router.Route(r.Context(), EventFromRequest(r, body))
	writeResponse(w, resp)
}

func (s *Server) reject(w http.ResponseWriter, reason string, resp router.Response) {
	if s.metrics != nil {
		s.metrics.Reject(reason)
	}
	writeResponse(w, resp)
}

// EventFromRequest converts an HTTP request into a router event. Only the
// first value of each query parameter is kept.
func EventFromRequest(r *http.Request, body []byte) router.Event {
	var params map[string]string
	if q := r.URL.Query(); len(q) > 0 {
		params = make(map[string]string, len(q))
		for key, values := range q {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}
	return router.Event{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Body:                  string(body),
		QueryStringParameters: params,
	}
}

func writeResponse(w http.ResponseWriter, resp router.Response) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}
