package notificationdispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/api"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/metrics"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/middleware"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/pipeline"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/telemetry"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationdispatcher/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

type Wrapper struct {
	server        *http.Server
	metricsServer *http.Server
	handler       http.Handler
	ready         atomic.Bool
	logger        *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	directory dispatch.UserDirectory,
	provider dispatch.Provider,
	logger *slog.Logger,
) (*Wrapper, error) {
	if directory == nil || provider == nil {
		return nil, errors.New("directory and provider are required")
	}

	// 1. Core
	dispatcher := pipeline.NewDispatcher(directory, provider, pipeline.Settings{
		AppID:  cfg.OneSignal.AppID,
		Locale: cfg.Locale,
	}, logger)

	// 2. API
	notifyAPI := api.NewNotifyAPI(dispatcher, logger)

	// 3. Routes: every path accepts POST and OPTIONS; anything else is 405.
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metrics.Middleware)
	r.Use(middleware.NewCorsMiddleware(cfg.CorsConfig))

	r.Post("/", notifyAPI.Notify)
	r.Post("/*", notifyAPI.Notify)
	r.Options("/", notifyAPI.Options)
	r.Options("/*", notifyAPI.Options)
	r.MethodNotAllowed(notifyAPI.MethodNotAllowed)

	handler := telemetry.Handler(r, "notification-dispatch")

	w := &Wrapper{
		handler: handler,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	// 4. Ops listener
	ops := http.NewServeMux()
	ops.Handle("GET /metrics", metrics.Handler())
	ops.HandleFunc("GET /healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	ops.HandleFunc("GET /readyz", func(rw http.ResponseWriter, _ *http.Request) {
		if !w.ready.Load() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	})
	w.metricsServer = &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           ops,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return w, nil
}

// Handler exposes the dispatch surface, e.g. for httptest.
func (w *Wrapper) Handler() http.Handler {
	return w.handler
}

// Start serves both listeners and blocks until the dispatch server stops.
func (w *Wrapper) Start() error {
	go func() {
		w.logger.Info("Metrics server listening", "addr", w.metricsServer.Addr)
		if err := w.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("Metrics server failed", "err", err)
		}
	}()

	ln, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.server.Addr, err)
	}
	w.ready.Store(true)
	w.logger.Info("Service is now ready.", "addr", ln.Addr().String())

	if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	w.ready.Store(false)
	var finalErr error
	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.metricsServer.Shutdown(ctx); err != nil {
		w.logger.Error("Metrics server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
