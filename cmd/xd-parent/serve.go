package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sghaida/xdparent/parent"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Compose the root context and serve it over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := opts.newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, addr, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9393", "listen address")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions, addr string, log *zap.Logger) error {
	_, c, err := opts.compose(log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("closing parent context", zap.Error(err))
		}
	}()

	beans, err := parent.BeansOf(c)
	if err != nil {
		return err
	}
	handler, err := newRouter(beans, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving parent context", zap.String("address", addr), zap.String("context", c.ID()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter serves /health and /metrics when their beans exist and hands
// every other request to the routing facade.
func newRouter(b parent.Beans, log *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if b.Exporter != nil {
		requests := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by the node.",
		}, []string{"method", "status"})
		if err := b.Exporter.Export("http", requests); err != nil {
			return nil, err
		}
		r.Use(countRequests(requests))
		r.Method(http.MethodGet, "/metrics", b.Exporter.Server().Handler())
	}

	if b.Health != nil {
		r.Method(http.MethodGet, "/health", b.Health)
		r.Method(http.MethodHead, "/health", b.Health)
	}

	r.NotFound(b.HandlerMapping.ServeHTTP)
	log.Debug("router ready",
		zap.Bool("health", b.Health != nil),
		zap.Bool("metrics", b.Exporter != nil),
	)
	return r, nil
}

func countRequests(requests *prometheus.CounterVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		})
	}
}
