package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/riichi/internal/adapters/http/api"
	service "github.com/okian/riichi/internal/app"
	"github.com/okian/riichi/pkg/logger"
	"github.com/okian/riichi/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// serve runs the HTTP API until SIGINT or SIGTERM.
func (c *cli) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := c.newService(ctx)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return errors.Join(err, svc.Stop(context.Background()))
	}
	metrics.UpdateQueueCapacity(c.cfg.QueueSize)
	metrics.UpdateWorkerCount(c.cfg.WorkerCount)
	go startServiceMetricsUpdater(ctx, svc)

	opts := []api.Option{
		api.WithLogger(logger.Named("api")),
		api.WithWriteLimit(rate.Limit(c.cfg.WriteRateLimit), c.cfg.WriteRateBurst),
		api.WithCORSOrigins(c.cfg.CORSOrigins...),
	}
	if path := c.cfg.Auth.PublicKeyPath; path != "" {
		auth, err := api.LoadAuthenticator(path, c.cfg.Auth.Audience, c.cfg.Auth.Issuer)
		if err != nil {
			_ = svc.Stop(context.Background())
			return err
		}
		opts = append(opts, api.WithAuthenticator(auth))
	}

	srv := &http.Server{
		Addr:              c.cfg.Addr,
		Handler:           api.NewServer(svc, opts...).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.log.Info(ctx, "starting HTTP server", logger.String("addr", c.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	c.log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		c.log.Error(shutdownCtx, "service stop failed", logger.Error(err))
	}
	c.log.Info(shutdownCtx, "server stopped")
	return serveErr
}

// startServiceMetricsUpdater refreshes the queue and runtime gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if queueLen, ok := svc.GetStats()["queueLength"].(int); ok {
				metrics.UpdateQueueSize(queueLen)
			}
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateRuntime(m.Alloc, runtime.NumGoroutine())
		}
	}
}
