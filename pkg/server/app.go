package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "AlphaForge/internal/domain/repository"
	mid "AlphaForge/internal/middleware"
	internalrepo "AlphaForge/internal/repository"
	"AlphaForge/internal/service/eventstream"
	"AlphaForge/internal/usecase"
	"AlphaForge/pkg/cache"
	pkgch "AlphaForge/pkg/clickhouse"
	"AlphaForge/pkg/config"
	xhttp "AlphaForge/pkg/http"
	applogger "AlphaForge/pkg/logger"
	"AlphaForge/pkg/queue"
)

// App encapsulates the application lifecycle: sink init, HTTP status
// server, event intake (file batch, websocket stream or Redis queue),
// and graceful shutdown.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	chClient   *pkgch.Client
	redisCache *cache.RedisCache
	sink       domrepo.FeatureSink
	metrics    domrepo.Metrics
	proc       *usecase.EventProcessor
	runner     *usecase.BatchRunner
	httpServer *xhttp.Server
	handler    xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	chClient *pkgch.Client,
	redisCache *cache.RedisCache,
	sink domrepo.FeatureSink,
	metrics domrepo.Metrics,
	proc *usecase.EventProcessor,
	runner *usecase.BatchRunner,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		chClient:   chClient,
		redisCache: redisCache,
		sink:       sink,
		metrics:    metrics,
		proc:       proc,
		runner:     runner,
		handler:    handler,
	}
}

// Run starts the application and blocks until the work is done or an
// interrupt arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	err := a.sink.Init(initCtx)
	initCancel()
	if err != nil {
		return fmt.Errorf("sink init: %w", err)
	}

	// aggregated error logs travel over the Redis queue in production
	if a.cfg.Environment == "production" && a.redisCache != nil {
		pub := queue.NewRedisPublisher(a.l, a.redisCache.Client())
		a.l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "logs.aggregated",
			Publisher:      pub,
		})
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	doneCh := make(chan error, 1)
	switch a.cfg.Events.Source {
	case "file":
		go func() { doneCh <- a.runBatch(ctx) }()
	case "stream":
		go func() { doneCh <- a.runStream(ctx) }()
	case "queue":
		go func() { doneCh <- a.runQueue(ctx) }()
	default:
		return fmt.Errorf("unknown events source %q", a.cfg.Events.Source)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-doneCh:
		if err != nil {
			a.l.Error("intake finished with error", applogger.Error(err))
		}
		return a.shutdown(err)
	case sig := <-sigCh:
		a.l.Info("shutdown signal received", applogger.String("signal", sig.String()))
		cancel()
		// give in-flight events a bounded window to finish
		select {
		case err := <-doneCh:
			return a.shutdown(err)
		case <-time.After(a.cfg.Server.ShutdownTimeout):
			a.l.Warn("intake did not drain in time")
			return a.shutdown(nil)
		}
	}
}

// runBatch processes a JSONL event file once and returns.
func (a *App) runBatch(ctx context.Context) error {
	src, err := internalrepo.NewFileEventSource(a.cfg.Events.FilePath)
	if err != nil {
		return err
	}
	defer src.Close()

	batchID := a.cfg.Pipeline.BatchID
	if batchID == "" {
		batchID = time.Now().UTC().Format("20060102T150405Z")
	}
	a.l.Info("batch starting",
		applogger.String("batch_id", batchID),
		applogger.String("file", a.cfg.Events.FilePath),
		applogger.Int("workers", a.cfg.Pipeline.Workers),
	)

	_, err = a.runner.Run(ctx, batchID, src)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runStream consumes the websocket push feed through the validating
// pipeline, reconnecting on read failures until cancelled.
func (a *App) runStream(ctx context.Context) error {
	client := eventstream.New(
		a.cfg.Events.StreamURL,
		a.cfg.Events.StreamToken,
		a.cfg.Events.ReconnectDelay,
		a.cfg.Events.PingInterval,
		a.l,
	)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	pipe := mid.NewEventPipeline(a.proc, a.metrics,
		mid.WithMaxRPS(a.cfg.Events.MaxRPS),
		mid.WithBufferSize(a.cfg.Events.BufferSize),
	)
	pipe.Start(ctx)
	defer pipe.Stop()

	for {
		events, errs := client.Events(ctx)
		for ev := range events {
			if err := pipe.Process(ctx, ev); err != nil {
				a.l.Warn("stream event dropped", applogger.Error(err))
			}
		}
		for err := range errs {
			a.l.Warn("event stream error", applogger.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := client.Reconnect(ctx); err != nil {
			a.l.Error("event stream reconnect failed", applogger.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.cfg.Events.ReconnectDelay):
			}
		}
	}
}

// runQueue consumes events enqueued by upstream jobs until cancelled.
func (a *App) runQueue(ctx context.Context) error {
	q := queue.NewRedisConsumer(a.l,
		&queue.QueueConfig{
			Workers:    a.cfg.Pipeline.Workers,
			RetryLimit: a.cfg.Pipeline.RetryLimit,
			RetryDelay: a.cfg.Pipeline.RetryBackoff,
		},
		a.redisCache.Client(),
		[]queue.Job{usecase.NewProcessEventJob(a.proc)},
	)
	if err := q.Start(); err != nil {
		return fmt.Errorf("queue start: %w", err)
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return q.Stop(stopCtx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(runErr error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Warn("http shutdown error", applogger.Error(err))
		}
	}
	if err := a.sink.Close(); err != nil {
		a.l.Warn("sink close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}
	a.l.RemoveCollector()
	a.l.Info("shutdown complete")
	return runErr
}
