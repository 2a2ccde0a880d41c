package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/rasterflow/internal/api"
	"github.com/dunamismax/rasterflow/internal/config"
	"github.com/dunamismax/rasterflow/internal/decode"
	"github.com/dunamismax/rasterflow/internal/queue"
	"github.com/dunamismax/rasterflow/internal/ratelimit"
	"github.com/dunamismax/rasterflow/internal/storage"
	"github.com/dunamismax/rasterflow/internal/store"
	"github.com/dunamismax/rasterflow/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "rasterflow-api",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
		SampleRatio:  cfg.Trace.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("setup tracing: %v", err)
	}

	if err := decode.Startup(); err != nil {
		logger.Fatalf("start decode runtime: %v", err)
	}
	defer decode.Shutdown()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	jobStore, closeStore := openJobStore(ctx, cfg, logger)
	defer closeStore()

	var objectStore *storage.Client
	objectStore, err = storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Printf("object storage disabled: %v", err)
	} else if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Printf("ensure bucket failed, presigned uploads may fail: %v", err)
	}

	opts := api.Options{
		QueueClient:    queueClient,
		JobStore:       jobStore,
		PresignTTL:     cfg.API.PresignTTL,
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		Decode:         cfg.Decode,
		UserIDHeader:   cfg.RateLimit.UserIDHeader,
	}
	if objectStore != nil {
		opts.Storage = objectStore
	}
	if limiter := newRateLimiter(cfg, logger); limiter != nil {
		opts.RateLimiter = limiter
	}
	app := api.NewServer(logger, opts)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s max_raster_bytes=%d", cfg.API.Addr, cfg.Decode.MaxRasterBytes)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}

func openJobStore(ctx context.Context, cfg config.Config, logger *log.Logger) (store.JobStore, func()) {
	if cfg.Database.DSN == "" {
		logger.Printf("POSTGRES_DSN not set, using in-memory job store")
		return store.NewMemoryJobStore(), func() {}
	}

	pg, err := store.NewPostgresJobStore(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("open postgres job store: %v", err)
	}
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Printf("postgres close error: %v", err)
		}
	}
}

func newRateLimiter(cfg config.Config, logger *log.Logger) ratelimit.Limiter {
	switch cfg.RateLimit.Backend {
	case "", "none":
		return nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		limiter, err := ratelimit.NewRedisTokenBucket(client, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			logger.Fatalf("create redis rate limiter: %v", err)
		}
		return limiter
	default:
		limiter, err := ratelimit.NewLocalLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.Window)
		if err != nil {
			logger.Fatalf("create local rate limiter: %v", err)
		}
		return limiter
	}
}
