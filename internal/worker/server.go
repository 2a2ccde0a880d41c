package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/rasterflow/internal/config"
	"github.com/dunamismax/rasterflow/internal/decode"
	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/pipeline"
	"github.com/dunamismax/rasterflow/internal/queue"
	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/dunamismax/rasterflow/internal/storage"
	"github.com/dunamismax/rasterflow/internal/store"
	"github.com/dunamismax/rasterflow/internal/telemetry"
	"github.com/dunamismax/rasterflow/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger          *log.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  *pipeline.Processor
	objectProcessor *pipeline.Processor
	webhookClient   webhookSender
	jobStore        store.JobStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	cfg config.Config,
	storageClient *storage.Client,
	webhookClient *webhook.Client,
	jobStore store.JobStore,
	usageStore store.UsageStore,
) (*Server, error) {
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	m := newMetrics()
	budget := raster.NewBudget(cfg.Decode.MaxRasterBytes)
	m.observeBudget(budget)

	decoder := decode.NewDecoder(decode.Config{
		Budget:   budget,
		Logger:   log.New(logger.Writer(), "[decode] ", logger.Flags()),
		Observer: m,
	})
	renderer := pipeline.NewRenderer(decoder, cfg.Decode.DefaultCornerRadius)

	localProcessor, err := pipeline.NewProcessor(
		pipeline.LocalFileFetcher{},
		pipeline.LocalFileEmitter{OutputDir: cfg.Worker.LocalOutputDir},
		renderer,
	)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline processor: %w", err)
	}

	objectProcessor, err := pipeline.NewProcessor(
		pipeline.SourceRouter{
			domain.SourceTypeS3Presigned: pipeline.ObjectStoreFetcher{Storage: storageClient},
			domain.SourceTypeHTTPURL: pipeline.HTTPFetcher{
				Timeout:           cfg.Fetch.Timeout,
				MaxRetries:        cfg.Fetch.MaxRetries,
				BackoffMultiplier: cfg.Fetch.BackoffMultiplier,
				MaxBodyBytes:      cfg.API.MaxUploadBytes,
			},
		},
		pipeline.ObjectStoreEmitter{Storage: storageClient, OutputPrefix: "outputs"},
		renderer,
	)
	if err != nil {
		return nil, fmt.Errorf("initialize object-store processor: %w", err)
	}

	if usageStore == nil {
		if jobAndUsageStore, ok := jobStore.(store.UsageStore); ok {
			usageStore = jobAndUsageStore
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			cfg.Queue.RedisClientOpt(),
			asynq.Config{
				Concurrency: cfg.Worker.Concurrency,
				Queues: map[string]int{
					cfg.Queue.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				IsFailure: func(err error) bool {
					return !errors.Is(err, context.Canceled)
				},
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, cfg.Worker.MaxActiveJobs)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		jobStore:        jobStore,
		usageStore:      usageStore,
		metrics:         m,
		tracer:          telemetry.Tracer("worker"),
	}
	if webhookClient != nil {
		s.webhookClient = webhookClient
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeDecodeImage, s.handleDecodeImage)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleDecodeImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseDecodeImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.decode_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_type", payload.SourceType),
		attribute.Int("decode.max_width", payload.Decode.MaxWidth),
		attribute.Int("decode.max_height", payload.Decode.MaxHeight),
		attribute.Bool("decode.round_corners", payload.Decode.RoundCorners),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	s.logger.Printf(
		"Working... job_id=%s source_type=%s max_width=%d max_height=%d round_corners=%t",
		payload.JobID,
		payload.SourceType,
		payload.Decode.MaxWidth,
		payload.Decode.MaxHeight,
		payload.Decode.RoundCorners,
	)

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

	request := pipeline.Request{
		JobID:      payload.JobID,
		SourceType: payload.SourceType,
		ObjectKey:  payload.ObjectKey,
		SourceURL:  payload.SourceURL,
		Decode:     payload.Decode,
	}

	var result pipeline.Result
	switch strings.ToLower(payload.SourceType) {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		result, err = s.objectProcessor.Process(ctx, request)
	}
	if err != nil {
		return s.handleFailure(ctx, span, payload, err)
	}

	s.logger.Printf(
		"Processed job_id=%s format=%s size=%dx%d bytes=%d",
		payload.JobID,
		result.Output.Format,
		result.Output.Width,
		result.Output.Height,
		result.Output.Bytes,
	)
	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusSucceeded)
	s.metrics.outputsTotal.WithLabelValues(result.Output.Format).Inc()
	s.recordUsage(ctx, payload, result, time.Since(startedAt))

	if err := s.dispatchWebhook(ctx, payload, webhook.EventDecodeCompleted, map[string]any{
		"job_id":       payload.JobID,
		"status":       domain.JobStatusSucceeded,
		"source_type":  payload.SourceType,
		"object_key":   payload.ObjectKey,
		"requested_at": payload.RequestedAt,
		"completed_at": time.Now().UTC(),
		"output":       result.Output,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "processed")
	return nil
}

// handleFailure marks the job failed and notifies the webhook only when no
// further attempt will run: the error is permanent or retries are spent.
// Permanent errors are wrapped with asynq.SkipRetry.
func (s *Server) handleFailure(ctx context.Context, span trace.Span, payload queue.DecodeImagePayload, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "pipeline failed")

	permanent := pipeline.IsPermanent(err)
	if kind, ok := decode.KindOf(err); ok {
		span.SetAttributes(attribute.String("decode.error_kind", kind.String()))
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if !permanent && retried < maxRetry {
		s.logger.Printf("job_id=%s attempt failed, will retry err=%v", payload.JobID, err)
		return fmt.Errorf("run pipeline: %w", err)
	}

	s.updateJobStatus(ctx, payload.JobID, domain.JobStatusFailed)
	_ = s.dispatchWebhook(ctx, payload, webhook.EventDecodeFailed, map[string]any{
		"job_id":       payload.JobID,
		"status":       domain.JobStatusFailed,
		"source_type":  payload.SourceType,
		"object_key":   payload.ObjectKey,
		"requested_at": payload.RequestedAt,
		"failed_at":    time.Now().UTC(),
		"error":        err.Error(),
		"error_kind":   errorKind(err),
	})

	if permanent {
		return fmt.Errorf("run pipeline: %v: %w", err, asynq.SkipRetry)
	}
	return fmt.Errorf("run pipeline: %w", err)
}

func errorKind(err error) string {
	if kind, ok := decode.KindOf(err); ok {
		return kind.String()
	}
	return "internal"
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Printf("job status update failed job_id=%s status=%s err=%v", jobID, status, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.DecodeImagePayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, payload queue.DecodeImagePayload, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := strings.TrimSpace(payload.UserID)
	if userID == "" && s.jobStore != nil {
		job, ok, err := s.jobStore.Get(ctx, payload.JobID)
		if err != nil {
			s.logger.Printf("usage lookup failed job_id=%s err=%v", payload.JobID, err)
		} else if ok {
			userID = strings.TrimSpace(job.UserID)
		}
	}
	if userID == "" {
		userID = "anonymous"
	}

	pixelsProcessed := int64(result.Output.Width) * int64(result.Output.Height)
	bytesSaved := max(0, int64(result.SourceBytes-result.Output.Bytes))
	computeTimeMS := max(1, computeDuration.Milliseconds())
	pixelFormat := payload.Decode.PixelFormat
	if pf, err := raster.ParsePixelFormat(pixelFormat); err == nil {
		pixelFormat = pf.String()
	}

	usage := domain.UsageLog{
		UserID:          userID,
		JobID:           payload.JobID,
		PixelsProcessed: pixelsProcessed,
		BytesSaved:      bytesSaved,
		ComputeTimeMS:   computeTimeMS,
		OutputFormat:    result.Output.Format,
		PixelFormat:     pixelFormat,
		RoundedCorners:  result.Output.RoundedCorners,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Printf("usage log write failed job_id=%s err=%v", payload.JobID, err)
		return
	}

	s.metrics.pixelsProcessedTotal.Add(float64(pixelsProcessed))
	s.metrics.bytesSavedTotal.Add(float64(bytesSaved))
	s.metrics.computeTimeMSTotal.Add(float64(computeTimeMS))
}
