package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dealer-comms/engine/internal/app/handlers"
	"github.com/dealer-comms/engine/internal/domain"
)

// TenantConfigResolver is the subset of C4's TenantConfigCache the
// processor needs to build a HandlerContext per job.
type TenantConfigResolver interface {
	GetTenantConfig(ctx domain.Context, tenantID string) (domain.TenantConfig, error)
}

// Processor is C9: it polls JobRepository for pending jobs, honors
// per-tenant quiet hours, runs up to MaxConcurrentJobs jobs concurrently
// through a worker-slot semaphore, and applies the retry/fallback policy on
// failure. Adapted from original_source/src/jobs/job_processor.py's
// JobProcessor (tick/slot accounting) and the teacher's background-sweeper
// goroutine pattern (StuckJobSweeper.Run).
type Processor struct {
	jobs       domain.JobRepository
	tenants    TenantConfigResolver
	factory    domain.AdapterFactory
	gateway    domain.TenantGateway
	generator  domain.ContentGenerator
	queueItems domain.QueueItemRepository
	handlers   map[domain.JobType]handlers.Handler
	logger     *slog.Logger

	pollInterval time.Duration
	maxConcurrent int
	retryDelay    time.Duration
	maxRetries    int

	slots   chan struct{}
	running atomic.Bool
}

// ProcessorConfig bundles the knobs Processor needs from the caarlos0/env
// loaded Config, avoiding a direct internal/config import so this package
// stays testable in isolation.
type ProcessorConfig struct {
	PollInterval      time.Duration
	MaxConcurrentJobs int
	RetryDelay        time.Duration
	MaxRetries        int
}

// NewProcessor constructs a Processor. A nil logger defaults to slog.Default().
func NewProcessor(
	jobs domain.JobRepository,
	tenants TenantConfigResolver,
	factory domain.AdapterFactory,
	gateway domain.TenantGateway,
	generator domain.ContentGenerator,
	queueItems domain.QueueItemRepository,
	cfg ProcessorConfig,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := cfg.MaxConcurrentJobs
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Minute
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Processor{
		jobs:          jobs,
		tenants:       tenants,
		factory:       factory,
		gateway:       gateway,
		generator:     generator,
		queueItems:    queueItems,
		handlers:      handlers.Registry(),
		logger:        logger,
		pollInterval:  pollInterval,
		maxConcurrent: maxConcurrent,
		retryDelay:    retryDelay,
		maxRetries:    maxRetries,
		slots:         make(chan struct{}, maxConcurrent),
	}
}

// Running reports whether the poll loop is currently active, satisfying
// httpserver.RunningChecker for the readiness endpoint.
func (p *Processor) Running() bool { return p.running.Load() }

// Run polls immediately and then on every tick until ctx is canceled,
// mirroring the original's tick_loop (run immediately, then on interval).
func (p *Processor) Run(ctx context.Context) {
	if p == nil || p.jobs == nil {
		return
	}
	p.running.Store(true)
	defer p.running.Store(false)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("job processor stopping")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick claims up to the number of currently free worker slots and runs each
// claimed job in its own goroutine, the Go equivalent of the original's
// per-job daemon thread.
func (p *Processor) tick(ctx context.Context) {
	availableSlots := p.maxConcurrent - len(p.slots)
	if availableSlots <= 0 {
		return
	}

	jobs, err := p.jobs.ClaimPending(ctx, availableSlots)
	if err != nil {
		p.logger.Error("job polling tick failed", "error", err)
		return
	}

	for _, job := range jobs {
		p.slots <- struct{}{}
		go func(j domain.Job) {
			defer func() { <-p.slots }()
			p.runJob(ctx, j)
		}(job)
	}
}

// runJob executes a single claimed job: resolve tenant config, defer for
// quiet hours if applicable, dispatch to the registered handler, and mark
// the outcome. Ported from job_processor.py's run_job.
func (p *Processor) runJob(ctx context.Context, job domain.Job) {
	tracer := otel.Tracer("processor.job")
	ctx, span := tracer.Start(ctx, "Processor.runJob")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.type", string(job.JobType)),
		attribute.String("job.tenant_id", job.TenantID),
	)

	cfg, err := p.tenants.GetTenantConfig(ctx, job.TenantID)
	if err != nil {
		span.RecordError(err)
		p.handleFailure(ctx, job, err)
		return
	}

	if delay := quietHoursDelay(job, cfg, time.Now()); delay != nil {
		if err := p.jobs.Reschedule(ctx, job.ID, job.RetryCount, *delay, "deferred for quiet hours"); err != nil {
			p.logger.Error("failed to reschedule job for quiet hours", "job_id", job.ID, "error", err)
		} else {
			p.logger.Info("deferred job due to quiet hours", "job_id", job.ID, "tenant_id", job.TenantID)
		}
		return
	}

	handler, ok := p.handlers[job.JobType]
	if !ok {
		p.handleFailure(ctx, job, domain.ErrInvalidArgument)
		return
	}

	hctx := handlers.HandlerContext{
		TenantConfig: cfg,
		Factory:      p.factory,
		Gateway:      p.gateway,
		Generator:    p.generator,
		QueueItems:   p.queueItems,
		Logger:       p.logger,
	}

	result, err := handler(ctx, job, hctx)
	if err != nil {
		span.RecordError(err)
		p.handleFailure(ctx, job, err)
		return
	}

	if err := p.jobs.MarkComplete(ctx, job.ID, result.Reason); err != nil {
		p.logger.Error("failed to mark job complete", "job_id", job.ID, "error", err)
		return
	}
	p.logger.Info("job processed successfully", "job_id", job.ID, "job_type", string(job.JobType))
}

// handleFailure applies the retry-then-fallback-then-fail policy from
// job_processor.py's handle_job_failure / try_email_fallback.
func (p *Processor) handleFailure(ctx context.Context, job domain.Job, cause error) {
	p.logger.Error("job processing failed", "job_id", job.ID, "job_type", string(job.JobType), "error", cause)

	attempts := job.RetryCount + 1
	if attempts < p.maxRetries {
		nextRetry := time.Now().Add(p.retryDelay)
		if err := p.jobs.Reschedule(ctx, job.ID, attempts, nextRetry, cause.Error()); err != nil {
			p.logger.Error("failed to reschedule job", "job_id", job.ID, "error", err)
		}
		return
	}

	if job.JobType == domain.JobTypeSendSMS {
		if p.tryEmailFallback(ctx, job, cause) {
			return
		}
	}

	if err := p.jobs.MarkFailed(ctx, job.ID, cause.Error(), domain.JobStatusFailed); err != nil {
		p.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
}

// tryEmailFallback creates a send_email job for a customer whose SMS kept
// failing, ported from job_processor.py's try_email_fallback. Returns true
// once it has recorded a terminal outcome for job (either by creating the
// fallback or by marking the original job failed itself).
func (p *Processor) tryEmailFallback(ctx context.Context, job domain.Job, cause error) bool {
	customerID := job.PayloadString("customer_id")
	if customerID == "" {
		_ = p.jobs.MarkFailed(ctx, job.ID, "sms failed after retries: "+cause.Error(), domain.JobStatusFailed)
		return true
	}

	contact, err := p.gateway.CustomersContact(ctx, job.TenantID, customerID)
	email, _ := contact["email"].(string)
	if err != nil || email == "" {
		_ = p.jobs.MarkFailed(ctx, job.ID, "sms failed, no fallback email for customer "+customerID, domain.JobStatusFailed)
		return true
	}

	subject := job.PayloadString("subject")
	if subject == "" {
		subject = "SMS Fallback Notification"
	}
	payload := map[string]any{
		"to":              email,
		"subject":         subject,
		"body":            job.PayloadString("body"),
		"source_job_id":   job.ID,
	}

	sourceRef := "sms_fallback_" + job.ID
	if _, err := p.jobs.Create(ctx, job.TenantID, domain.JobTypeSendEmail, payload, time.Now(), sourceRef); err != nil {
		p.logger.Error("failed to create sms fallback email job", "job_id", job.ID, "error", err)
		_ = p.jobs.MarkFailed(ctx, job.ID, cause.Error(), domain.JobStatusFailedFallbackEmail)
		return true
	}

	_ = p.jobs.MarkFailed(ctx, job.ID, "sms failed, fell back to email: "+cause.Error(), domain.JobStatusFailedFallbackEmail)
	return true
}
