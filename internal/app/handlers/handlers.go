// Package handlers implements C10: one file per domain.JobType, each
// validating its job's payload and dispatching to a provider adapter or
// the queue-item pipeline. Mirrors the teacher's per-concern adapter
// wiring in cmd/worker/main.go, translated from
// original_source/src/jobs/handlers/*.py's JOB_HANDLERS dispatch table.
package handlers

import (
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/dealer-comms/engine/internal/domain"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

// getValidator returns the shared struct validator, built once per process
// the way the teacher's httpserver package lazily builds its own.
func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// HandlerContext carries everything a handler needs beyond the job itself:
// the tenant's resolved configuration and the shared adapters/ports built
// once at startup and reused across every job.
type HandlerContext struct {
	TenantConfig domain.TenantConfig
	Factory      domain.AdapterFactory
	Gateway      domain.TenantGateway
	Generator    domain.ContentGenerator
	QueueItems   domain.QueueItemRepository
	Logger       *slog.Logger
}

// HandlerResult is what a handler returns on success. Skipped marks a job
// that intentionally did nothing (e.g. a customer opted out of contact),
// which the processor still records as complete.
type HandlerResult struct {
	Skipped bool
	Reason  string
}

// Handler processes a single job and reports the outcome.
type Handler func(ctx domain.Context, job domain.Job, hctx HandlerContext) (HandlerResult, error)

// Registry maps each job type to its handler, the Go equivalent of the
// original's JOB_HANDLERS dict.
func Registry() map[domain.JobType]Handler {
	return map[domain.JobType]Handler{
		domain.JobTypeSendEmail:        SendEmail,
		domain.JobTypeSendSMS:          SendSMS,
		domain.JobTypeNotifyCustomer:   NotifyCustomer,
		domain.JobTypeProcessQueueItem: ProcessQueueItem,
	}
}
