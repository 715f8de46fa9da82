package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dealer-comms/engine/internal/domain"
)

// StuckJobSweeper finds jobs left in "processing" by a crashed worker and
// marks them with the terminal "failed" status, so they are not left
// stranded in "processing" forever. They are not retried afterwards.
type StuckJobSweeper struct {
	jobs             domain.JobRepository
	maxProcessingAge time.Duration
	interval         time.Duration
}

// NewStuckJobSweeper constructs a sweeper with sane defaults when
// maxProcessingAge/interval are left at zero.
func NewStuckJobSweeper(jobs domain.JobRepository, maxProcessingAge, interval time.Duration) *StuckJobSweeper {
	if jobs == nil {
		return nil
	}
	if maxProcessingAge <= 0 {
		maxProcessingAge = 3 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckJobSweeper{jobs: jobs, maxProcessingAge: maxProcessingAge, interval: interval}
}

// Run sweeps immediately and then on every tick until ctx is canceled.
func (s *StuckJobSweeper) Run(ctx context.Context) {
	if s == nil || s.jobs == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck job sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckJobSweeper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("jobs.sweeper")
	ctx, span := tracer.Start(ctx, "StuckJobSweeper.sweepOnce")
	defer span.End()

	cutoff := time.Now().Add(-s.maxProcessingAge)
	span.SetAttributes(attribute.Float64("jobs.max_processing_age_seconds", s.maxProcessingAge.Seconds()))

	jobs, err := s.jobs.ListStuckProcessing(ctx, cutoff, 100)
	if err != nil {
		span.RecordError(err)
		slog.Error("stuck job sweep failed to list jobs", slog.Any("error", err))
		return
	}

	reason := fmt.Sprintf("job processing exceeded maximum age %v; marked failed by sweeper", s.maxProcessingAge)
	markedFailed := 0
	for _, j := range jobs {
		if err := s.jobs.MarkFailed(ctx, j.ID, reason, domain.JobStatusFailed); err != nil {
			slog.Error("stuck job sweep failed to update job status", slog.String("job_id", j.ID), slog.Any("error", err))
			continue
		}
		markedFailed++
	}

	span.SetAttributes(
		attribute.Int("jobs.total_checked", len(jobs)),
		attribute.Int("jobs.total_marked_failed", markedFailed),
	)
}
