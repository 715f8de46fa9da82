// Package postgres provides PostgreSQL database adapters.
//
// It implements repository interfaces for data persistence.
// The package provides type-safe database operations with
// connection pooling and transaction support.
package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dealer-comms/engine/internal/domain"
)

// JobRepo persists and claims communication_jobs rows using a minimal pgx pool.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	var payloadRaw []byte
	var sourceRef *string
	var lastErr *string
	if err := row.Scan(&j.ID, &j.TenantID, &j.JobType, &payloadRaw, &j.Status, &j.RetryCount, &lastErr, &j.CreatedAt, &j.UpdatedAt, &j.ProcessAfter, &sourceRef); err != nil {
		return domain.Job{}, err
	}
	if lastErr != nil {
		j.LastError = *lastErr
	}
	j.SourceReference = sourceRef
	if len(payloadRaw) > 0 {
		if err := json.Unmarshal(payloadRaw, &j.Payload); err != nil {
			return domain.Job{}, fmt.Errorf("op=job.scan.payload: %w", err)
		}
	}
	return j, nil
}

const jobColumns = `id, tenant_id, job_type, payload, status, retry_count, last_error, created_at, updated_at, process_after, source_reference`

// ClaimPending selects up to limit pending, due jobs inside a transaction using
// SELECT ... FOR UPDATE SKIP LOCKED, flips them to processing, and returns them
// ordered by created_at ascending. A limit of 0 returns immediately without
// touching the store.
func (r *JobRepo) ClaimPending(ctx domain.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ClaimPending")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "communication_jobs"))

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("op=job.claim.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	selectQ := `SELECT ` + jobColumns + ` FROM communication_jobs
		WHERE status = 'pending' AND process_after <= now()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1`
	rows, err := tx.Query(ctx, selectQ, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.claim.select: %w", err)
	}
	var jobs []domain.Job
	ids := make([]string, 0, limit)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("op=job.claim.scan: %w", err)
		}
		jobs = append(jobs, j)
		ids = append(ids, j.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.claim.rows: %w", err)
	}
	if len(ids) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("op=job.claim.commit_empty: %w", err)
		}
		committed = true
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE communication_jobs SET status = 'processing', updated_at = now() WHERE id = ANY($1::uuid[])`, ids); err != nil {
		return nil, fmt.Errorf("op=job.claim.update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("op=job.claim.commit: %w", err)
	}
	committed = true

	for i := range jobs {
		jobs[i].Status = domain.JobStatusProcessing
	}
	return jobs, nil
}

func (r *JobRepo) existsForReference(ctx domain.Context, tenantID string, jobType domain.JobType, reference string) (bool, error) {
	q := `SELECT 1 FROM communication_jobs
		WHERE tenant_id = $1 AND job_type = $2 AND source_reference = $3
		  AND status IN ('pending', 'processing', 'complete')
		LIMIT 1`
	row := r.Pool.QueryRow(ctx, q, tenantID, jobType, reference)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Insert inserts a new pending job. If sourceReference is non-empty and an
// active/completed sibling already exists for (tenantID, jobType, sourceReference)
// it is a no-op that returns false.
func (r *JobRepo) Insert(ctx domain.Context, tenantID string, jobType domain.JobType, payload map[string]any, processAfter time.Time, sourceReference string) (bool, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Insert")
	defer span.End()

	if sourceReference != "" {
		exists, err := r.existsForReference(ctx, tenantID, jobType, sourceReference)
		if err != nil {
			return false, fmt.Errorf("op=job.insert.dedup_check: %w", err)
		}
		if exists {
			return false, nil
		}
	}
	if processAfter.IsZero() {
		processAfter = time.Now().UTC()
	}
	payloadRaw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("op=job.insert.marshal: %w", err)
	}
	var sourceRef *string
	if sourceReference != "" {
		sourceRef = &sourceReference
	}
	q := `INSERT INTO communication_jobs (id, tenant_id, job_type, payload, status, retry_count, created_at, updated_at, process_after, source_reference)
		VALUES ($1,$2,$3,$4,'pending',0,now(),now(),$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, uuid.New().String(), tenantID, jobType, payloadRaw, processAfter, sourceRef); err != nil {
		return false, fmt.Errorf("op=job.insert.exec: %w", err)
	}
	return true, nil
}

// Create behaves like Insert but returns the new row's id, or "" on dedup no-op.
func (r *JobRepo) Create(ctx domain.Context, tenantID string, jobType domain.JobType, payload map[string]any, processAfter time.Time, sourceReference string) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()

	if sourceReference != "" {
		exists, err := r.existsForReference(ctx, tenantID, jobType, sourceReference)
		if err != nil {
			return "", fmt.Errorf("op=job.create.dedup_check: %w", err)
		}
		if exists {
			return "", nil
		}
	}
	if processAfter.IsZero() {
		processAfter = time.Now().UTC()
	}
	payloadRaw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=job.create.marshal: %w", err)
	}
	var sourceRef *string
	if sourceReference != "" {
		sourceRef = &sourceReference
	}
	id := uuid.New().String()
	q := `INSERT INTO communication_jobs (id, tenant_id, job_type, payload, status, retry_count, created_at, updated_at, process_after, source_reference)
		VALUES ($1,$2,$3,$4,'pending',0,now(),now(),$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, id, tenantID, jobType, payloadRaw, processAfter, sourceRef); err != nil {
		return "", fmt.Errorf("op=job.create.exec: %w", err)
	}
	return id, nil
}

// MarkComplete transitions a job to complete, recording an optional note.
func (r *JobRepo) MarkComplete(ctx domain.Context, id string, note string) error {
	q := `UPDATE communication_jobs SET status = 'complete', last_error = $2, updated_at = now() WHERE id = $1`
	var noteVal *string
	if note != "" {
		noteVal = &note
	}
	if _, err := r.Pool.Exec(ctx, q, id, noteVal); err != nil {
		return fmt.Errorf("op=job.mark_complete: %w", err)
	}
	return nil
}

// MarkFailed transitions a job to a terminal failure status (default "failed").
func (r *JobRepo) MarkFailed(ctx domain.Context, id string, reason string, status domain.JobStatus) error {
	if status == "" {
		status = domain.JobStatusFailed
	}
	q := `UPDATE communication_jobs SET status = $2, last_error = $3, updated_at = now() WHERE id = $1`
	if _, err := r.Pool.Exec(ctx, q, id, status, reason); err != nil {
		return fmt.Errorf("op=job.mark_failed: %w", err)
	}
	return nil
}

// Reschedule returns a job to pending at a future process_after, recording the
// reason and the new retry_count.
func (r *JobRepo) Reschedule(ctx domain.Context, id string, retryCount int, processAfter time.Time, reason string) error {
	q := `UPDATE communication_jobs SET status = 'pending', retry_count = $2, process_after = $3, last_error = $4, updated_at = now() WHERE id = $1`
	if _, err := r.Pool.Exec(ctx, q, id, retryCount, processAfter, reason); err != nil {
		return fmt.Errorf("op=job.reschedule: %w", err)
	}
	return nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM communication_jobs WHERE id = $1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// ListStuckProcessing returns processing jobs whose updated_at predates olderThan,
// for the stuck-job sweeper to reclaim after a crash mid-send.
func (r *JobRepo) ListStuckProcessing(ctx domain.Context, olderThan time.Time, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + jobColumns + ` FROM communication_jobs
		WHERE status = 'processing' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.list_stuck.query: %w", err)
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job.list_stuck.scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.list_stuck.rows: %w", err)
	}
	return jobs, nil
}
