package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealer-comms/engine/internal/domain"
)

// QueueItemRepo persists and claims communication_queue rows.
type QueueItemRepo struct{ Pool PgxPool }

// NewQueueItemRepo constructs a QueueItemRepo with the given pool.
func NewQueueItemRepo(p PgxPool) *QueueItemRepo { return &QueueItemRepo{Pool: p} }

const queueItemColumns = `id, tenant_id, event_type, communication_type, recipient, subject, message_params, status, external_message_id, retry_count, error_details, created_at`

func scanQueueItem(row pgx.Row) (domain.QueueItem, error) {
	var qi domain.QueueItem
	var recipientRaw, paramsRaw []byte
	var subject *string
	var externalID, errDetails *string
	if err := row.Scan(&qi.ID, &qi.TenantID, &qi.EventType, &qi.CommunicationType, &recipientRaw, &subject, &paramsRaw, &qi.Status, &externalID, &qi.RetryCount, &errDetails, &qi.CreatedAt); err != nil {
		return domain.QueueItem{}, err
	}
	qi.Subject = subject
	if externalID != nil {
		qi.ExternalMessageID = *externalID
	}
	if errDetails != nil {
		qi.ErrorDetails = *errDetails
	}
	if len(recipientRaw) > 0 {
		if err := json.Unmarshal(recipientRaw, &qi.Recipient); err != nil {
			return domain.QueueItem{}, fmt.Errorf("op=queueitem.scan.recipient: %w", err)
		}
	}
	if len(paramsRaw) > 0 {
		if err := json.Unmarshal(paramsRaw, &qi.MessageParams); err != nil {
			return domain.QueueItem{}, fmt.Errorf("op=queueitem.scan.params: %w", err)
		}
	}
	return qi, nil
}

// ClaimPending selects up to limit pending queue items and flips them to
// processing inside a transaction, mirroring JobRepo.ClaimPending.
func (r *QueueItemRepo) ClaimPending(ctx domain.Context, limit int) ([]domain.QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("op=queueitem.claim.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	selectQ := `SELECT ` + queueItemColumns + ` FROM communication_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1`
	rows, err := tx.Query(ctx, selectQ, limit)
	if err != nil {
		return nil, fmt.Errorf("op=queueitem.claim.select: %w", err)
	}
	var items []domain.QueueItem
	ids := make([]string, 0, limit)
	for rows.Next() {
		qi, err := scanQueueItem(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("op=queueitem.claim.scan: %w", err)
		}
		items = append(items, qi)
		ids = append(ids, qi.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=queueitem.claim.rows: %w", err)
	}
	if len(ids) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("op=queueitem.claim.commit_empty: %w", err)
		}
		committed = true
		return nil, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE communication_queue SET status = 'processing' WHERE id = ANY($1::uuid[])`, ids); err != nil {
		return nil, fmt.Errorf("op=queueitem.claim.update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("op=queueitem.claim.commit: %w", err)
	}
	committed = true
	for i := range items {
		items[i].Status = domain.QueueItemProcessing
	}
	return items, nil
}

// Insert inserts a new pending queue item and returns its id.
func (r *QueueItemRepo) Insert(ctx domain.Context, item domain.QueueItem) (string, error) {
	recipientRaw, err := json.Marshal(item.Recipient)
	if err != nil {
		return "", fmt.Errorf("op=queueitem.insert.marshal_recipient: %w", err)
	}
	paramsRaw, err := json.Marshal(item.MessageParams)
	if err != nil {
		return "", fmt.Errorf("op=queueitem.insert.marshal_params: %w", err)
	}
	id := uuid.New().String()
	q := `INSERT INTO communication_queue (id, tenant_id, event_type, communication_type, recipient, subject, message_params, status, retry_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`
	if _, err := r.Pool.Exec(ctx, q, id, item.TenantID, item.EventType, item.CommunicationType, recipientRaw, item.Subject, paramsRaw); err != nil {
		return "", fmt.Errorf("op=queueitem.insert.exec: %w", err)
	}
	return id, nil
}

// MarkSent transitions a queue item to sent, recording the provider message id.
func (r *QueueItemRepo) MarkSent(ctx domain.Context, id string, externalMessageID string) error {
	q := `UPDATE communication_queue SET status = 'sent', external_message_id = $2 WHERE id = $1`
	if _, err := r.Pool.Exec(ctx, q, id, externalMessageID); err != nil {
		return fmt.Errorf("op=queueitem.mark_sent: %w", err)
	}
	return nil
}

// MarkFailed transitions a queue item to failed, recording the error.
func (r *QueueItemRepo) MarkFailed(ctx domain.Context, id string, reason string) error {
	q := `UPDATE communication_queue SET status = 'failed', error_details = $2 WHERE id = $1`
	if _, err := r.Pool.Exec(ctx, q, id, reason); err != nil {
		return fmt.Errorf("op=queueitem.mark_failed: %w", err)
	}
	return nil
}

// Get loads a queue item by id.
func (r *QueueItemRepo) Get(ctx domain.Context, id string) (domain.QueueItem, error) {
	q := `SELECT ` + queueItemColumns + ` FROM communication_queue WHERE id = $1`
	qi, err := scanQueueItem(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.QueueItem{}, fmt.Errorf("op=queueitem.get: %w", domain.ErrNotFound)
		}
		return domain.QueueItem{}, fmt.Errorf("op=queueitem.get: %w", err)
	}
	return qi, nil
}
