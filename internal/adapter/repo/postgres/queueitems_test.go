package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealer-comms/engine/internal/adapter/repo/postgres"
	"github.com/dealer-comms/engine/internal/domain"
)

func queueItemRows() []string {
	return []string{"id", "tenant_id", "event_type", "communication_type", "recipient", "subject", "message_params", "status", "external_message_id", "retry_count", "error_details", "created_at"}
}

func TestQueueItemRepo_ClaimPending_Empty(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewQueueItemRepo(m)

	items, err := repo.ClaimPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestQueueItemRepo_ClaimPending_Claims(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewQueueItemRepo(m)
	now := time.Now().UTC()

	m.ExpectBegin()
	rows := pgxmock.NewRows(queueItemRows()).
		AddRow("qi-1", "tenant-a", "service_reminder", domain.CommEmail, []byte(`{"email":"a@example.com"}`), nil, []byte(`{}`), domain.QueueItemPending, nil, 0, nil, now)
	m.ExpectQuery("SELECT").WithArgs(2).WillReturnRows(rows)
	m.ExpectExec("UPDATE communication_queue SET status = 'processing'").
		WithArgs([]string{"qi-1"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	m.ExpectCommit()

	items, err := repo.ClaimPending(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.QueueItemProcessing, items[0].Status)
	assert.Equal(t, "a@example.com", items[0].Recipient.Email)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestQueueItemRepo_Insert(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewQueueItemRepo(m)

	m.ExpectExec("INSERT INTO communication_queue").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := repo.Insert(context.Background(), domain.QueueItem{
		TenantID:          "tenant-a",
		EventType:         "service_reminder",
		CommunicationType: domain.CommEmail,
		Recipient:         domain.RecipientAddress{Email: "a@example.com"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestQueueItemRepo_MarkSentAndFailed(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewQueueItemRepo(m)

	m.ExpectExec("UPDATE communication_queue SET status = 'sent'").
		WithArgs("qi-1", "msg-123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkSent(context.Background(), "qi-1", "msg-123"))

	m.ExpectExec("UPDATE communication_queue SET status = 'failed'").
		WithArgs("qi-2", "provider rejected").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkFailed(context.Background(), "qi-2", "provider rejected"))
	require.NoError(t, m.ExpectationsWereMet())
}

func TestQueueItemRepo_Get_NotFound(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewQueueItemRepo(m)

	m.ExpectQuery("SELECT").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
