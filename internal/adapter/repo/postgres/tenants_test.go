package postgres_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealer-comms/engine/internal/adapter/repo/postgres"
	"github.com/dealer-comms/engine/internal/domain"
)

func TestTenantRepo_ActiveTenants(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewTenantRepo(m)

	rows := pgxmock.NewRows([]string{"tenant_id", "status", "settings"}).
		AddRow("tenant-a", "Active", []byte(`{"sms_from_number":"+15551234567"}`)).
		AddRow("tenant-b", "Active", []byte(`{}`))
	m.ExpectQuery("SELECT tenant_id, status, settings FROM tenants WHERE status = 'Active'").WillReturnRows(rows)

	tenants, err := repo.ActiveTenants(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.True(t, tenants[0].IsActive())
	assert.Equal(t, "+15551234567", tenants[0].Settings["sms_from_number"])
	require.NoError(t, m.ExpectationsWereMet())
}

func TestTenantRepo_Get_Unknown(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewTenantRepo(m)

	m.ExpectQuery("SELECT tenant_id, status, settings FROM tenants WHERE tenant_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTenantUnknown)
}
