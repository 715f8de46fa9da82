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

func templateRows() []string {
	return []string{"tenant_id", "event_type", "communication_type", "subject_template", "body_text_template", "body_html_template", "variables", "ai_enhance", "ai_instructions", "is_active", "version"}
}

func TestTemplateRepo_Resolve_PrefersTenantOverride(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewTemplateRepo(m)
	tenantID := "tenant-a"

	rows := pgxmock.NewRows(templateRows()).
		AddRow(&tenantID, "service_reminder", domain.CommEmail, "Reminder", "body text", "<p>body</p>", []byte(`{}`), false, nil, true, 2)
	m.ExpectQuery("SELECT").WithArgs("tenant-a", "service_reminder", domain.CommEmail).WillReturnRows(rows)

	tpl, err := repo.Resolve(context.Background(), "tenant-a", "service_reminder", domain.CommEmail)
	require.NoError(t, err)
	assert.Equal(t, "Reminder", tpl.SubjectTemplate)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestTemplateRepo_Resolve_FallsBackToGlobal(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewTemplateRepo(m)

	m.ExpectQuery("SELECT").WithArgs("tenant-a", "service_reminder", domain.CommEmail).WillReturnError(pgx.ErrNoRows)
	rows := pgxmock.NewRows(templateRows()).
		AddRow(nil, "service_reminder", domain.CommEmail, "Default reminder", "body text", "<p>body</p>", []byte(`{}`), false, nil, true, 1)
	m.ExpectQuery("SELECT").WithArgs("service_reminder", domain.CommEmail).WillReturnRows(rows)

	tpl, err := repo.Resolve(context.Background(), "tenant-a", "service_reminder", domain.CommEmail)
	require.NoError(t, err)
	assert.Equal(t, "Default reminder", tpl.SubjectTemplate)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestTemplateRepo_Resolve_NotFound(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewTemplateRepo(m)

	m.ExpectQuery("SELECT").WithArgs("tenant-a", "unknown_event", domain.CommSMS).WillReturnError(pgx.ErrNoRows)
	m.ExpectQuery("SELECT").WithArgs("unknown_event", domain.CommSMS).WillReturnError(pgx.ErrNoRows)

	_, err = repo.Resolve(context.Background(), "tenant-a", "unknown_event", domain.CommSMS)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
