package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealer-comms/engine/internal/app/handlers"
	"github.com/dealer-comms/engine/internal/domain"
)

type procFakeJobRepo struct {
	rescheduleCalls []struct {
		id         string
		retryCount int
		reason     string
	}
	markFailedCalls []struct {
		id     string
		reason string
		status domain.JobStatus
	}
	createCalls []struct {
		tenantID  string
		jobType   domain.JobType
		payload   map[string]any
		sourceRef string
	}
	createErr error
}

func (r *procFakeJobRepo) ClaimPending(domain.Context, int) ([]domain.Job, error) { return nil, nil }
func (r *procFakeJobRepo) Insert(domain.Context, string, domain.JobType, map[string]any, time.Time, string) (bool, error) {
	return false, nil
}
func (r *procFakeJobRepo) Create(_ domain.Context, tenantID string, jobType domain.JobType, payload map[string]any, _ time.Time, sourceRef string) (string, error) {
	r.createCalls = append(r.createCalls, struct {
		tenantID  string
		jobType   domain.JobType
		payload   map[string]any
		sourceRef string
	}{tenantID, jobType, payload, sourceRef})
	if r.createErr != nil {
		return "", r.createErr
	}
	return "new-job-id", nil
}
func (r *procFakeJobRepo) MarkComplete(domain.Context, string, string) error { return nil }
func (r *procFakeJobRepo) MarkFailed(_ domain.Context, id string, reason string, status domain.JobStatus) error {
	r.markFailedCalls = append(r.markFailedCalls, struct {
		id     string
		reason string
		status domain.JobStatus
	}{id, reason, status})
	return nil
}
func (r *procFakeJobRepo) Reschedule(_ domain.Context, id string, retryCount int, _ time.Time, reason string) error {
	r.rescheduleCalls = append(r.rescheduleCalls, struct {
		id         string
		retryCount int
		reason     string
	}{id, retryCount, reason})
	return nil
}
func (r *procFakeJobRepo) Get(domain.Context, string) (domain.Job, error) { return domain.Job{}, nil }
func (r *procFakeJobRepo) ListStuckProcessing(domain.Context, time.Time, int) ([]domain.Job, error) {
	return nil, nil
}

type procFakeGateway struct {
	contact map[string]any
	err     error
}

func (g *procFakeGateway) QueryTenant(domain.Context, string, string, ...any) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) CustomersContact(domain.Context, string, string) (map[string]any, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.contact, nil
}
func (g *procFakeGateway) WorkOrderEquipment(domain.Context, string, string) (map[string]any, error) {
	return nil, nil
}

func (g *procFakeGateway) ServiceReminderCandidates(domain.Context, string) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) AppointmentsInWindow(domain.Context, string) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) PastDueInvoices(domain.Context, string) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) SevenDayCheckin(domain.Context, string) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) PostServiceSurvey(domain.Context, string) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) AnnualTuneup(domain.Context, string) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) SeasonalReminder(domain.Context, string) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) GhostCustomer(domain.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) AnniversaryOffer(domain.Context, string) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) WarrantyExpiration(domain.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) TradeIn(domain.Context, string, int, int) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) FirstService(domain.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}
func (g *procFakeGateway) UsageService(domain.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}

func newTestProcessor(jobs domain.JobRepository, gateway domain.TenantGateway, maxRetries int) *Processor {
	return NewProcessor(jobs, nil, nil, gateway, nil, nil, ProcessorConfig{MaxRetries: maxRetries}, nil)
}

func TestNewProcessor_AppliesDefaults(t *testing.T) {
	p := newTestProcessor(&procFakeJobRepo{}, &procFakeGateway{}, 0)
	assert.Equal(t, 3, p.maxRetries)
	assert.Equal(t, 10, p.maxConcurrent)
	assert.Equal(t, 5*time.Second, p.pollInterval)
	assert.Equal(t, 5*time.Minute, p.retryDelay)
	assert.False(t, p.Running())
}

func TestProcessor_Registry_HasAllHandlerTypes(t *testing.T) {
	p := newTestProcessor(&procFakeJobRepo{}, &procFakeGateway{}, 3)
	for _, jt := range []domain.JobType{
		domain.JobTypeSendEmail,
		domain.JobTypeSendSMS,
		domain.JobTypeNotifyCustomer,
		domain.JobTypeProcessQueueItem,
	} {
		_, ok := p.handlers[jt]
		assert.True(t, ok, "expected handler registered for %s", jt)
	}
	assert.Equal(t, len(handlers.Registry()), len(p.handlers))
}

func TestProcessor_HandleFailure_ReschedulesBeforeMaxRetries(t *testing.T) {
	repo := &procFakeJobRepo{}
	p := newTestProcessor(repo, &procFakeGateway{}, 3)
	job := domain.Job{ID: "job-1", JobType: domain.JobTypeSendEmail, RetryCount: 0}

	p.handleFailure(context.Background(), job, assertErr("boom"))

	require.Len(t, repo.rescheduleCalls, 1)
	assert.Equal(t, "job-1", repo.rescheduleCalls[0].id)
	assert.Equal(t, 1, repo.rescheduleCalls[0].retryCount)
	assert.Empty(t, repo.markFailedCalls)
}

func TestProcessor_HandleFailure_MarksFailedAfterMaxRetriesForNonSMS(t *testing.T) {
	repo := &procFakeJobRepo{}
	p := newTestProcessor(repo, &procFakeGateway{}, 1)
	job := domain.Job{ID: "job-2", JobType: domain.JobTypeSendEmail, RetryCount: 1}

	p.handleFailure(context.Background(), job, assertErr("boom"))

	require.Len(t, repo.markFailedCalls, 1)
	assert.Equal(t, "job-2", repo.markFailedCalls[0].id)
	assert.Equal(t, domain.JobStatusFailed, repo.markFailedCalls[0].status)
	assert.Empty(t, repo.rescheduleCalls)
}

func TestProcessor_HandleFailure_FallsBackToEmailForExhaustedSMS(t *testing.T) {
	repo := &procFakeJobRepo{}
	gateway := &procFakeGateway{contact: map[string]any{"email": "c@example.com"}}
	p := newTestProcessor(repo, gateway, 1)
	job := domain.Job{
		ID:         "job-3",
		TenantID:   "t1",
		JobType:    domain.JobTypeSendSMS,
		RetryCount: 1,
		Payload:    map[string]any{"customer_id": "c1", "body": "reminder"},
	}

	p.handleFailure(context.Background(), job, assertErr("carrier rejected"))

	require.Len(t, repo.createCalls, 1)
	assert.Equal(t, domain.JobTypeSendEmail, repo.createCalls[0].jobType)
	assert.Equal(t, "sms_fallback_job-3", repo.createCalls[0].sourceRef)
	assert.Equal(t, "c@example.com", repo.createCalls[0].payload["to"])
	require.Len(t, repo.markFailedCalls, 1)
	assert.Equal(t, domain.JobStatusFailedFallbackEmail, repo.markFailedCalls[0].status)
}

func TestProcessor_HandleFailure_NoFallbackEmailMarksPlainFailedStatus(t *testing.T) {
	repo := &procFakeJobRepo{}
	gateway := &procFakeGateway{err: domain.ErrNotFound}
	p := newTestProcessor(repo, gateway, 1)
	job := domain.Job{
		ID:         "job-4",
		TenantID:   "t1",
		JobType:    domain.JobTypeSendSMS,
		RetryCount: 1,
		Payload:    map[string]any{"customer_id": "c1"},
	}

	p.handleFailure(context.Background(), job, assertErr("carrier rejected"))

	assert.Empty(t, repo.createCalls)
	require.Len(t, repo.markFailedCalls, 1)
	assert.Equal(t, domain.JobStatusFailed, repo.markFailedCalls[0].status)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
