package domain

import "time"

// JobRepository is the port C9's processor and the scheduler/handlers use to
// persist and claim communication_jobs rows (C8).
type JobRepository interface {
	ClaimPending(ctx Context, limit int) ([]Job, error)
	Insert(ctx Context, tenantID string, jobType JobType, payload map[string]any, processAfter time.Time, sourceReference string) (bool, error)
	Create(ctx Context, tenantID string, jobType JobType, payload map[string]any, processAfter time.Time, sourceReference string) (string, error)
	MarkComplete(ctx Context, id string, note string) error
	MarkFailed(ctx Context, id string, reason string, status JobStatus) error
	Reschedule(ctx Context, id string, retryCount int, processAfter time.Time, reason string) error
	Get(ctx Context, id string) (Job, error)
	ListStuckProcessing(ctx Context, olderThan time.Time, limit int) ([]Job, error)
}

// QueueItemRepository is the port for communication_queue rows, consumed by
// the process_queue_item handler (C10) and the scheduler (C11) when it
// enqueues event-driven sends.
type QueueItemRepository interface {
	ClaimPending(ctx Context, limit int) ([]QueueItem, error)
	Insert(ctx Context, item QueueItem) (string, error)
	MarkSent(ctx Context, id string, externalMessageID string) error
	MarkFailed(ctx Context, id string, reason string) error
	Get(ctx Context, id string) (QueueItem, error)
}

// TemplateStore resolves message templates (C6), preferring a tenant-specific
// override over the global-default row for the same (event_type, communication_type).
type TemplateStore interface {
	Resolve(ctx Context, tenantID string, eventType string, commType CommunicationType) (Template, error)
}

// TenantStore is the central registry of tenants (C2 concern, read by C11's
// scheduler to restrict sweeps to active tenants only).
type TenantStore interface {
	ActiveTenants(ctx Context) ([]Tenant, error)
	Get(ctx Context, tenantID string) (Tenant, error)
}

// TenantConfigCache is C4: materializes and caches per-tenant configuration,
// failing ErrTenantUnknown for a tenant id the central store has never seen.
type TenantConfigCache interface {
	GetTenantConfig(ctx Context, tenantID string) (TenantConfig, error)
	Invalidate(tenantID string)
}

// TenantGateway is C3: executes the named candidate-finder queries against a
// tenant's own operational database, lazily opening and caching a pool per
// tenant. Implementations fail ErrTenantMisconfigured when no DSN can be
// resolved for tenantID.
type TenantGateway interface {
	QueryTenant(ctx Context, tenantID string, query string, args ...any) ([]map[string]any, error)
	CustomersContact(ctx Context, tenantID string, customerID string) (map[string]any, error)
	WorkOrderEquipment(ctx Context, tenantID string, workOrderNumber string) (map[string]any, error)

	// The remaining named candidate-finder queries from spec §6/§4.9,
	// consumed by C11's scheduler sweeps.
	ServiceReminderCandidates(ctx Context, tenantID string) ([]map[string]any, error)
	AppointmentsInWindow(ctx Context, tenantID string) ([]map[string]any, error)
	PastDueInvoices(ctx Context, tenantID string) ([]map[string]any, error)
	SevenDayCheckin(ctx Context, tenantID string) ([]map[string]any, error)
	PostServiceSurvey(ctx Context, tenantID string) ([]map[string]any, error)
	AnnualTuneup(ctx Context, tenantID string) ([]map[string]any, error)
	SeasonalReminder(ctx Context, tenantID string) ([]map[string]any, error)
	GhostCustomer(ctx Context, tenantID string, monthsInactive int) ([]map[string]any, error)
	AnniversaryOffer(ctx Context, tenantID string) ([]map[string]any, error)
	WarrantyExpiration(ctx Context, tenantID string, warningDays int) ([]map[string]any, error)
	TradeIn(ctx Context, tenantID string, minAgeYears, minRepairCount int) ([]map[string]any, error)
	FirstService(ctx Context, tenantID string, hoursThreshold int) ([]map[string]any, error)
	UsageService(ctx Context, tenantID string, hoursInterval int) ([]map[string]any, error)
}

// ContentGenerator is C7: produces subject/body content for an event type,
// falling back to a deterministic, non-AI rendering on any failure so it
// never blocks job completion.
type ContentGenerator interface {
	Generate(ctx Context, tenantID string, eventType string, params map[string]any, cfg TenantConfig) (GeneratedContent, error)
	Fallback(eventType string, params map[string]any, cfg TenantConfig) GeneratedContent
}

// AdapterFactory selects the concrete provider Adapter for a channel, given
// tenant configuration (C5's selection rule).
type AdapterFactory interface {
	Select(commType CommunicationType, cfg TenantConfig) (Adapter, error)
}

// AgentJobRepository is the optional C14 port over agent_jobs.
type AgentJobRepository interface {
	ClaimPending(ctx Context, limit int) ([]AgentJob, error)
	Save(ctx Context, job AgentJob) error
}
