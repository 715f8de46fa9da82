// Package domain defines core entities, ports, and domain-specific errors.
package domain

import (
	"context"
	"errors"
	"time"
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// Error taxonomy (sentinels). Adapters and handlers wrap these with fmt.Errorf's
// %w so callers can classify failures with errors.Is instead of string matching.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInternal            = errors.New("internal error")
	ErrTenantUnknown       = errors.New("tenant unknown")
	ErrTenantMisconfigured = errors.New("tenant misconfigured")
	ErrMissingCredentials  = errors.New("missing credentials")
	ErrTransportError      = errors.New("transport error")
	ErrProviderRejected    = errors.New("provider rejected")
)

// JobType enumerates the handler kinds the processor dispatches to.
type JobType string

// Job type values. Unknown values fail the job fast with ErrInvalidArgument.
const (
	JobTypeSendEmail        JobType = "send_email"
	JobTypeSendSMS          JobType = "send_sms"
	JobTypeNotifyCustomer   JobType = "notify_customer"
	JobTypeProcessQueueItem JobType = "process_queue_item"
)

// JobStatus captures the lifecycle state of a communication job.
type JobStatus string

// Job status values.
const (
	JobStatusPending             JobStatus = "pending"
	JobStatusProcessing          JobStatus = "processing"
	JobStatusComplete            JobStatus = "complete"
	JobStatusFailed              JobStatus = "failed"
	JobStatusFailedFallbackEmail JobStatus = "failed_fallback_email"
)

// IsTerminal reports whether a job in this status will never be retried again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed, JobStatusFailedFallbackEmail:
		return true
	default:
		return false
	}
}

// Job is the domain model for a row in communication_jobs.
type Job struct {
	ID              string
	TenantID        string
	JobType         JobType
	Payload         map[string]any
	Status          JobStatus
	RetryCount      int
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProcessAfter    time.Time
	SourceReference *string
}

// PayloadString reads a string field from the job payload, returning "" if absent
// or not a string.
func (j Job) PayloadString(key string) string {
	if j.Payload == nil {
		return ""
	}
	if v, ok := j.Payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// PayloadBool reads a bool field from the job payload, defaulting to false.
func (j Job) PayloadBool(key string) bool {
	if j.Payload == nil {
		return false
	}
	if v, ok := j.Payload[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// QueueItemStatus captures the lifecycle of an event-driven communication_queue row.
type QueueItemStatus string

// Queue item status values.
const (
	QueueItemPending    QueueItemStatus = "pending"
	QueueItemProcessing QueueItemStatus = "processing"
	QueueItemSent       QueueItemStatus = "sent"
	QueueItemFailed     QueueItemStatus = "failed"
)

// CommunicationType enumerates the channel a queue item or template targets.
type CommunicationType string

// Communication type values.
const (
	CommEmail CommunicationType = "email"
	CommSMS   CommunicationType = "sms"
)

// RecipientAddress is the structured recipient document stored on a QueueItem.
type RecipientAddress struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// QueueItem is the domain model for a row in communication_queue.
type QueueItem struct {
	ID                string
	TenantID          string
	EventType         string
	CommunicationType CommunicationType
	Recipient         RecipientAddress
	Subject           *string
	MessageParams     map[string]any
	Status            QueueItemStatus
	ExternalMessageID string
	RetryCount        int
	ErrorDetails      string
	CreatedAt         time.Time
}

// Template is the domain model for a row in message_templates.
// TenantID is nil for the global-default row.
type Template struct {
	TenantID          *string
	EventType         string
	CommunicationType CommunicationType
	SubjectTemplate   string
	BodyTextTemplate  string
	BodyHTMLTemplate  string
	Variables         map[string]string
	AIEnhance         bool
	AIInstructions    string
	IsActive          bool
	Version           int
}

// Tenant is the read-only, externally managed tenant record.
type Tenant struct {
	TenantID string
	Status   string
	Settings map[string]any
}

// IsActive reports whether the tenant is eligible for scheduler sweeps.
func (t Tenant) IsActive() bool { return t.Status == "Active" }

// TenantConfig is the materialized, process-cached configuration for a tenant.
type TenantConfig struct {
	TenantID string

	SMSAccountID  string
	SMSAuthToken  string
	SMSFromNumber string

	EmailProvider  string
	ResendAPIKey   string
	SendgridAPIKey string
	EmailFrom      string

	QuietHoursStart string // "HH:MM" UTC, raw -- parsed by the processor
	QuietHoursEnd   string // "HH:MM" UTC, raw -- parsed by the processor

	CompanyName      string
	CompanyPhone     string
	CompanySignature string

	ExternalAPIBaseURL  string
	DMSConnectionString string
}

// AgentJobStatus captures the lifecycle of an optional agent-loop job (C14).
type AgentJobStatus string

// Agent job status values.
const (
	AgentJobPending      AgentJobStatus = "pending"
	AgentJobInProgress   AgentJobStatus = "in_progress"
	AgentJobWaitingHuman AgentJobStatus = "waiting_human"
	AgentJobResolved     AgentJobStatus = "resolved"
	AgentJobFailed       AgentJobStatus = "failed"
)

// ReasoningStep is one recorded entry in an AgentJob's reasoning trace.
type ReasoningStep struct {
	Step      int       `json:"step"`
	Thought   string    `json:"thought"`
	Action    string    `json:"action,omitempty"`
	Result    string    `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentJob is the domain model for a row in agent_jobs.
type AgentJob struct {
	ID             string
	TenantID       string
	Goal           string
	Checklist      []string
	CurrentStep    int
	SessionState   map[string]any
	ReasoningTrace []ReasoningStep
	IterationCount int
	MaxIterations  int
	Status         AgentJobStatus
	ProcessAfter   time.Time
}

// SendResult is what a provider Adapter returns for a single send attempt.
type SendResult struct {
	Success    bool
	MessageID  string
	Error      error
	StatusCode int
}

// Attachment is an opaque byte payload with provider-agnostic metadata.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is the provider-agnostic payload an Adapter sends.
type Message struct {
	To          string
	From        string
	Subject     string
	TextBody    string
	HTMLBody    string
	ReplyTo     string
	CC          []string
	BCC         []string
	Attachments []Attachment
}

// Adapter is the polymorphic send interface every provider implements.
type Adapter interface {
	Send(ctx context.Context, msg Message, cfg TenantConfig) SendResult
	ProviderName() string
}

// GeneratedContent is what the AI content generator (C7) and the template
// renderer (C6) both produce: a subject/body pair ready to hand to an Adapter.
type GeneratedContent struct {
	Subject string
	Body    string
	HTML    string
}
