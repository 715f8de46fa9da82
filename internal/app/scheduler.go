package app

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dealer-comms/engine/internal/adapter/template"
	"github.com/dealer-comms/engine/internal/domain"
)

// SchedulerConfig bundles the scheduler's per-task parameters (spec §4.9),
// kept independent from internal/config so this package stays testable in
// isolation.
type SchedulerConfig struct {
	GhostCustomerMonths       int
	WarrantyWarningDays       int
	TradeInMinAgeYears        int
	TradeInMinRepairCount     int
	FirstServiceHoursThresh   int
	UsageServiceHoursInterval int

	DailySweepHour   int
	WeeklySweepHour  int
	MonthlySweepHour int
	QueuePollSeconds int
}

// sweepTask is one row of spec §4.9's task table: a candidate query, the
// event type it renders, the channel/job type it dispatches on, how often it
// ticks, and what gates (hour-of-day, day-of-week, day-of-month, month) must
// hold before its body actually runs.
type sweepTask struct {
	name          string
	tick          time.Duration
	gate          func(now time.Time, cfg SchedulerConfig) bool
	find          func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error)
	eventType     string
	jobType       domain.JobType
	recipientKey  string // row field holding the destination address
	dedupPrefix   string
	dedupKeyParts func(tenantID string, row map[string]any, now time.Time) []string
}

// Scheduler is C11: one goroutine per recurring task, each looping on its
// own ticker, adapted from original_source/src/scheduler.py's
// schedule_recurring_task (run immediately, then on interval, polling a
// `running` flag) translated to a context.Context + ticker pair.
type Scheduler struct {
	tenants   domain.TenantStore
	gateway   domain.TenantGateway
	tenantCfg TenantConfigResolver
	generator domain.ContentGenerator
	jobs      domain.JobRepository
	queue     domain.QueueItemRepository
	cfg       SchedulerConfig
	logger    *slog.Logger
}

// NewScheduler constructs a Scheduler. A nil logger defaults to slog.Default().
func NewScheduler(
	tenants domain.TenantStore,
	gateway domain.TenantGateway,
	tenantCfg TenantConfigResolver,
	generator domain.ContentGenerator,
	jobs domain.JobRepository,
	queue domain.QueueItemRepository,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueuePollSeconds <= 0 {
		cfg.QueuePollSeconds = 30
	}
	return &Scheduler{
		tenants:   tenants,
		gateway:   gateway,
		tenantCfg: tenantCfg,
		generator: generator,
		jobs:      jobs,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
	}
}

func weeklyGate(now time.Time, cfg SchedulerConfig) bool {
	return now.UTC().Hour() == cfg.WeeklySweepHour && now.UTC().Weekday() == time.Monday
}

func monthlyGate(now time.Time, cfg SchedulerConfig) bool {
	return now.UTC().Hour() == cfg.MonthlySweepHour && now.UTC().Day() == 1
}

func monthOnlyGate(month time.Month) func(time.Time, SchedulerConfig) bool {
	return func(now time.Time, cfg SchedulerConfig) bool {
		return now.UTC().Hour() == cfg.DailySweepHour && now.UTC().Month() == month
	}
}

// tasks builds the spec §4.9 table. Defined as a method so the task bodies
// can close over *Scheduler's dependencies without a global registry.
func (s *Scheduler) tasks() []sweepTask {
	daily := func(now time.Time, cfg SchedulerConfig) bool {
		return now.UTC().Hour() == cfg.DailySweepHour
	}
	customerParts := func(tenantID string, row map[string]any, now time.Time) []string {
		return []string{fmt.Sprint(row["customer_id"])}
	}
	customerYearParts := func(tenantID string, row map[string]any, now time.Time) []string {
		return []string{fmt.Sprint(row["customer_id"]), fmt.Sprint(now.UTC().Year())}
	}
	// saleYearParts and equipmentParts key on the sale/equipment row itself
	// rather than the customer, so a customer who owns several machines gets
	// one dedup slot per machine instead of one shared slot for all of them.
	saleYearParts := func(tenantID string, row map[string]any, now time.Time) []string {
		return []string{fmt.Sprint(row["sale_id"]), fmt.Sprint(now.UTC().Year())}
	}
	equipmentParts := func(tenantID string, row map[string]any, now time.Time) []string {
		return []string{fmt.Sprint(row["equipment_id"])}
	}

	return []sweepTask{
		{
			name: "service-reminders", tick: time.Hour, gate: daily,
			find:         func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.ServiceReminderCandidates(ctx, tenantID) },
			eventType:    "service_reminder",
			jobType:      domain.JobTypeSendEmail,
			recipientKey: "email",
			dedupPrefix:  "service_reminder",
			dedupKeyParts: customerParts,
		},
		{
			name: "appointment-confirmations", tick: time.Hour, gate: func(time.Time, SchedulerConfig) bool { return true },
			find:         func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.AppointmentsInWindow(ctx, tenantID) },
			eventType:    "appointment_confirmation",
			jobType:      domain.JobTypeSendSMS,
			recipientKey: "phone",
			dedupPrefix:  "appointment",
			dedupKeyParts: func(tenantID string, row map[string]any, now time.Time) []string {
				return []string{fmt.Sprint(row["appointment_id"])}
			},
		},
		{
			name: "invoice-reminders", tick: time.Hour, gate: daily,
			find:         func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.PastDueInvoices(ctx, tenantID) },
			eventType:    "invoice_reminder",
			jobType:      domain.JobTypeSendEmail,
			recipientKey: "email",
			dedupPrefix:  "invoice",
			dedupKeyParts: func(tenantID string, row map[string]any, now time.Time) []string {
				return []string{fmt.Sprint(row["invoice_id"])}
			},
		},
		{
			name: "seven-day-checkin", tick: time.Hour, gate: daily,
			find:         func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.SevenDayCheckin(ctx, tenantID) },
			eventType:    "seven_day_checkin",
			jobType:      domain.JobTypeSendEmail,
			recipientKey: "email",
			dedupPrefix:  "seven_day_checkin",
			dedupKeyParts: customerParts,
		},
		{
			name: "post-service-survey", tick: time.Hour, gate: daily,
			find:         func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.PostServiceSurvey(ctx, tenantID) },
			eventType:    "post_service_survey",
			jobType:      domain.JobTypeSendEmail,
			recipientKey: "email",
			dedupPrefix:  "post_service_survey",
			dedupKeyParts: func(tenantID string, row map[string]any, now time.Time) []string {
				return []string{fmt.Sprint(row["work_order_number"])}
			},
		},
		{
			name: "annual-tuneup", tick: time.Hour, gate: daily,
			find:          func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.AnnualTuneup(ctx, tenantID) },
			eventType:     "annual_tuneup",
			jobType:       domain.JobTypeSendEmail,
			recipientKey:  "email",
			dedupPrefix:   "annual_tuneup",
			dedupKeyParts: saleYearParts,
		},
		{
			name: "seasonal-spring", tick: time.Hour, gate: monthOnlyGate(time.March),
			find:          func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.SeasonalReminder(ctx, tenantID) },
			eventType:     "seasonal_reminder_spring",
			jobType:       domain.JobTypeSendEmail,
			recipientKey:  "email",
			dedupPrefix:   "seasonal_spring",
			dedupKeyParts: customerYearParts,
		},
		{
			name: "seasonal-fall", tick: time.Hour, gate: monthOnlyGate(time.October),
			find:          func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.SeasonalReminder(ctx, tenantID) },
			eventType:     "seasonal_reminder_fall",
			jobType:       domain.JobTypeSendEmail,
			recipientKey:  "email",
			dedupPrefix:   "seasonal_fall",
			dedupKeyParts: customerYearParts,
		},
		{
			name: "ghost-customer-winback", tick: time.Hour, gate: weeklyGate,
			find: func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) {
				return s.gateway.GhostCustomer(ctx, tenantID, s.cfg.GhostCustomerMonths)
			},
			eventType:    "winback_missed_you",
			jobType:      domain.JobTypeSendEmail,
			recipientKey: "email_address",
			dedupPrefix:  "winback",
			dedupKeyParts: func(tenantID string, row map[string]any, now time.Time) []string {
				quarter := int(now.UTC().Month()-1)/3 + 1
				return []string{fmt.Sprint(row["customer_id"]), fmt.Sprintf("%04d_Q%d", now.UTC().Year(), quarter)}
			},
		},
		{
			name: "anniversary-offer", tick: time.Hour, gate: daily,
			find:          func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) { return s.gateway.AnniversaryOffer(ctx, tenantID) },
			eventType:     "anniversary_offer",
			jobType:       domain.JobTypeSendEmail,
			recipientKey:  "email",
			dedupPrefix:   "anniversary_offer",
			dedupKeyParts: saleYearParts,
		},
		{
			name: "warranty-expiration", tick: time.Hour, gate: daily,
			find: func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) {
				return s.gateway.WarrantyExpiration(ctx, tenantID, s.cfg.WarrantyWarningDays)
			},
			eventType:    "warranty_expiration",
			jobType:      domain.JobTypeSendEmail,
			recipientKey: "email",
			dedupPrefix:  "warranty_exp",
			dedupKeyParts: func(tenantID string, row map[string]any, now time.Time) []string {
				return []string{fmt.Sprint(row["sale_id"]), now.UTC().Format("200601")}
			},
		},
		{
			name: "trade-in-alert", tick: time.Hour, gate: monthlyGate,
			find: func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) {
				return s.gateway.TradeIn(ctx, tenantID, s.cfg.TradeInMinAgeYears, s.cfg.TradeInMinRepairCount)
			},
			eventType:     "trade_in_alert",
			jobType:       domain.JobTypeSendEmail,
			recipientKey:  "email",
			dedupPrefix:   "trade_in",
			dedupKeyParts: saleYearParts,
		},
		{
			name: "first-service-alert", tick: time.Hour, gate: weeklyGate,
			find: func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) {
				return s.gateway.FirstService(ctx, tenantID, s.cfg.FirstServiceHoursThresh)
			},
			eventType:    "first_service_alert",
			jobType:      domain.JobTypeSendEmail,
			recipientKey: "email",
			dedupPrefix:  "first_service",
			dedupKeyParts: equipmentParts,
		},
		{
			name: "usage-service-alert", tick: time.Hour, gate: weeklyGate,
			find: func(s *Scheduler, ctx domain.Context, tenantID string) ([]map[string]any, error) {
				return s.gateway.UsageService(ctx, tenantID, s.cfg.UsageServiceHoursInterval)
			},
			eventType:    "usage_service_alert",
			jobType:      domain.JobTypeSendEmail,
			recipientKey: "email",
			dedupPrefix:  "usage_service",
			dedupKeyParts: func(tenantID string, row map[string]any, now time.Time) []string {
				return []string{fmt.Sprint(row["equipment_id"]), fmt.Sprint(row["engine_hours"])}
			},
		},
	}
}

// Run starts one goroutine per sweep task plus the queue-processor task, and
// blocks until ctx is canceled.
func (s *Scheduler) Run(ctx domain.Context) {
	if s == nil || s.tenants == nil {
		return
	}

	tasks := s.tasks()
	for i := range tasks {
		task := tasks[i]
		go s.runTask(ctx, task)
	}
	go s.runQueueProcessor(ctx)

	<-ctx.Done()
	s.logger.Info("scheduler stopping")
}

// runTask loops task.tick until ctx is canceled, running task.sweepOnce
// immediately and then every tick, gated by task.gate.
func (s *Scheduler) runTask(ctx domain.Context, task sweepTask) {
	ticker := time.NewTicker(task.tick)
	defer ticker.Stop()

	s.safeRun(ctx, task)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRun(ctx, task)
		}
	}
}

func (s *Scheduler) safeRun(ctx domain.Context, task sweepTask) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", "task", task.name, "recover", r)
		}
	}()
	if !task.gate(time.Now(), s.cfg) {
		return
	}
	if err := s.sweepOnce(ctx, task); err != nil {
		s.logger.Error("scheduled task failed", "task", task.name, "error", err)
	}
}

// sweepOnce runs task across every active tenant: fetch candidates, render
// content via C6/C7, and insert a deduplicated job via C8. Ported from
// original_source/src/scheduler.py's per-task run_* methods, generalized
// into one data-driven sweep body.
func (s *Scheduler) sweepOnce(ctx domain.Context, task sweepTask) error {
	tracer := otel.Tracer("scheduler.task")
	ctx, span := tracer.Start(ctx, "Scheduler.sweepOnce")
	defer span.End()
	span.SetAttributes(attribute.String("task.name", task.name))

	tenants, err := s.tenants.ActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("op=scheduler.%s: %w", task.name, err)
	}

	created := 0
	for _, tenant := range tenants {
		rows, err := task.find(s, ctx, tenant.TenantID)
		if err != nil {
			s.logger.Error("sweep candidate query failed", "task", task.name, "tenant_id", tenant.TenantID, "error", err)
			continue
		}

		cfg, err := s.tenantCfg.GetTenantConfig(ctx, tenant.TenantID)
		if err != nil {
			s.logger.Error("sweep could not load tenant config", "task", task.name, "tenant_id", tenant.TenantID, "error", err)
			continue
		}

		for _, row := range rows {
			to, _ := row[task.recipientKey].(string)
			if to == "" {
				continue
			}

			params := template.StringifyParams(row)
			content, err := s.generator.Generate(ctx, tenant.TenantID, task.eventType, params, cfg)
			if err != nil {
				content = s.generator.Fallback(task.eventType, params, cfg)
			}

			payload := map[string]any{
				"to":          to,
				"body":        content.Body,
				"customer_id": row["customer_id"],
			}
			if task.jobType == domain.JobTypeSendEmail {
				payload["subject"] = content.Subject
			}

			key := task.dedupPrefix + "_" + tenant.TenantID
			for _, part := range task.dedupKeyParts(tenant.TenantID, row, time.Now()) {
				key += "_" + part
			}

			wasCreated, err := s.jobs.Insert(ctx, tenant.TenantID, task.jobType, payload, time.Now(), key)
			if err != nil {
				s.logger.Error("sweep failed to insert job", "task", task.name, "tenant_id", tenant.TenantID, "error", err)
				continue
			}
			if wasCreated {
				created++
			}
		}
	}

	span.SetAttributes(attribute.Int("task.jobs_created", created))
	if created > 0 {
		s.logger.Info("scheduled sweep completed", "task", task.name, "jobs_created", created)
	}
	return nil
}

// runQueueProcessor claims pending communication_queue rows and enqueues a
// process_queue_item job per row, deduplicated on "queue:<item>" so a crash
// mid-sweep never double-processes a row. Ported from
// original_source/src/scheduler.py's run_queue_processor.
func (s *Scheduler) runQueueProcessor(ctx domain.Context) {
	interval := time.Duration(s.cfg.QueuePollSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.safeRunQueueProcessor(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRunQueueProcessor(ctx)
		}
	}
}

func (s *Scheduler) safeRunQueueProcessor(ctx domain.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("queue processor task panicked", "recover", r)
		}
	}()

	items, err := s.queue.ClaimPending(ctx, 100)
	if err != nil {
		s.logger.Error("queue processor failed to claim pending items", "error", err)
		return
	}

	processed := 0
	for _, item := range items {
		payload := map[string]any{"queue_item_id": item.ID}
		key := "queue:" + item.ID
		if _, err := s.jobs.Insert(ctx, item.TenantID, domain.JobTypeProcessQueueItem, payload, time.Now(), key); err != nil {
			s.logger.Error("queue processor failed to enqueue job", "queue_item_id", item.ID, "error", err)
			continue
		}
		processed++
	}

	if processed > 0 {
		s.logger.Info("communication queue processing completed", "processed", processed)
	}
}
