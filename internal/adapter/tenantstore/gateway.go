// Package tenantstore implements the per-tenant operational database gateway
// (C3): one lazily-created pgx pool per tenant DSN, and the named
// candidate-finder queries the scheduler (C11) and job handlers (C10) run
// against a tenant's own DMS data.
package tenantstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/dealer-comms/engine/internal/domain"
)

// DSNResolver resolves a tenant id to its operational database DSN. Normally
// backed by the tenant config cache (C4); split out so tests can stub it.
type DSNResolver interface {
	TenantDSN(ctx domain.Context, tenantID string) (string, error)
}

// Gateway holds one pool per tenant, created on first use.
type Gateway struct {
	dsn DSNResolver

	mu    sync.RWMutex
	pools map[string]*pgxpool.Pool
}

// NewGateway constructs a tenant gateway backed by dsn for DSN resolution.
func NewGateway(dsn DSNResolver) *Gateway {
	return &Gateway{dsn: dsn, pools: make(map[string]*pgxpool.Pool)}
}

func (g *Gateway) poolFor(ctx domain.Context, tenantID string) (*pgxpool.Pool, error) {
	g.mu.RLock()
	p, ok := g.pools[tenantID]
	g.mu.RUnlock()
	if ok {
		return p, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pools[tenantID]; ok {
		return p, nil
	}

	dsn, err := g.dsn.TenantDSN(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("op=tenantstore.pool_for tenant=%s: %w", tenantID, domain.ErrTenantMisconfigured)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("op=tenantstore.pool_for.parse tenant=%s: %w", tenantID, domain.ErrTenantMisconfigured)
	}
	cfg.MinConns = 1
	cfg.MaxConns = 15
	cfg.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("op=tenantstore.pool_for.connect tenant=%s: %w", tenantID, err)
	}
	g.pools[tenantID] = pool
	return pool, nil
}

// QueryTenant runs an arbitrary query against tenantID's operational database
// and returns every row as a column-name-keyed map, the way the tenant
// gateway's RealDictCursor reads did in the original implementation.
func (g *Gateway) QueryTenant(ctx domain.Context, tenantID string, query string, args ...any) ([]map[string]any, error) {
	tracer := otel.Tracer("tenantstore.query")
	ctx, span := tracer.Start(ctx, "tenantstore.QueryTenant")
	defer span.End()

	pool, err := g.poolFor(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("op=tenantstore.query tenant=%s: %w", tenantID, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("op=tenantstore.query.values tenant=%s: %w", tenantID, err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=tenantstore.query.rows tenant=%s: %w", tenantID, err)
	}
	return out, nil
}

// Close tears down every per-tenant pool; called once from the supervisor's
// shutdown path.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.pools {
		p.Close()
	}
	g.pools = make(map[string]*pgxpool.Pool)
}

// The named candidate-finder queries from spec §6. Each mirrors the join
// shape the original gateway used for service reminders/appointments/invoices
// (customers joined to the relevant fact table), generalized to the other
// scheduled sweeps the distillation added.

// ServiceReminderCandidates finds customers due for a 2-year tune-up.
func (g *Gateway) ServiceReminderCandidates(ctx domain.Context, tenantID string) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, c.last_name, s.model, s.serial_number
		FROM sales s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE s.purchase_date BETWEEN now() - INTERVAL '25 months' AND now() - INTERVAL '23 months'
		  AND c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q)
}

// AppointmentsInWindow finds appointments scheduled 24-25 hours out.
func (g *Gateway) AppointmentsInWindow(ctx domain.Context, tenantID string) ([]map[string]any, error) {
	const q = `
		SELECT a.id AS appointment_id, a.customer_id, a.scheduled_start, c.phone_mobile AS phone, c.first_name
		FROM appointments a
		INNER JOIN customers c ON c.id = a.customer_id
		WHERE a.scheduled_start BETWEEN now() + INTERVAL '24 hours' AND now() + INTERVAL '25 hours'`
	return g.QueryTenant(ctx, tenantID, q)
}

// PastDueInvoices finds invoices 30+ days past due with an outstanding balance.
func (g *Gateway) PastDueInvoices(ctx domain.Context, tenantID string) ([]map[string]any, error) {
	const q = `
		SELECT i.id AS invoice_id, i.customer_id, i.due_date, i.balance, c.email, c.first_name
		FROM invoices i
		INNER JOIN customers c ON c.id = i.customer_id
		WHERE i.due_date <= now() - INTERVAL '30 days' AND i.balance > 0`
	return g.QueryTenant(ctx, tenantID, q)
}

// WorkOrderEquipment looks up the equipment referenced by a work order, used
// to enrich process_queue_item's message params (§4.8).
func (g *Gateway) WorkOrderEquipment(ctx domain.Context, tenantID string, workOrderNumber string) (map[string]any, error) {
	const q = `
		SELECT w.equipment_model, w.serial_number, w.manufacturer, w.year, w.service_description
		FROM work_orders w
		WHERE w.work_order_number = $1
		LIMIT 1`
	rows, err := g.QueryTenant(ctx, tenantID, q, workOrderNumber)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// SevenDayCheckin finds customers 7 days past an equipment purchase.
func (g *Gateway) SevenDayCheckin(ctx domain.Context, tenantID string) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, s.model
		FROM sales s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE s.purchase_date::date = (now() - INTERVAL '7 days')::date AND c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q)
}

// PostServiceSurvey finds customers 48-72 hours after a service pickup.
func (g *Gateway) PostServiceSurvey(ctx domain.Context, tenantID string) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, w.work_order_number
		FROM work_orders w
		INNER JOIN customers c ON c.id = w.customer_id
		WHERE w.pickup_at BETWEEN now() - INTERVAL '72 hours' AND now() - INTERVAL '48 hours'
		  AND c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q)
}

// AnnualTuneup finds customers 14 days before a purchase anniversary.
func (g *Gateway) AnnualTuneup(ctx domain.Context, tenantID string) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, s.id AS sale_id, s.model
		FROM sales s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE date_part('month', s.purchase_date) = date_part('month', now() + INTERVAL '14 days')
		  AND date_part('day', s.purchase_date) = date_part('day', now() + INTERVAL '14 days')
		  AND c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q)
}

// SeasonalReminder finds customers eligible for the spring/fall prep mailing.
func (g *Gateway) SeasonalReminder(ctx domain.Context, tenantID string) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, s.model
		FROM sales s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q)
}

// GhostCustomer finds customers with no activity in monthsInactive months.
func (g *Gateway) GhostCustomer(ctx domain.Context, tenantID string, monthsInactive int) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email AS email_address, c.first_name, c.last_name, MAX(s.purchase_date) AS last_order_date
		FROM customers c
		LEFT JOIN sales s ON s.customer_id = c.id
		WHERE c.email IS NOT NULL
		GROUP BY c.id, c.email, c.first_name, c.last_name
		HAVING MAX(s.purchase_date) < now() - ($1 || ' months')::interval OR MAX(s.purchase_date) IS NULL`
	return g.QueryTenant(ctx, tenantID, q, monthsInactive)
}

// AnniversaryOffer finds customers at a round-number-year equipment anniversary.
func (g *Gateway) AnniversaryOffer(ctx domain.Context, tenantID string) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, s.id AS sale_id, s.model, s.purchase_date
		FROM sales s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE date_part('month', s.purchase_date) = date_part('month', now())
		  AND date_part('day', s.purchase_date) = date_part('day', now())
		  AND s.purchase_date < now() - INTERVAL '1 year'
		  AND c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q)
}

// WarrantyExpiration finds sales whose warranty expires within warningDays.
func (g *Gateway) WarrantyExpiration(ctx domain.Context, tenantID string, warningDays int) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, s.id AS sale_id, s.model, s.warranty_expires_at
		FROM sales s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE s.warranty_expires_at BETWEEN now() AND now() + ($1 || ' days')::interval
		  AND c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q, warningDays)
}

// TradeIn finds customers whose equipment is old and repair-heavy enough to
// be a trade-in candidate.
func (g *Gateway) TradeIn(ctx domain.Context, tenantID string, minAgeYears, minRepairCount int) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, s.id AS sale_id, s.model, s.purchase_date,
		       (SELECT count(*) FROM work_orders w WHERE w.customer_id = c.id) AS repair_count
		FROM sales s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE s.purchase_date <= now() - ($1 || ' years')::interval
		  AND c.email IS NOT NULL
		  AND (SELECT count(*) FROM work_orders w WHERE w.customer_id = c.id) >= $2`
	return g.QueryTenant(ctx, tenantID, q, minAgeYears, minRepairCount)
}

// FirstService finds equipment that has reached its first recommended
// service hour threshold and has no first service recorded.
func (g *Gateway) FirstService(ctx domain.Context, tenantID string, hoursThreshold int) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, e.id AS equipment_id, e.model, e.engine_hours
		FROM equipment e
		INNER JOIN customers c ON c.id = e.customer_id
		WHERE e.engine_hours >= $1 AND e.first_service_done_at IS NULL
		  AND c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q, hoursThreshold)
}

// UsageService finds equipment crossing a recurring service-hour interval.
func (g *Gateway) UsageService(ctx domain.Context, tenantID string, hoursInterval int) ([]map[string]any, error) {
	const q = `
		SELECT c.id AS customer_id, c.email, c.first_name, e.id AS equipment_id, e.model, e.engine_hours
		FROM equipment e
		INNER JOIN customers c ON c.id = e.customer_id
		WHERE mod(e.engine_hours::numeric, $1) < 5 AND c.email IS NOT NULL`
	return g.QueryTenant(ctx, tenantID, q, hoursInterval)
}

// CustomersContact fetches a single customer's contact row, used by
// notify_customer (C10) to resolve email/phone/preference.
func (g *Gateway) CustomersContact(ctx domain.Context, tenantID string, customerID string) (map[string]any, error) {
	const q = `
		SELECT id, email, phone_mobile AS phone, contact_preference, do_not_disturb_until
		FROM customers
		WHERE id = $1`
	rows, err := g.QueryTenant(ctx, tenantID, q, customerID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("op=tenantstore.customers_contact tenant=%s customer=%s: %w", tenantID, customerID, domain.ErrNotFound)
	}
	return rows[0], nil
}
