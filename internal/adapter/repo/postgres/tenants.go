package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dealer-comms/engine/internal/domain"
)

// TenantRepo reads the central tenants table.
type TenantRepo struct{ Pool PgxPool }

// NewTenantRepo constructs a TenantRepo with the given pool.
func NewTenantRepo(p PgxPool) *TenantRepo { return &TenantRepo{Pool: p} }

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	var settingsRaw []byte
	if err := row.Scan(&t.TenantID, &t.Status, &settingsRaw); err != nil {
		return domain.Tenant{}, err
	}
	if len(settingsRaw) > 0 {
		if err := json.Unmarshal(settingsRaw, &t.Settings); err != nil {
			return domain.Tenant{}, fmt.Errorf("op=tenant.scan.settings: %w", err)
		}
	}
	return t, nil
}

// ActiveTenants returns every tenant whose status is "Active", the set C11's
// scheduler restricts all sweeps to.
func (r *TenantRepo) ActiveTenants(ctx domain.Context) ([]domain.Tenant, error) {
	q := `SELECT tenant_id, status, settings FROM tenants WHERE status = 'Active' ORDER BY tenant_id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=tenant.active_tenants.query: %w", err)
	}
	defer rows.Close()
	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("op=tenant.active_tenants.scan: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=tenant.active_tenants.rows: %w", err)
	}
	return tenants, nil
}

// Get loads a single tenant row by id, regardless of status.
func (r *TenantRepo) Get(ctx domain.Context, tenantID string) (domain.Tenant, error) {
	q := `SELECT tenant_id, status, settings FROM tenants WHERE tenant_id = $1`
	t, err := scanTenant(r.Pool.QueryRow(ctx, q, tenantID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Tenant{}, fmt.Errorf("op=tenant.get: %w", domain.ErrTenantUnknown)
		}
		return domain.Tenant{}, fmt.Errorf("op=tenant.get: %w", err)
	}
	return t, nil
}
