// Package tenantconfig implements the per-tenant configuration cache (C4):
// it materializes a domain.TenantConfig from a tenant's raw settings
// document, merging in process-wide defaults via dario.cat/mergo the way the
// teacher's model/rate-limit caches use a lazily-populated sync.Map.
package tenantconfig

import (
	"fmt"
	"sync"

	"dario.cat/mergo"

	"github.com/dealer-comms/engine/internal/domain"
)

// Defaults are process-wide fallback values merged under a tenant's own
// settings document when a field is absent.
type Defaults struct {
	DBHost          string
	DBPort          string
	QuietHoursStart string
	QuietHoursEnd   string
}

// Cache resolves and caches domain.TenantConfig per tenant id.
type Cache struct {
	tenants  domain.TenantStore
	defaults Defaults

	entries sync.Map // tenantID -> domain.TenantConfig
}

// NewCache constructs a tenant config cache backed by tenants for lookups.
func NewCache(tenants domain.TenantStore, defaults Defaults) *Cache {
	return &Cache{tenants: tenants, defaults: defaults}
}

// GetTenantConfig returns the cached TenantConfig for tenantID, materializing
// it from the central tenant store on first access.
func (c *Cache) GetTenantConfig(ctx domain.Context, tenantID string) (domain.TenantConfig, error) {
	if v, ok := c.entries.Load(tenantID); ok {
		return v.(domain.TenantConfig), nil
	}

	tenant, err := c.tenants.Get(ctx, tenantID)
	if err != nil {
		return domain.TenantConfig{}, fmt.Errorf("op=tenantconfig.get tenant=%s: %w", tenantID, err)
	}

	cfg, err := materialize(tenant, c.defaults)
	if err != nil {
		return domain.TenantConfig{}, fmt.Errorf("op=tenantconfig.materialize tenant=%s: %w", tenantID, err)
	}
	c.entries.Store(tenantID, cfg)
	return cfg, nil
}

// Invalidate drops a tenant's cached config so the next GetTenantConfig call
// re-reads the central store.
func (c *Cache) Invalidate(tenantID string) {
	c.entries.Delete(tenantID)
}

func materialize(t domain.Tenant, defaults Defaults) (domain.TenantConfig, error) {
	cfg := domain.TenantConfig{TenantID: t.TenantID}

	s := t.Settings
	str := func(key string) string {
		if s == nil {
			return ""
		}
		if v, ok := s[key]; ok {
			if sv, ok := v.(string); ok {
				return sv
			}
		}
		return ""
	}

	cfg.SMSAccountID = str("twilio_sid")
	cfg.SMSAuthToken = str("twilio_auth_token")
	cfg.SMSFromNumber = str("twilio_from_number")

	cfg.EmailProvider = str("email_provider")
	cfg.ResendAPIKey = str("resend_key")
	cfg.SendgridAPIKey = str("sendgrid_key")
	cfg.EmailFrom = firstNonEmpty(str("resend_from"), str("sendgrid_from"))

	cfg.QuietHoursStart = str("quiet_hours_start")
	cfg.QuietHoursEnd = str("quiet_hours_end")

	cfg.CompanyName = str("company_name")
	cfg.CompanyPhone = str("company_phone")
	cfg.CompanySignature = str("company_signature")
	cfg.ExternalAPIBaseURL = str("api_base_url")

	cfg.DMSConnectionString = str("dms_connection_string")
	if cfg.DMSConnectionString == "" {
		cfg.DMSConnectionString = buildDSN(s, defaults)
	}

	withDefaults := domain.TenantConfig{
		QuietHoursStart: defaults.QuietHoursStart,
		QuietHoursEnd:   defaults.QuietHoursEnd,
	}
	if err := mergo.Merge(&cfg, withDefaults); err != nil {
		return domain.TenantConfig{}, err
	}

	return cfg, nil
}

// buildDSN derives a postgres:// DSN from discrete db_* settings fields when
// dms_connection_string is absent, falling back to process-wide host/port
// defaults for the fields a tenant's settings document leaves unset, and to
// localhost:5432 when those defaults are empty too.
func buildDSN(s map[string]any, defaults Defaults) string {
	if s == nil {
		return ""
	}
	get := func(key string) string {
		if v, ok := s[key]; ok {
			if sv, ok := v.(string); ok {
				return sv
			}
		}
		return ""
	}
	user, pass, name := get("db_user"), get("db_password"), get("db_name")
	if user == "" || name == "" {
		return ""
	}
	host := firstNonEmpty(get("db_host"), defaults.DBHost, "localhost")
	port := firstNonEmpty(get("db_port"), defaults.DBPort, "5432")
	if pass == "" {
		return fmt.Sprintf("postgres://%s@%s:%s/%s", user, host, port, name)
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// TenantDSN implements tenantstore.DSNResolver, letting the tenant config
// cache double as the DSN source for the per-tenant operational pools (C3).
func (c *Cache) TenantDSN(ctx domain.Context, tenantID string) (string, error) {
	cfg, err := c.GetTenantConfig(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return cfg.DMSConnectionString, nil
}

var _ domain.TenantConfigCache = (*Cache)(nil)
