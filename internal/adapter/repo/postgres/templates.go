package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dealer-comms/engine/internal/domain"
)

// TemplateRepo loads message_templates rows, preferring a tenant-specific
// active row over the global default (tenant_id IS NULL) for the same
// (event_type, communication_type) pair.
type TemplateRepo struct{ Pool PgxPool }

// NewTemplateRepo constructs a TemplateRepo with the given pool.
func NewTemplateRepo(p PgxPool) *TemplateRepo { return &TemplateRepo{Pool: p} }

const templateColumns = `tenant_id, event_type, communication_type, subject_template, body_text_template, body_html_template, variables, ai_enhance, ai_instructions, is_active, version`

func scanTemplate(row pgx.Row) (domain.Template, error) {
	var tpl domain.Template
	var varsRaw []byte
	var aiInstructions *string
	if err := row.Scan(&tpl.TenantID, &tpl.EventType, &tpl.CommunicationType, &tpl.SubjectTemplate, &tpl.BodyTextTemplate, &tpl.BodyHTMLTemplate, &varsRaw, &tpl.AIEnhance, &aiInstructions, &tpl.IsActive, &tpl.Version); err != nil {
		return domain.Template{}, err
	}
	if aiInstructions != nil {
		tpl.AIInstructions = *aiInstructions
	}
	if len(varsRaw) > 0 {
		if err := json.Unmarshal(varsRaw, &tpl.Variables); err != nil {
			return domain.Template{}, fmt.Errorf("op=template.scan.variables: %w", err)
		}
	}
	return tpl, nil
}

// Resolve returns the tenant's active override template for eventType/commType
// if one exists, otherwise the active global-default row (tenant_id IS NULL).
func (r *TemplateRepo) Resolve(ctx domain.Context, tenantID string, eventType string, commType domain.CommunicationType) (domain.Template, error) {
	tenantQ := `SELECT ` + templateColumns + ` FROM message_templates
		WHERE tenant_id = $1 AND event_type = $2 AND communication_type = $3 AND is_active = true
		ORDER BY version DESC LIMIT 1`
	tpl, err := scanTemplate(r.Pool.QueryRow(ctx, tenantQ, tenantID, eventType, commType))
	if err == nil {
		return tpl, nil
	}
	if err != pgx.ErrNoRows {
		return domain.Template{}, fmt.Errorf("op=template.resolve.tenant: %w", err)
	}

	globalQ := `SELECT ` + templateColumns + ` FROM message_templates
		WHERE tenant_id IS NULL AND event_type = $1 AND communication_type = $2 AND is_active = true
		ORDER BY version DESC LIMIT 1`
	tpl, err = scanTemplate(r.Pool.QueryRow(ctx, globalQ, eventType, commType))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Template{}, fmt.Errorf("op=template.resolve: %w", domain.ErrNotFound)
		}
		return domain.Template{}, fmt.Errorf("op=template.resolve.global: %w", err)
	}
	return tpl, nil
}
