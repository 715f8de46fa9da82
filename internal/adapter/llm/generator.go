// Package llm implements the AI content generator (C7): it renders a
// template first when one exists, optionally enhances the rendered body
// with a Claude completion, and falls back to a fully deterministic,
// non-AI rendering whenever the template is missing or the model call
// fails, so a job never blocks on the model being unavailable.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/dealer-comms/engine/internal/adapter/template"
	"github.com/dealer-comms/engine/internal/domain"
)

// messagesClient captures the subset of the Anthropic SDK used here, so
// tests can substitute a fake without hitting the network.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Generator is domain.ContentGenerator: it tries a rendered template, then
// an optional AI enhancement pass, then a deterministic fallback.
type Generator struct {
	Templates domain.TemplateStore
	Renderer  *template.Renderer
	Client    messagesClient
	Model     string
	Logger    *slog.Logger
}

// NewGenerator builds a Generator backed by the Anthropic Messages API at
// baseURL with apiKey, or a Generator with a nil Client (falling back to
// deterministic content unconditionally) when apiKey is empty.
func NewGenerator(templates domain.TemplateStore, apiKey, baseURL, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		Templates: templates,
		Renderer:  template.NewRenderer(),
		Model:     model,
		Logger:    logger,
	}
	if apiKey == "" {
		return g
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := sdk.NewClient(opts...)
	g.Client = &client.Messages
	return g
}

// Generate resolves eventType's template, renders it with params, and -- if
// the template opts into AI enhancement -- asks the model to personalize the
// rendered body while preserving every fact in it. A template-resolution
// failure degrades to Fallback and a failed enhancement keeps the rendered
// template; neither propagates as an error.
func (g *Generator) Generate(ctx domain.Context, tenantID string, eventType string, params map[string]any, cfg domain.TenantConfig) (domain.GeneratedContent, error) {
	vars := template.StringifyParams(params)
	if cfg.CompanyName != "" {
		if _, ok := vars["company_name"]; !ok {
			vars["company_name"] = cfg.CompanyName
		}
	}

	tpl, err := g.Templates.Resolve(ctx, tenantID, eventType, domain.CommEmail)
	if err != nil {
		g.Logger.Warn("template resolution failed, using deterministic fallback",
			"event_type", eventType, "tenant_id", tenantID, "error", err)
		return g.Fallback(eventType, params, cfg), nil
	}

	content := g.Renderer.Render(tpl, vars)

	if tpl.AIEnhance && g.Client != nil {
		enhanced, err := g.enhance(ctx, eventType, content.Body, tpl.AIInstructions, cfg.CompanyName)
		if err != nil {
			g.Logger.Warn("ai enhancement failed, using rendered template",
				"event_type", eventType, "tenant_id", tenantID, "error", err)
		} else {
			content.Body = enhanced
			content.HTML = strings.ReplaceAll(enhanced, "\n", "<br>\n")
		}
	}

	return content, nil
}

// enhance asks the model to personalize baseContent while preserving every
// fact in it, retrying transient failures with exponential backoff and
// giving up after a few seconds so the caller's fallback path stays fast.
func (g *Generator) enhance(ctx context.Context, eventType, baseContent, instructions, companyName string) (string, error) {
	company := companyName
	if company == "" {
		company = "a service company"
	}

	system := fmt.Sprintf(
		"You are enhancing a customer email for %s.\n\n"+
			"Improve the draft while:\n"+
			"1. Keeping every fact, name, and number exactly as given\n"+
			"2. Making the tone more personal and warm\n"+
			"3. Keeping the same overall structure and similar length\n\n%s\n\n"+
			"Do not include a subject line -- only output the improved email body.",
		company, instructions,
	)
	user := fmt.Sprintf("Here is the email draft to enhance:\n\n---\n%s\n---\n\n"+
		"Please improve this email to make it more personal and engaging while keeping "+
		"all the key information.", baseContent)

	model := g.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	var result string
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 8 * time.Second

	op := func() error {
		msg, err := g.Client.New(ctx, sdk.MessageNewParams{
			Model:     sdk.Model(model),
			MaxTokens: 1000,
			System: []sdk.TextBlockParam{
				{Text: system},
			},
			Messages: []sdk.MessageParam{
				sdk.NewUserMessage(sdk.NewTextBlock(user)),
			},
		})
		if err != nil {
			return err
		}
		if len(msg.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("anthropic: empty response content"))
		}
		result = strings.TrimSpace(msg.Content[0].Text)
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return "", fmt.Errorf("op=llm.enhance event_type=%s: %w", eventType, err)
	}
	if result == "" {
		return "", fmt.Errorf("op=llm.enhance event_type=%s: empty completion", eventType)
	}
	return result, nil
}

// Fallback produces deterministic, non-AI content for eventType, used when
// no template can be resolved for it.
func (g *Generator) Fallback(eventType string, params map[string]any, cfg domain.TenantConfig) domain.GeneratedContent {
	prompt := promptFor(eventType)
	vars := template.StringifyParams(params)

	firstName := firstNameOf(vars)
	company := cfg.CompanyName
	if company == "" {
		company = "our service team"
	}

	body := fallbackBody(eventType, firstName, company, vars)
	return domain.GeneratedContent{
		Subject: prompt.DefaultSubject,
		Body:    body,
		HTML:    strings.ReplaceAll(body, "\n", "<br>\n"),
	}
}

func firstNameOf(vars map[string]string) string {
	if name := vars["first_name"]; name != "" {
		return name
	}
	if name := vars["customer_name"]; name != "" {
		if i := strings.IndexByte(name, ' '); i > 0 {
			return name[:i]
		}
		return name
	}
	return "there"
}

// fallbackBody covers every event type with a short, factual, deterministic
// body so a job never blocks on content generation, grounded on
// ai_content_generator.py's generate_fallback_content branch per event type.
func fallbackBody(eventType, firstName, company string, vars map[string]string) string {
	model := withDefault(vars["model"], "equipment")
	switch eventType {
	case "work_order_receipt":
		return fmt.Sprintf("Hi %s,\n\nThank you for your business. This confirms work order %s.\n\nBest regards,\n%s",
			firstName, withDefault(vars["work_order_number"], "N/A"), company)
	case "sales_order_receipt":
		return fmt.Sprintf("Hi %s,\n\nThank you for your purchase. This confirms sales order %s.\n\nBest regards,\n%s",
			firstName, withDefault(vars["sales_order_number"], "N/A"), company)
	case "service_reminder":
		return fmt.Sprintf("Hi %s,\n\nIt's been a while since your last service appointment. Regular "+
			"maintenance helps keep your %s running efficiently and prevents unexpected breakdowns.\n\n"+
			"We'd love to schedule a tune-up at your convenience. Please contact us to book an "+
			"appointment.\n\nBest regards,\n%s", firstName, model, company)
	case "appointment_confirmation":
		return fmt.Sprintf("Hi %s,\n\nThis confirms your upcoming service appointment scheduled for %s. "+
			"If you need to reschedule, please contact us as soon as possible.\n\nBest regards,\n%s",
			firstName, withDefault(vars["scheduled_start"], "your scheduled time"), company)
	case "invoice_reminder":
		return fmt.Sprintf("Hi %s,\n\nThis is a friendly reminder that invoice #%s with a balance of $%s "+
			"is past due. Please let us know if you have any questions or need to discuss payment "+
			"options.\n\nBest regards,\n%s",
			firstName, withDefault(vars["invoice_id"], "N/A"), withDefault(vars["balance"], "N/A"), company)
	case "estimate_followup":
		return fmt.Sprintf("Hi %s,\n\nWe wanted to follow up on your recent estimate. Let us know if "+
			"you have any questions or would like us to adjust the quote.\n\nBest regards,\n%s",
			firstName, company)
	case "job_complete":
		return fmt.Sprintf("Hi %s,\n\nThank you for trusting us with your recent service. If anything "+
			"about the work feels off, please reach out -- we stand behind it.\n\nBest regards,\n%s",
			firstName, company)
	case "seven_day_checkin":
		return fmt.Sprintf("Hi %s,\n\nIt's been about a week since you picked up your %s, and we "+
			"wanted to check in! We hope you're enjoying it. If you have any questions about "+
			"operation or maintenance, don't hesitate to reach out.\n\nBest regards,\n%s",
			firstName, model, company)
	case "post_service_survey":
		workOrder := ""
		if won := vars["work_order_number"]; won != "" {
			workOrder = " (Work Order #" + won + ")"
		}
		return fmt.Sprintf("Hi %s,\n\nThank you for choosing us for your recent service%s! We hope "+
			"everything is running smoothly. Please let us know if you have any questions or "+
			"concerns about the work performed.\n\nBest regards,\n%s", firstName, workOrder, company)
	case "annual_tuneup":
		return fmt.Sprintf("Hi %s,\n\nIt's time for your annual tune-up on your %s. Annual "+
			"maintenance helps keep your equipment running reliably and extends its life. Give us "+
			"a call or reply to this email to book your appointment.\n\nBest regards,\n%s",
			firstName, model, company)
	case "seasonal_reminder_spring":
		return fmt.Sprintf("Hi %s,\n\nSpring is just around the corner! Now is a great time to get "+
			"your %s ready for the busy season. A quick tune-up now can help prevent breakdowns "+
			"when you need it most.\n\nBest regards,\n%s", firstName, model, company)
	case "seasonal_reminder_fall":
		return fmt.Sprintf("Hi %s,\n\nWinter is approaching! Now is the perfect time to prepare your "+
			"%s for storage. Proper winterization protects your investment and ensures an easy "+
			"startup come spring.\n\nBest regards,\n%s", firstName, model, company)
	case "anniversary_offer":
		return fmt.Sprintf("Hi %s,\n\nHappy anniversary! It's been a year since you became part of "+
			"our family with your %s. Thank you for being a loyal customer -- if there's anything "+
			"we can do to keep it running great, we're here for you.\n\nBest regards,\n%s",
			firstName, model, company)
	case "winback_missed_you":
		return fmt.Sprintf("Hi %s,\n\nWe noticed it's been a while since your last visit, and we "+
			"wanted to check in! Is your equipment running well? If you need service, parts, or "+
			"just have questions, we're here to help.\n\nBest regards,\n%s", firstName, company)
	case "first_service_alert":
		return fmt.Sprintf("Hi %s,\n\nYour %s has reached %s hours -- time for its first service! "+
			"The first service is important to check everything after the initial break-in period.\n\n"+
			"Give us a call to schedule your first service appointment.\n\nBest regards,\n%s",
			firstName, model, withDefault(vars["engine_hours"], "the threshold"), company)
	case "usage_service_alert":
		return fmt.Sprintf("Hi %s,\n\nYour %s has reached %s hours and is due for scheduled "+
			"maintenance. Regular service at recommended intervals keeps your equipment running at "+
			"peak performance.\n\nGive us a call to schedule your service appointment.\n\nBest regards,\n%s",
			firstName, model, withDefault(vars["engine_hours"], "the interval"), company)
	case "warranty_expiration":
		return fmt.Sprintf("Hi %s,\n\nThis is a friendly reminder that the warranty on your %s "+
			"expires %s. If you have any concerns about your equipment, now is a great time to "+
			"have it checked while it's still covered.\n\nBest regards,\n%s",
			firstName, model, withDefault(vars["warranty_expires_at"], "soon"), company)
	case "trade_in_alert":
		return fmt.Sprintf("Hi %s,\n\nYour %s has served you well! Have you thought about what's "+
			"next? Newer models offer improved features, better fuel efficiency, and enhanced "+
			"performance -- we'd be happy to discuss trade-in options, no pressure.\n\nBest regards,\n%s",
			firstName, model, company)
	default:
		return fmt.Sprintf("Hi %s,\n\nWe wanted to follow up with you. Please contact us if you have "+
			"any questions.\n\nBest regards,\n%s", firstName, company)
	}
}

func withDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

var _ domain.ContentGenerator = (*Generator)(nil)
