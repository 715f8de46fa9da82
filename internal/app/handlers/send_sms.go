package handlers

import (
	"fmt"

	"github.com/dealer-comms/engine/internal/domain"
)

type sendSMSPayload struct {
	To   string `validate:"required"`
	Body string `validate:"required"`
}

// SendSMS handles a send_sms job, falling back to the tenant's default
// Twilio from-number when the payload doesn't specify one. Grounded on
// original_source/src/jobs/handlers/send_sms.py.
func SendSMS(ctx domain.Context, job domain.Job, hctx HandlerContext) (HandlerResult, error) {
	payload := sendSMSPayload{
		To:   job.PayloadString("to"),
		Body: job.PayloadString("body"),
	}
	if err := getValidator().Struct(payload); err != nil {
		return HandlerResult{}, fmt.Errorf("op=handlers.send_sms job=%s: %w: %v", job.ID, domain.ErrInvalidArgument, err)
	}

	to, body := payload.To, payload.Body
	from := job.PayloadString("from")
	if from == "" {
		from = hctx.TenantConfig.SMSFromNumber
	}
	if from == "" {
		return HandlerResult{}, fmt.Errorf("op=handlers.send_sms job=%s: missing \"from\" and tenant has no default number: %w", job.ID, domain.ErrInvalidArgument)
	}

	adapter, err := hctx.Factory.Select(domain.CommSMS, hctx.TenantConfig)
	if err != nil {
		return HandlerResult{}, fmt.Errorf("op=handlers.send_sms job=%s: %w", job.ID, err)
	}

	result := adapter.Send(ctx, domain.Message{To: to, From: from, TextBody: body}, hctx.TenantConfig)
	if !result.Success {
		if result.Error != nil {
			return HandlerResult{}, fmt.Errorf("op=handlers.send_sms job=%s: %w", job.ID, result.Error)
		}
		return HandlerResult{}, fmt.Errorf("op=handlers.send_sms job=%s: %w", job.ID, domain.ErrProviderRejected)
	}

	return HandlerResult{Reason: result.MessageID}, nil
}
