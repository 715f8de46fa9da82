package handlers

import (
	"fmt"

	"github.com/dealer-comms/engine/internal/domain"
)

type sendEmailPayload struct {
	To      string `validate:"required"`
	Subject string `validate:"required"`
	Body    string `validate:"required"`
}

// SendEmail handles a send_email job: a one-off, already-composed email with
// no template or AI involvement, grounded on
// original_source/src/jobs/handlers/send_email.py.
func SendEmail(ctx domain.Context, job domain.Job, hctx HandlerContext) (HandlerResult, error) {
	payload := sendEmailPayload{
		To:      job.PayloadString("to"),
		Subject: job.PayloadString("subject"),
		Body:    job.PayloadString("body"),
	}
	if err := getValidator().Struct(payload); err != nil {
		return HandlerResult{}, fmt.Errorf("op=handlers.send_email job=%s: %w: %v", job.ID, domain.ErrInvalidArgument, err)
	}

	to, subject, body := payload.To, payload.Subject, payload.Body
	from := job.PayloadString("from")

	adapter, err := hctx.Factory.Select(domain.CommEmail, hctx.TenantConfig)
	if err != nil {
		return HandlerResult{}, fmt.Errorf("op=handlers.send_email job=%s: %w", job.ID, err)
	}

	result := adapter.Send(ctx, domain.Message{
		To:       to,
		From:     from,
		Subject:  subject,
		TextBody: body,
	}, hctx.TenantConfig)

	if !result.Success {
		if result.Error != nil {
			return HandlerResult{}, fmt.Errorf("op=handlers.send_email job=%s: %w", job.ID, result.Error)
		}
		return HandlerResult{}, fmt.Errorf("op=handlers.send_email job=%s: %w", job.ID, domain.ErrProviderRejected)
	}

	return HandlerResult{Reason: result.MessageID}, nil
}
