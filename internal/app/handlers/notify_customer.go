package handlers

import (
	"fmt"

	"github.com/dealer-comms/engine/internal/domain"
)

// NotifyCustomer handles a notify_customer job: look up the customer's
// contact record and preference, honor an opt-out, and pick SMS-if-a-phone-
// is-on-file else email. Grounded on
// original_source/src/jobs/handlers/notify_customer.py.
func NotifyCustomer(ctx domain.Context, job domain.Job, hctx HandlerContext) (HandlerResult, error) {
	customerID := job.PayloadString("customer_id")
	body := job.PayloadString("body")

	if customerID == "" {
		return HandlerResult{}, fmt.Errorf("op=handlers.notify_customer job=%s: missing \"customer_id\": %w", job.ID, domain.ErrInvalidArgument)
	}
	if body == "" {
		return HandlerResult{}, fmt.Errorf("op=handlers.notify_customer job=%s: missing \"body\": %w", job.ID, domain.ErrInvalidArgument)
	}

	contact, err := hctx.Gateway.CustomersContact(ctx, job.TenantID, customerID)
	if err != nil {
		return HandlerResult{}, fmt.Errorf("op=handlers.notify_customer job=%s: %w", job.ID, err)
	}

	preference, _ := contact["contact_preference"].(string)
	if preference == "" {
		preference = job.PayloadString("preferred_channel")
	}
	if preference == "do_not_contact" {
		return HandlerResult{Skipped: true, Reason: "customer opted out of communications"}, nil
	}

	phone, _ := contact["phone"].(string)
	email, _ := contact["email"].(string)

	channel := preference
	if channel == "" {
		if phone != "" {
			channel = string(domain.CommSMS)
		} else {
			channel = string(domain.CommEmail)
		}
	}
	if channel == "" {
		channel = job.PayloadString("fallback_channel")
	}

	switch domain.CommunicationType(channel) {
	case domain.CommSMS:
		if phone == "" {
			return HandlerResult{}, fmt.Errorf("op=handlers.notify_customer job=%s: customer is missing a phone number: %w", job.ID, domain.ErrInvalidArgument)
		}
		adapter, err := hctx.Factory.Select(domain.CommSMS, hctx.TenantConfig)
		if err != nil {
			return HandlerResult{}, fmt.Errorf("op=handlers.notify_customer job=%s: %w", job.ID, err)
		}
		from := job.PayloadString("from")
		if from == "" {
			from = hctx.TenantConfig.SMSFromNumber
		}
		result := adapter.Send(ctx, domain.Message{To: phone, From: from, TextBody: body}, hctx.TenantConfig)
		if !result.Success {
			return HandlerResult{}, sendErr(job.ID, "notify_customer", result)
		}
		return HandlerResult{Reason: result.MessageID}, nil

	case domain.CommEmail:
		if email == "" {
			return HandlerResult{}, fmt.Errorf("op=handlers.notify_customer job=%s: customer is missing an email address: %w", job.ID, domain.ErrInvalidArgument)
		}
		adapter, err := hctx.Factory.Select(domain.CommEmail, hctx.TenantConfig)
		if err != nil {
			return HandlerResult{}, fmt.Errorf("op=handlers.notify_customer job=%s: %w", job.ID, err)
		}
		subject := job.PayloadString("subject")
		if subject == "" {
			subject = "Notification"
		}
		result := adapter.Send(ctx, domain.Message{To: email, Subject: subject, TextBody: body}, hctx.TenantConfig)
		if !result.Success {
			return HandlerResult{}, sendErr(job.ID, "notify_customer", result)
		}
		return HandlerResult{Reason: result.MessageID}, nil

	default:
		return HandlerResult{}, fmt.Errorf("op=handlers.notify_customer job=%s channel=%s: %w", job.ID, channel, domain.ErrInvalidArgument)
	}
}

func sendErr(jobID, op string, result domain.SendResult) error {
	if result.Error != nil {
		return fmt.Errorf("op=handlers.%s job=%s: %w", op, jobID, result.Error)
	}
	return fmt.Errorf("op=handlers.%s job=%s: %w", op, jobID, domain.ErrProviderRejected)
}
