package handlers

import (
	"fmt"

	"github.com/dealer-comms/engine/internal/domain"
)

// ProcessQueueItem handles a process_queue_item job: it looks up the
// referenced communication_queue row, enriches the message params with
// work-order equipment info when available, generates content via C7, sends
// through the resolved channel adapter, and marks the queue item sent or
// failed. Grounded on
// original_source/src/jobs/handlers/process_queue.py's process_queue_item.
func ProcessQueueItem(ctx domain.Context, job domain.Job, hctx HandlerContext) (HandlerResult, error) {
	queueItemID := job.PayloadString("queue_item_id")
	if queueItemID == "" {
		return HandlerResult{}, fmt.Errorf("op=handlers.process_queue_item job=%s: missing \"queue_item_id\": %w", job.ID, domain.ErrInvalidArgument)
	}

	item, err := hctx.QueueItems.Get(ctx, queueItemID)
	if err != nil {
		return HandlerResult{}, fmt.Errorf("op=handlers.process_queue_item job=%s item=%s: %w", job.ID, queueItemID, err)
	}

	to := item.Recipient.Email
	if item.CommunicationType == domain.CommSMS {
		to = item.Recipient.Phone
	}
	if to == "" {
		err := fmt.Errorf("op=handlers.process_queue_item job=%s item=%s: recipient %s address missing: %w",
			job.ID, queueItemID, item.CommunicationType, domain.ErrInvalidArgument)
		_ = hctx.QueueItems.MarkFailed(ctx, queueItemID, err.Error())
		return HandlerResult{}, err
	}

	params := enrichParams(ctx, job.TenantID, item.MessageParams, hctx)

	content, err := hctx.Generator.Generate(ctx, job.TenantID, item.EventType, params, hctx.TenantConfig)
	if err != nil {
		_ = hctx.QueueItems.MarkFailed(ctx, queueItemID, err.Error())
		return HandlerResult{}, fmt.Errorf("op=handlers.process_queue_item job=%s item=%s: %w", job.ID, queueItemID, err)
	}
	if item.Subject != nil && *item.Subject != "" {
		content.Subject = *item.Subject
	}

	adapter, err := hctx.Factory.Select(item.CommunicationType, hctx.TenantConfig)
	if err != nil {
		_ = hctx.QueueItems.MarkFailed(ctx, queueItemID, err.Error())
		return HandlerResult{}, fmt.Errorf("op=handlers.process_queue_item job=%s item=%s: %w", job.ID, queueItemID, err)
	}

	msg := domain.Message{To: to, Subject: content.Subject, TextBody: content.Body, HTMLBody: content.HTML}
	result := adapter.Send(ctx, msg, hctx.TenantConfig)
	if !result.Success {
		err := sendErr(job.ID, "process_queue_item", result)
		_ = hctx.QueueItems.MarkFailed(ctx, queueItemID, err.Error())
		return HandlerResult{}, err
	}

	if err := hctx.QueueItems.MarkSent(ctx, queueItemID, result.MessageID); err != nil {
		return HandlerResult{}, fmt.Errorf("op=handlers.process_queue_item job=%s item=%s: %w", job.ID, queueItemID, err)
	}

	return HandlerResult{Reason: result.MessageID}, nil
}

// enrichParams adds equipment details to params when a work_order_number is
// present. Equipment lookup is best-effort: a failure here never fails the
// job, matching the original's "optional, continue without it" comment.
func enrichParams(ctx domain.Context, tenantID string, params map[string]any, hctx HandlerContext) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}

	won, _ := out["work_order_number"].(string)
	if won == "" || hctx.Gateway == nil {
		return out
	}

	equipment, err := hctx.Gateway.WorkOrderEquipment(ctx, tenantID, won)
	if err != nil || equipment == nil {
		if hctx.Logger != nil {
			hctx.Logger.Warn("could not fetch equipment info, continuing without it", "work_order_number", won, "error", err)
		}
		return out
	}

	for _, field := range []string{"equipment_model", "serial_number", "manufacturer", "year", "service_description"} {
		if v, ok := equipment[field]; ok {
			out[field] = v
		}
	}
	return out
}
