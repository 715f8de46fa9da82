// Package email implements the email channel provider adapters (C5):
// Resend and SendGrid, both plain REST calls per their respective wire
// formats since the pack carries no dedicated client library for either.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dealer-comms/engine/internal/domain"
)

const resendAPIURL = "https://api.resend.com/emails"

// ResendAdapter sends email via the Resend REST API.
type ResendAdapter struct {
	HTTPClient *http.Client
	APIURL     string
}

// NewResendAdapter constructs a Resend adapter with a sane request timeout.
func NewResendAdapter() *ResendAdapter {
	return &ResendAdapter{HTTPClient: &http.Client{Timeout: 10 * time.Second}, APIURL: resendAPIURL}
}

// ProviderName identifies this adapter for circuit-breaker naming and metrics.
func (a *ResendAdapter) ProviderName() string { return "resend" }

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// Send posts msg to Resend's /emails endpoint.
func (a *ResendAdapter) Send(ctx context.Context, msg domain.Message, cfg domain.TenantConfig) domain.SendResult {
	if cfg.ResendAPIKey == "" {
		return domain.SendResult{Error: fmt.Errorf("op=resend.send: %w", domain.ErrMissingCredentials)}
	}
	from := msg.From
	if from == "" {
		from = cfg.EmailFrom
	}
	if from == "" {
		from = "no-reply@example.com"
	}

	payload := resendPayload{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.TextBody,
		HTML:    msg.HTMLBody,
		CC:      msg.CC,
		BCC:     msg.BCC,
		ReplyTo: msg.ReplyTo,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SendResult{Error: fmt.Errorf("op=resend.send.marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.APIURL, bytes.NewReader(body))
	if err != nil {
		return domain.SendResult{Error: fmt.Errorf("op=resend.send.build_request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.ResendAPIKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return domain.SendResult{Error: fmt.Errorf("op=resend.send.do: %w", domain.ErrTransportError)}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return domain.SendResult{
			StatusCode: resp.StatusCode,
			Error:      fmt.Errorf("op=resend.send: resend returned %d: %s: %w", resp.StatusCode, truncate(respBody, 200), domain.ErrProviderRejected),
		}
	}

	var parsed struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(respBody, &parsed)
	return domain.SendResult{Success: true, StatusCode: resp.StatusCode, MessageID: parsed.ID}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
