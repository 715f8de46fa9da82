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

const sendgridAPIURL = "https://api.sendgrid.com/v3/mail/send"

// SendgridAdapter sends email via the SendGrid v3 Mail Send REST API.
type SendgridAdapter struct {
	HTTPClient *http.Client
	APIURL     string
}

// NewSendgridAdapter constructs a SendGrid adapter with a sane request timeout.
func NewSendgridAdapter() *SendgridAdapter {
	return &SendgridAdapter{HTTPClient: &http.Client{Timeout: 10 * time.Second}, APIURL: sendgridAPIURL}
}

// ProviderName identifies this adapter for circuit-breaker naming and metrics.
func (a *SendgridAdapter) ProviderName() string { return "sendgrid" }

type sgEmail struct {
	Email string `json:"email"`
}

type sgPersonalization struct {
	To  []sgEmail `json:"to"`
	CC  []sgEmail `json:"cc,omitempty"`
	BCC []sgEmail `json:"bcc,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgEmail             `json:"from"`
	ReplyTo          *sgEmail            `json:"reply_to,omitempty"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// Send posts msg to SendGrid's /mail/send endpoint.
func (a *SendgridAdapter) Send(ctx context.Context, msg domain.Message, cfg domain.TenantConfig) domain.SendResult {
	if cfg.SendgridAPIKey == "" {
		return domain.SendResult{Error: fmt.Errorf("op=sendgrid.send: %w", domain.ErrMissingCredentials)}
	}
	from := msg.From
	if from == "" {
		from = cfg.EmailFrom
	}
	if from == "" {
		from = "no-reply@example.com"
	}

	content := []sgContent{{Type: "text/plain", Value: msg.TextBody}}
	if msg.HTMLBody != "" {
		content = append(content, sgContent{Type: "text/html", Value: msg.HTMLBody})
	}

	p := sgPersonalization{To: []sgEmail{{Email: msg.To}}}
	for _, cc := range msg.CC {
		p.CC = append(p.CC, sgEmail{Email: cc})
	}
	for _, bcc := range msg.BCC {
		p.BCC = append(p.BCC, sgEmail{Email: bcc})
	}

	payload := sgPayload{
		Personalizations: []sgPersonalization{p},
		From:             sgEmail{Email: from},
		Subject:          msg.Subject,
		Content:          content,
	}
	if msg.ReplyTo != "" {
		payload.ReplyTo = &sgEmail{Email: msg.ReplyTo}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SendResult{Error: fmt.Errorf("op=sendgrid.send.marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.APIURL, bytes.NewReader(body))
	if err != nil {
		return domain.SendResult{Error: fmt.Errorf("op=sendgrid.send.build_request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.SendgridAPIKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return domain.SendResult{Error: fmt.Errorf("op=sendgrid.send.do: %w", domain.ErrTransportError)}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return domain.SendResult{
			StatusCode: resp.StatusCode,
			Error:      fmt.Errorf("op=sendgrid.send: sendgrid returned %d: %s: %w", resp.StatusCode, truncate(respBody, 200), domain.ErrProviderRejected),
		}
	}

	return domain.SendResult{Success: true, StatusCode: resp.StatusCode, MessageID: resp.Header.Get("X-Message-Id")}
}
