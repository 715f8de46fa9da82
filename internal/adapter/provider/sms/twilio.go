// Package sms implements the SMS channel provider adapter (C5).
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dealer-comms/engine/internal/domain"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioAdapter sends SMS via the Twilio Messages REST API, a plain
// net/http + url.Values POST since the pack carries no twilio-go client
// (see DESIGN.md).
type TwilioAdapter struct {
	HTTPClient *http.Client
	BaseURL    string
}

// NewTwilioAdapter constructs a Twilio adapter with a sane request timeout.
func NewTwilioAdapter() *TwilioAdapter {
	return &TwilioAdapter{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    twilioAPIBase,
	}
}

// ProviderName identifies this adapter for circuit-breaker naming and metrics.
func (a *TwilioAdapter) ProviderName() string { return "twilio" }

// Send posts msg to Twilio's Messages.json endpoint for cfg's account.
func (a *TwilioAdapter) Send(ctx context.Context, msg domain.Message, cfg domain.TenantConfig) domain.SendResult {
	if cfg.SMSAccountID == "" || cfg.SMSAuthToken == "" {
		return domain.SendResult{Error: fmt.Errorf("op=twilio.send: %w", domain.ErrMissingCredentials)}
	}
	from := msg.From
	if from == "" {
		from = cfg.SMSFromNumber
	}
	if from == "" {
		return domain.SendResult{Error: fmt.Errorf("op=twilio.send: missing from number: %w", domain.ErrInvalidArgument)}
	}

	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", from)
	form.Set("Body", msg.TextBody)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", a.BaseURL, cfg.SMSAccountID)
	encoded := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
	if err != nil {
		return domain.SendResult{Error: fmt.Errorf("op=twilio.send.build_request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(cfg.SMSAccountID, cfg.SMSAuthToken)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return domain.SendResult{Error: fmt.Errorf("op=twilio.send.do: %w", domain.ErrTransportError)}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return domain.SendResult{
			StatusCode: resp.StatusCode,
			Error:      fmt.Errorf("op=twilio.send: twilio returned %d: %s: %w", resp.StatusCode, truncate(body, 200), domain.ErrProviderRejected),
		}
	}

	return domain.SendResult{Success: true, StatusCode: resp.StatusCode, MessageID: extractSID(body)}
}

func extractSID(body []byte) string {
	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.SID
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
