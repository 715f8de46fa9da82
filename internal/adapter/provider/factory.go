// Package provider implements the outbound send adapters (C5): one per
// channel/provider pair, each wrapped by a circuit breaker the way the
// teacher wraps every AI backend call in internal/adapter/ai/circuit_breaker.go.
package provider

import (
	"fmt"
	"time"

	"github.com/dealer-comms/engine/internal/adapter/observability"
	"github.com/dealer-comms/engine/internal/adapter/provider/email"
	"github.com/dealer-comms/engine/internal/adapter/provider/sms"
	"github.com/dealer-comms/engine/internal/domain"
)

// breakerMaxFailures/breakerRecovery match the teacher's AI circuit breaker
// defaults, generalized per provider name.
const (
	breakerMaxFailures = 3
	breakerRecovery    = 30 * time.Second
)

// Factory selects the concrete Adapter for a channel given tenant config,
// implementing the selection rule in spec §4.4: SMS always uses the Twilio
// adapter; email picks resend or sendgrid from TenantConfig.EmailProvider,
// and when that is unset picks resend if a resend key exists, else sendgrid.
type Factory struct{}

// NewFactory constructs a provider adapter factory.
func NewFactory() *Factory { return &Factory{} }

// Select returns the Adapter for commType, wrapped in a named circuit
// breaker, or ErrMissingCredentials if the tenant has no usable provider
// configuration for that channel.
func (f *Factory) Select(commType domain.CommunicationType, cfg domain.TenantConfig) (domain.Adapter, error) {
	switch commType {
	case domain.CommSMS:
		if cfg.SMSAccountID == "" || cfg.SMSAuthToken == "" {
			return nil, fmt.Errorf("op=provider.select tenant=%s channel=sms: %w", cfg.TenantID, domain.ErrMissingCredentials)
		}
		adapter := sms.NewTwilioAdapter()
		return withBreaker(adapter), nil
	case domain.CommEmail:
		providerName := resolveEmailProvider(cfg)
		switch providerName {
		case "resend":
			if cfg.ResendAPIKey == "" {
				return nil, fmt.Errorf("op=provider.select tenant=%s channel=email provider=resend: %w", cfg.TenantID, domain.ErrMissingCredentials)
			}
			return withBreaker(email.NewResendAdapter()), nil
		case "sendgrid":
			if cfg.SendgridAPIKey == "" {
				return nil, fmt.Errorf("op=provider.select tenant=%s channel=email provider=sendgrid: %w", cfg.TenantID, domain.ErrMissingCredentials)
			}
			return withBreaker(email.NewSendgridAdapter()), nil
		default:
			return nil, fmt.Errorf("op=provider.select tenant=%s channel=email: %w", cfg.TenantID, domain.ErrMissingCredentials)
		}
	default:
		return nil, fmt.Errorf("op=provider.select tenant=%s channel=%s: %w", cfg.TenantID, commType, domain.ErrInvalidArgument)
	}
}

// resolveEmailProvider mirrors create_email_service's auto-detection:
// explicit setting first, then whichever API key is present, defaulting to
// sendgrid for backward compatibility.
func resolveEmailProvider(cfg domain.TenantConfig) string {
	if cfg.EmailProvider != "" {
		return cfg.EmailProvider
	}
	if cfg.ResendAPIKey != "" {
		return "resend"
	}
	return "sendgrid"
}

func withBreaker(a domain.Adapter) domain.Adapter {
	cb := observability.GetCircuitBreaker(a.ProviderName(), breakerMaxFailures, breakerRecovery)
	return breakerAdapter{inner: a, cb: cb}
}

type breakerAdapter struct {
	inner domain.Adapter
	cb    *observability.CircuitBreaker
}

func (b breakerAdapter) ProviderName() string { return b.inner.ProviderName() }

func (b breakerAdapter) Send(ctx domain.Context, msg domain.Message, cfg domain.TenantConfig) domain.SendResult {
	var result domain.SendResult
	err := b.cb.Call(func() error {
		result = b.inner.Send(ctx, msg, cfg)
		if !result.Success {
			if result.Error != nil {
				return result.Error
			}
			return domain.ErrProviderRejected
		}
		return nil
	})
	if err != nil && result.Error == nil {
		result.Error = err
		result.Success = false
	}
	return result
}

var _ domain.AdapterFactory = (*Factory)(nil)
