package sms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealer-comms/engine/internal/adapter/provider/sms"
	"github.com/dealer-comms/engine/internal/domain"
)

func TestTwilioAdapter_Send_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.FormValue("To"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	a := sms.NewTwilioAdapter()
	a.BaseURL = srv.URL
	cfg := domain.TenantConfig{SMSAccountID: "AC1", SMSAuthToken: "tok", SMSFromNumber: "+15550001111"}

	result := a.Send(context.Background(), domain.Message{To: "+15551234567", TextBody: "hi"}, cfg)
	require.True(t, result.Success)
	assert.Equal(t, "SM123", result.MessageID)
}

func TestTwilioAdapter_Send_MissingCredentials(t *testing.T) {
	a := sms.NewTwilioAdapter()
	result := a.Send(context.Background(), domain.Message{To: "+1", TextBody: "hi"}, domain.TenantConfig{})
	require.False(t, result.Success)
	assert.ErrorIs(t, result.Error, domain.ErrMissingCredentials)
}

func TestTwilioAdapter_Send_ProviderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid number"}`))
	}))
	defer srv.Close()

	a := sms.NewTwilioAdapter()
	a.BaseURL = srv.URL
	cfg := domain.TenantConfig{SMSAccountID: "AC1", SMSAuthToken: "tok", SMSFromNumber: "+15550001111"}

	result := a.Send(context.Background(), domain.Message{To: "bad", TextBody: "hi"}, cfg)
	require.False(t, result.Success)
	assert.ErrorIs(t, result.Error, domain.ErrProviderRejected)
}
