package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dealer-comms/engine/internal/domain"
)

func TestParseTimeToMinutes(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int
		ok    bool
	}{
		{"midnight", "00:00", 0, true},
		{"mid-morning", "09:30", 570, true},
		{"end-of-day", "23:59", 1439, true},
		{"empty", "", 0, false},
		{"no-colon", "0930", 0, false},
		{"hour-out-of-range", "24:00", 0, false},
		{"minute-out-of-range", "10:60", 0, false},
		{"negative", "-1:00", 0, false},
		{"non-numeric", "ab:cd", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseTimeToMinutes(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestIsWithinQuietHours(t *testing.T) {
	cases := []struct {
		name    string
		current int
		start   int
		end     int
		want    bool
	}{
		{"non-wrapping inside", 22 * 60, 21 * 60, 23 * 60, true},
		{"non-wrapping before start", 20 * 60, 21 * 60, 23 * 60, false},
		{"non-wrapping at end boundary excluded", 23 * 60, 21 * 60, 23 * 60, false},
		{"non-wrapping at start boundary included", 21 * 60, 21 * 60, 23 * 60, true},
		{"wrapping after start", 22*60 + 30, 22 * 60, 7 * 60, true},
		{"wrapping before end", 3 * 60, 22 * 60, 7 * 60, true},
		{"wrapping outside window", 12 * 60, 22 * 60, 7 * 60, false},
		{"equal start and end", 10 * 60, 9 * 60, 9 * 60, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isWithinQuietHours(tc.current, tc.start, tc.end))
		})
	}
}

func TestQuietHoursDelay_UrgentBypassesQuietHours(t *testing.T) {
	job := domain.Job{Payload: map[string]any{"urgent": true}}
	cfg := domain.TenantConfig{QuietHoursStart: "21:00", QuietHoursEnd: "07:00"}
	now := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)

	assert.Nil(t, quietHoursDelay(job, cfg, now))
}

func TestQuietHoursDelay_NoConfigMeansNoDelay(t *testing.T) {
	job := domain.Job{}
	cfg := domain.TenantConfig{}
	now := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)

	assert.Nil(t, quietHoursDelay(job, cfg, now))
}

func TestQuietHoursDelay_OutsideWindowMeansNoDelay(t *testing.T) {
	job := domain.Job{}
	cfg := domain.TenantConfig{QuietHoursStart: "21:00", QuietHoursEnd: "07:00"}
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, quietHoursDelay(job, cfg, now))
}

func TestQuietHoursDelay_WrappingWindowBeforeMidnightDefersToNextDayEnd(t *testing.T) {
	job := domain.Job{}
	cfg := domain.TenantConfig{QuietHoursStart: "21:00", QuietHoursEnd: "07:00"}
	now := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)

	got := quietHoursDelay(job, cfg, now)
	if assert.NotNil(t, got) {
		want := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC)
		assert.True(t, got.Equal(want), "want %v got %v", want, *got)
	}
}

func TestQuietHoursDelay_WrappingWindowAfterMidnightDefersToSameDayEnd(t *testing.T) {
	job := domain.Job{}
	cfg := domain.TenantConfig{QuietHoursStart: "21:00", QuietHoursEnd: "07:00"}
	now := time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)

	got := quietHoursDelay(job, cfg, now)
	if assert.NotNil(t, got) {
		want := time.Date(2026, 7, 30, 7, 0, 0, 0, time.UTC)
		assert.True(t, got.Equal(want), "want %v got %v", want, *got)
	}
}

func TestQuietHoursDelay_NonWrappingWindowDefersToEndSameDay(t *testing.T) {
	job := domain.Job{}
	cfg := domain.TenantConfig{QuietHoursStart: "13:00", QuietHoursEnd: "15:00"}
	now := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)

	got := quietHoursDelay(job, cfg, now)
	if assert.NotNil(t, got) {
		want := time.Date(2026, 7, 30, 15, 0, 0, 0, time.UTC)
		assert.True(t, got.Equal(want), "want %v got %v", want, *got)
	}
}
