package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/dealer-comms/engine/internal/domain"
)

// parseTimeToMinutes parses an "HH:MM" string into minutes since midnight,
// returning ok=false for an empty, malformed, or out-of-range value. Ported
// from job_processor.py's parse_time_to_minutes.
func parseTimeToMinutes(timeString string) (int, bool) {
	if timeString == "" {
		return 0, false
	}
	parts := strings.Split(timeString, ":")
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

// isWithinQuietHours reports whether currentMinutes falls inside the
// [start, end) quiet-hours window. When start > end the window wraps past
// midnight. Ported from job_processor.py's is_within_quiet_hours.
func isWithinQuietHours(currentMinutes, start, end int) bool {
	if start < end {
		return currentMinutes >= start && currentMinutes < end
	}
	if start > end {
		return currentMinutes >= start || currentMinutes < end
	}
	return false
}

// quietHoursDelay returns the next time at which job may be processed, or nil
// if it isn't currently subject to quiet hours. An "urgent" payload flag
// bypasses quiet hours entirely. Ported from job_processor.py's
// get_quiet_hours_delay.
func quietHoursDelay(job domain.Job, cfg domain.TenantConfig, now time.Time) *time.Time {
	if job.PayloadBool("urgent") {
		return nil
	}

	start, startOK := parseTimeToMinutes(cfg.QuietHoursStart)
	end, endOK := parseTimeToMinutes(cfg.QuietHoursEnd)
	if !startOK || !endOK {
		return nil
	}

	currentMinutes := now.Hour()*60 + now.Minute()
	if !isWithinQuietHours(currentMinutes, start, end) {
		return nil
	}

	nextAllowed := time.Date(now.Year(), now.Month(), now.Day(), end/60, end%60, 0, 0, now.Location())

	if start > end {
		if currentMinutes >= start {
			nextAllowed = nextAllowed.AddDate(0, 0, 1)
		}
	} else if currentMinutes >= end {
		nextAllowed = nextAllowed.AddDate(0, 0, 1)
	}

	if !nextAllowed.After(now) {
		nextAllowed = nextAllowed.AddDate(0, 0, 1)
	}

	return &nextAllowed
}
