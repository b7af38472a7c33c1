package model

import (
	"time"

	"github.com/google/uuid"
)

type CooldownMode string

const (
	CooldownModeQuiet    CooldownMode = "quiet"
	CooldownModeNormal   CooldownMode = "normal"
	CooldownModeRush     CooldownMode = "rush"
	CooldownModeCritical CooldownMode = "critical"
)

// CounterWindow is a rolling counter bound to a wall-clock window. Resetting
// is a pure function of "has the window elapsed", so the ledger can be tested
// without real time.
type CounterWindow struct {
	Sent    int       `json:"sent"`
	Failed  int       `json:"failed"`
	StartAt time.Time `json:"start_at"`
}

// Expired reports whether the window that started at StartAt has elapsed.
func (w CounterWindow) Expired(now time.Time, span time.Duration) bool {
	return now.Sub(w.StartAt) >= span
}

// Reset zeroes the counters and advances the window marker to now.
func (w *CounterWindow) Reset(now time.Time) {
	w.Sent = 0
	w.Failed = 0
	w.StartAt = now
}

// ProfileLedger holds the per-profile rolling counters and cooldown state.
// One row per profile.
type ProfileLedger struct {
	ProfileID uuid.UUID `json:"profile_id" db:"profile_id"`

	SentTotal int64 `json:"sent_total" db:"sent_total"`

	SentHour    int `json:"sent_hour" db:"sent_hour"`
	FailedHour  int `json:"failed_hour" db:"failed_hour"`
	Sent3Hours  int `json:"sent_3_hours" db:"sent_3_hours"`
	SentDay     int `json:"sent_day" db:"sent_day"`
	FailedDay   int `json:"failed_day" db:"failed_day"`
	ReceivedDay int `json:"received_day" db:"received_day"`

	SuccessRate24h    float64 `json:"success_rate_24h" db:"success_rate_24h"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms" db:"avg_response_time_ms"`

	CooldownSeconds   int          `json:"cooldown_seconds" db:"cooldown_seconds"`
	CooldownExpiresAt *time.Time   `json:"cooldown_expires_at,omitempty" db:"cooldown_expires_at"`
	CooldownMode      CooldownMode `json:"cooldown_mode" db:"cooldown_mode"`

	HourResetAt  time.Time `json:"hour_reset_at" db:"hour_reset_at"`
	Hour3ResetAt time.Time `json:"hour3_reset_at" db:"hour3_reset_at"`
	DayResetAt   time.Time `json:"day_reset_at" db:"day_reset_at"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SendOutcome carries everything that must land atomically in the ledger
// when a send completes: the counter bumps and the recomputed cooldown.
type SendOutcome struct {
	ProfileID         uuid.UUID
	Success           bool
	At                time.Time
	ResponseTimeMs    int
	CooldownSeconds   int
	CooldownMode      CooldownMode
	CooldownExpiresAt time.Time
}

// InCooldown reports whether an unexpired cooldown is being served.
func (l *ProfileLedger) InCooldown(now time.Time) bool {
	return l.CooldownExpiresAt != nil && now.Before(*l.CooldownExpiresAt)
}

// WindowsDue returns which counter windows have elapsed at now. The caller
// persists the corresponding zeroed counters and advanced markers.
func (l *ProfileLedger) WindowsDue(now time.Time) (hour, hour3, day bool) {
	hour = now.Sub(l.HourResetAt) >= time.Hour
	hour3 = now.Sub(l.Hour3ResetAt) >= 3*time.Hour
	day = now.Sub(l.DayResetAt) >= 24*time.Hour
	return
}

// ApplyResets zeroes every counter whose window has elapsed and advances the
// window markers. Returns true if anything changed.
func (l *ProfileLedger) ApplyResets(now time.Time) bool {
	hour, hour3, day := l.WindowsDue(now)
	if hour {
		l.SentHour = 0
		l.FailedHour = 0
		l.HourResetAt = now
	}
	if hour3 {
		l.Sent3Hours = 0
		l.Hour3ResetAt = now
	}
	if day {
		l.SentDay = 0
		l.FailedDay = 0
		l.ReceivedDay = 0
		l.DayResetAt = now
	}
	return hour || hour3 || day
}

// RemainingCapacity returns how many more sends each window allows, never
// negative. pending counts queued work toward the caps.
func (l *ProfileLedger) RemainingCapacity(hourly, threeHour, daily, pending int) (h, h3, d int) {
	h = max(0, hourly-l.SentHour-pending)
	h3 = max(0, threeHour-l.Sent3Hours-pending)
	d = max(0, daily-l.SentDay-pending)
	return
}
