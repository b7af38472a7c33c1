package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInCooldown(t *testing.T) {
	now := time.Now()
	l := &ProfileLedger{}

	assert.False(t, l.InCooldown(now))

	future := now.Add(30 * time.Second)
	l.CooldownExpiresAt = &future
	assert.True(t, l.InCooldown(now))

	past := now.Add(-time.Second)
	l.CooldownExpiresAt = &past
	assert.False(t, l.InCooldown(now))
}

func TestWindowsDue(t *testing.T) {
	now := time.Now()
	l := &ProfileLedger{
		HourResetAt:  now.Add(-61 * time.Minute),
		Hour3ResetAt: now.Add(-2 * time.Hour),
		DayResetAt:   now.Add(-25 * time.Hour),
	}

	hour, hour3, day := l.WindowsDue(now)
	assert.True(t, hour)
	assert.False(t, hour3)
	assert.True(t, day)
}

func TestApplyResetsOnlyElapsedWindows(t *testing.T) {
	now := time.Now()
	l := &ProfileLedger{
		SentHour:     8,
		FailedHour:   2,
		Sent3Hours:   20,
		SentDay:      50,
		FailedDay:    5,
		ReceivedDay:  3,
		HourResetAt:  now.Add(-2 * time.Hour),
		Hour3ResetAt: now.Add(-time.Hour),
		DayResetAt:   now.Add(-6 * time.Hour),
	}

	changed := l.ApplyResets(now)
	assert.True(t, changed)

	// Hour window elapsed: its counters zero, marker advances.
	assert.Equal(t, 0, l.SentHour)
	assert.Equal(t, 0, l.FailedHour)
	assert.Equal(t, now, l.HourResetAt)

	// 3h and day windows untouched.
	assert.Equal(t, 20, l.Sent3Hours)
	assert.Equal(t, 50, l.SentDay)
	assert.Equal(t, 5, l.FailedDay)
	assert.Equal(t, 3, l.ReceivedDay)
}

func TestApplyResetsNoopWhenNothingDue(t *testing.T) {
	now := time.Now()
	l := &ProfileLedger{
		SentHour:     4,
		HourResetAt:  now.Add(-time.Minute),
		Hour3ResetAt: now.Add(-time.Minute),
		DayResetAt:   now.Add(-time.Minute),
	}

	assert.False(t, l.ApplyResets(now))
	assert.Equal(t, 4, l.SentHour)
}

func TestApplyResetsDayClearsReceived(t *testing.T) {
	now := time.Now()
	l := &ProfileLedger{
		SentDay:      100,
		FailedDay:    10,
		ReceivedDay:  7,
		HourResetAt:  now,
		Hour3ResetAt: now,
		DayResetAt:   now.Add(-25 * time.Hour),
	}

	assert.True(t, l.ApplyResets(now))
	assert.Equal(t, 0, l.SentDay)
	assert.Equal(t, 0, l.FailedDay)
	assert.Equal(t, 0, l.ReceivedDay)
}

func TestRemainingCapacity(t *testing.T) {
	l := &ProfileLedger{SentHour: 8, Sent3Hours: 20, SentDay: 55}

	h, h3, d := l.RemainingCapacity(10, 25, 60, 0)
	assert.Equal(t, 2, h)
	assert.Equal(t, 5, h3)
	assert.Equal(t, 5, d)

	// Pending queue work counts against every window.
	h, h3, d = l.RemainingCapacity(10, 25, 60, 3)
	assert.Equal(t, 0, h) // floored, not negative
	assert.Equal(t, 2, h3)
	assert.Equal(t, 2, d)
}

func TestCounterWindow(t *testing.T) {
	now := time.Now()
	w := CounterWindow{Sent: 5, Failed: 1, StartAt: now.Add(-time.Hour)}

	assert.True(t, w.Expired(now, time.Hour))
	assert.False(t, w.Expired(now, 2*time.Hour))

	w.Reset(now)
	assert.Equal(t, 0, w.Sent)
	assert.Equal(t, 0, w.Failed)
	assert.Equal(t, now, w.StartAt)
}
