package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveLimitsHonorProfileOverrides(t *testing.T) {
	pkg := &Package{MaxPerHour: 10, MaxPer3Hours: 25, MaxPerDay: 60}

	assert.Equal(t, 10, pkg.EffectiveHourly(nil))
	assert.Equal(t, 60, pkg.EffectiveDaily(&Profile{}))

	hourly, daily := 4, 20
	prof := &Profile{MaxPerHour: &hourly, MaxPerDay: &daily}
	assert.Equal(t, 4, pkg.EffectiveHourly(prof))
	assert.Equal(t, 25, pkg.Effective3Hours(prof))
	assert.Equal(t, 20, pkg.EffectiveDaily(prof))
}

func TestRetryDelayDoublesPerAttempt(t *testing.T) {
	pkg := &Package{RetryBaseDelaySec: 5}

	assert.Equal(t, 10*time.Second, pkg.RetryDelay(1))
	assert.Equal(t, 20*time.Second, pkg.RetryDelay(2))
	assert.Equal(t, 40*time.Second, pkg.RetryDelay(3))
}

func TestRetryDelayDefaultsBase(t *testing.T) {
	pkg := &Package{}
	assert.Equal(t, 10*time.Second, pkg.RetryDelay(1))
}
