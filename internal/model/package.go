package model

import "time"

type PackageStatus string

const (
	PackageStatusActive   PackageStatus = "active"
	PackageStatusInactive PackageStatus = "inactive"
)

type DistributionMode string

const (
	DistributionRoundRobin DistributionMode = "round_robin"
	DistributionRandom     DistributionMode = "random"
	DistributionWeighted   DistributionMode = "weighted"
	DistributionSmart      DistributionMode = "smart"
)

// Package is a policy-bound pool of sender profiles. Its rate limits apply
// per profile unless a profile carries its own override.
type Package struct {
	Base
	Name             string           `json:"name" db:"name" validate:"required"`
	Description      string           `json:"description" db:"description"`
	Status           PackageStatus    `json:"status" db:"status" validate:"required,oneof=active inactive"`
	DistributionMode DistributionMode `json:"distribution_mode" db:"distribution_mode" validate:"required,distribution_mode"`

	// Per-profile rate limits with the bounds auto-adjust must respect.
	MaxPerHour   int `json:"max_per_hour" db:"max_per_hour" validate:"min=1"`
	MaxPer3Hours int `json:"max_per_3_hours" db:"max_per_3_hours" validate:"min=1"`
	MaxPerDay    int `json:"max_per_day" db:"max_per_day" validate:"min=1"`
	MinPerHour   int `json:"min_per_hour" db:"min_per_hour"`
	MinPer3Hours int `json:"min_per_3_hours" db:"min_per_3_hours"`
	MinPerDay    int `json:"min_per_day" db:"min_per_day"`
	CapPerHour   int `json:"cap_per_hour" db:"cap_per_hour"`
	CapPer3Hours int `json:"cap_per_3_hours" db:"cap_per_3_hours"`
	CapPerDay    int `json:"cap_per_day" db:"cap_per_day"`

	MaxConcurrentSends  int `json:"max_concurrent_sends" db:"max_concurrent_sends"`
	FreezeDurationHours int `json:"freeze_duration_hours" db:"freeze_duration_hours"`

	// Queue-pressure tiers for the cooldown calculator.
	RushThreshold   int     `json:"rush_threshold" db:"rush_threshold"`
	RushMultiplier  float64 `json:"rush_multiplier" db:"rush_multiplier"`
	QuietThreshold  int     `json:"quiet_threshold" db:"quiet_threshold"`
	QuietMultiplier float64 `json:"quiet_multiplier" db:"quiet_multiplier"`

	AutoAdjustLimits       bool    `json:"auto_adjust_limits" db:"auto_adjust_limits"`
	AutoAdjustIntervalMins int     `json:"auto_adjust_interval_mins" db:"auto_adjust_interval_mins"`
	AutoPauseOnFailures    bool    `json:"auto_pause_on_failures" db:"auto_pause_on_failures"`
	AutoPauseFailures      int     `json:"auto_pause_failures" db:"auto_pause_failures"`
	AutoPauseSuccessRate   float64 `json:"auto_pause_success_rate" db:"auto_pause_success_rate"`
	AlertRiskThreshold     int     `json:"alert_risk_threshold" db:"alert_risk_threshold"`

	RetryFailedSends  bool `json:"retry_failed_sends" db:"retry_failed_sends"`
	RetryMaxAttempts  int  `json:"retry_max_attempts" db:"retry_max_attempts"`
	RetryBaseDelaySec int  `json:"retry_base_delay_sec" db:"retry_base_delay_sec"`
}

// EffectiveHourly returns the hourly limit for a profile, honoring its override.
func (p *Package) EffectiveHourly(prof *Profile) int {
	if prof != nil && prof.MaxPerHour != nil {
		return *prof.MaxPerHour
	}
	return p.MaxPerHour
}

func (p *Package) Effective3Hours(prof *Profile) int {
	if prof != nil && prof.MaxPer3Hours != nil {
		return *prof.MaxPer3Hours
	}
	return p.MaxPer3Hours
}

func (p *Package) EffectiveDaily(prof *Profile) int {
	if prof != nil && prof.MaxPerDay != nil {
		return *prof.MaxPerDay
	}
	return p.MaxPerDay
}

// RetryDelay returns the backoff before attempt n (1-based) is retried.
func (p *Package) RetryDelay(attempt int) time.Duration {
	base := p.RetryBaseDelaySec
	if base <= 0 {
		base = 5
	}
	d := time.Duration(base) * time.Second
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}
