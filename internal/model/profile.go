package model

import (
	"time"

	"github.com/google/uuid"
)

type ProfileStatus string

const (
	ProfileStatusActive   ProfileStatus = "active"
	ProfileStatusPaused   ProfileStatus = "paused"
	ProfileStatusBlocked  ProfileStatus = "blocked"
	ProfileStatusCooldown ProfileStatus = "cooldown"
)

// Profile is a sending identity owned by exactly one package. The engine
// mutates its status, scores and timestamps; provisioning and deletion are
// external concerns.
type Profile struct {
	Base
	PackageID uuid.UUID `json:"package_id" db:"package_id" validate:"required"`
	Name      string    `json:"name" db:"name" validate:"required"`
	Address   string    `json:"address" db:"address" validate:"required"`

	// Provider credentials, encrypted at rest (pkg/security).
	ProviderUUID  string `json:"-" db:"provider_uuid"`
	ProviderToken string `json:"-" db:"provider_token"`

	Status      ProfileStatus `json:"status" db:"status"`
	PauseReason *string       `json:"pause_reason,omitempty" db:"pause_reason"`
	ResumeAt    *time.Time    `json:"resume_at,omitempty" db:"resume_at"`

	ManualPriority   int     `json:"manual_priority" db:"manual_priority"`
	AccountAgeMonths int     `json:"account_age_months" db:"account_age_months"`
	WeightScore      float64 `json:"weight_score" db:"weight_score"`
	HealthScore      int     `json:"health_score" db:"health_score"`
	RiskScore        int     `json:"risk_score" db:"risk_score"`

	// Optional per-profile limit overrides; nil means package default.
	MaxPerHour   *int `json:"max_per_hour,omitempty" db:"max_per_hour"`
	MaxPer3Hours *int `json:"max_per_3_hours,omitempty" db:"max_per_3_hours"`
	MaxPerDay    *int `json:"max_per_day,omitempty" db:"max_per_day"`

	LastSendAt        *time.Time `json:"last_send_at,omitempty" db:"last_send_at"`
	LastBlockAt       *time.Time `json:"last_block_at,omitempty" db:"last_block_at"`
	LastHealthCheckAt *time.Time `json:"last_health_check_at,omitempty" db:"last_health_check_at"`
}

// Sendable reports whether the profile may carry proactive traffic at all.
// Cooldown and window caps are checked separately against the ledger.
func (p *Profile) Sendable() bool {
	return p.Status == ProfileStatusActive
}
