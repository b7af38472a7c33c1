package model

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertTypeBlockDetected  AlertType = "block_detected"
	AlertTypeBlockWarning   AlertType = "block_warning"
	AlertTypeProfileResumed AlertType = "profile_resumed"
	AlertTypeHighRisk       AlertType = "high_risk_pattern"
	AlertTypeLimitsAdjusted AlertType = "limits_adjusted"
)

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert is a notable engine state change. Creation is deduplicated per
// (type, profile, severity) within a trailing hour.
type Alert struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	PackageID *uuid.UUID `json:"package_id,omitempty" db:"package_id"`
	ProfileID *uuid.UUID `json:"profile_id,omitempty" db:"profile_id"`

	Type     AlertType     `json:"type" db:"type"`
	Severity AlertSeverity `json:"severity" db:"severity"`
	Title    string        `json:"title" db:"title"`
	Message  string        `json:"message" db:"message"`

	IsRead     bool       `json:"is_read" db:"is_read"`
	IsResolved bool       `json:"is_resolved" db:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
