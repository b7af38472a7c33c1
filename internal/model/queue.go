package model

import (
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "waiting"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusCancelled  QueueStatus = "cancelled"
)

// Terminal reports whether the status is immutable.
func (s QueueStatus) Terminal() bool {
	return s == QueueStatusSent || s == QueueStatusFailed || s == QueueStatusCancelled
}

// QueueItem is one (message, recipient, profile) assignment awaiting delivery.
// A failed-exhausted item never mutates back to waiting; redistribution spawns
// a fresh item on another profile, capped at one hop.
type QueueItem struct {
	Base
	MessageID uuid.UUID `json:"message_id" db:"message_id"`
	ProfileID uuid.UUID `json:"profile_id" db:"profile_id"`
	Recipient string    `json:"recipient" db:"recipient"`
	Content   string    `json:"content" db:"content"`

	Status   QueueStatus `json:"status" db:"status"`
	Priority int         `json:"priority" db:"priority"`

	ScheduledSendAt time.Time `json:"scheduled_send_at" db:"scheduled_send_at"`
	AttemptCount    int       `json:"attempt_count" db:"attempt_count"`
	MaxAttempts     int       `json:"max_attempts" db:"max_attempts"`
	LastError       *string   `json:"last_error,omitempty" db:"last_error"`

	// Set when this item was created by redistributing another item; such an
	// item is never redistributed again.
	RedistributedFrom *uuid.UUID `json:"redistributed_from,omitempty" db:"redistributed_from"`

	SentAt *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}

// ConversationRoute pins a customer address to the profile that first reached
// it, so replies always leave from the same identity.
type ConversationRoute struct {
	ID                uuid.UUID `json:"id" db:"id"`
	PackageID         uuid.UUID `json:"package_id" db:"package_id"`
	CustomerAddress   string    `json:"customer_address" db:"customer_address"`
	ProfileID         uuid.UUID `json:"profile_id" db:"profile_id"`
	LastInteractionAt time.Time `json:"last_interaction_at" db:"last_interaction_at"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
