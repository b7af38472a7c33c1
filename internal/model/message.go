package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageMode string

const (
	MessageModeProactive MessageMode = "proactive"
	MessageModeReactive  MessageMode = "reactive"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusScheduled MessageStatus = "scheduled"
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusCompleted MessageStatus = "completed"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusCancelled MessageStatus = "cancelled"
)

// StringSlice stores a JSON array in a single column.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type %T for StringSlice", src)
	}
}

// Message is one outbound request: a proactive fan-out across profiles or a
// single reactive reply.
type Message struct {
	Base
	PackageID uuid.UUID   `json:"package_id" db:"package_id"`
	Mode      MessageMode `json:"mode" db:"mode"`
	Content   string      `json:"content" db:"content"`

	Recipients StringSlice   `json:"recipients" db:"recipients"`
	Status     MessageStatus `json:"status" db:"status"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`

	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	ProcessedCount  int `json:"processed_count" db:"processed_count"`
	SuccessCount    int `json:"success_count" db:"success_count"`
	FailedCount     int `json:"failed_count" db:"failed_count"`
}

type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// DeliveryLog records one attempt against the outbound channel. It feeds the
// risk patterns and the block detector.
type DeliveryLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	MessageID uuid.UUID `json:"message_id" db:"message_id"`
	ProfileID uuid.UUID `json:"profile_id" db:"profile_id"`
	Recipient string    `json:"recipient" db:"recipient"`
	Mode      MessageMode `json:"mode" db:"mode"`

	Status            DeliveryStatus `json:"status" db:"status"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty" db:"provider_message_id"`
	AttemptCount      int            `json:"attempt_count" db:"attempt_count"`
	ErrorMessage      *string        `json:"error_message,omitempty" db:"error_message"`
	ResponseTimeMs    int            `json:"response_time_ms" db:"response_time_ms"`

	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
