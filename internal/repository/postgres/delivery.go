package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

const deliveryColumns = `
	id, message_id, profile_id, recipient, mode,
	status, provider_message_id, attempt_count, error_message, response_time_ms,
	sent_at, created_at`

func (r *deliveryRepository) Create(ctx context.Context, log *model.DeliveryLog) error {
	query := `
		INSERT INTO delivery_logs (` + deliveryColumns + `)
		VALUES (
			:id, :message_id, :profile_id, :recipient, :mode,
			:status, :provider_message_id, :attempt_count, :error_message, :response_time_ms,
			:sent_at, :created_at
		)
	`
	log.ID = uuid.New()
	log.CreatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("failed to create delivery log: %w", err)
	}
	return nil
}

func (r *deliveryRepository) Recent(ctx context.Context, profileID uuid.UUID, limit int) ([]*model.DeliveryLog, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM delivery_logs
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	var logs []*model.DeliveryLog
	err := r.db.SelectContext(ctx, &logs, query, profileID, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return logs, err
}

func (r *deliveryRepository) CountSince(ctx context.Context, profileID uuid.UUID, since time.Time) (int, int, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = $1) AS failed
		FROM delivery_logs
		WHERE profile_id = $2 AND created_at >= $3
	`
	var row struct {
		Total  int `db:"total"`
		Failed int `db:"failed"`
	}
	if err := r.db.GetContext(ctx, &row, query, model.DeliveryStatusFailed, profileID, since); err != nil {
		return 0, 0, fmt.Errorf("failed to count deliveries: %w", err)
	}
	return row.Total, row.Failed, nil
}

func (r *deliveryRepository) CountSentSince(ctx context.Context, profileID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM delivery_logs
		WHERE profile_id = $1 AND status = $2 AND created_at >= $3
	`
	var n int
	if err := r.db.GetContext(ctx, &n, query, profileID, model.DeliveryStatusSent, since); err != nil {
		return 0, fmt.Errorf("failed to count sent deliveries: %w", err)
	}
	return n, nil
}

func (r *deliveryRepository) RecentErrors(ctx context.Context, profileID uuid.UUID, since time.Time, limit int) ([]string, error) {
	query := `
		SELECT error_message
		FROM delivery_logs
		WHERE profile_id = $1 AND status = $2 AND error_message IS NOT NULL AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4
	`
	var errs []string
	err := r.db.SelectContext(ctx, &errs, query, profileID, model.DeliveryStatusFailed, since, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return errs, err
}

func (r *deliveryRepository) MaxRecipientsPerMessage(ctx context.Context, profileID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COALESCE(MAX(n), 0)
		FROM (
			SELECT COUNT(DISTINCT recipient) AS n
			FROM delivery_logs
			WHERE profile_id = $1 AND created_at >= $2
			GROUP BY message_id
		) per_message
	`
	var n int
	if err := r.db.GetContext(ctx, &n, query, profileID, since); err != nil {
		return 0, fmt.Errorf("failed to get max recipients per message: %w", err)
	}
	return n, nil
}
