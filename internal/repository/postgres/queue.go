package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/blockpreventer/bridge/internal/model"
)

const queueColumns = `
	id, message_id, profile_id, recipient, content,
	status, priority, scheduled_send_at,
	attempt_count, max_attempts, last_error, redistributed_from,
	sent_at, created_at, updated_at`

func (r *queueRepository) Create(ctx context.Context, item *model.QueueItem) error {
	query := `
		INSERT INTO queue_items (` + queueColumns + `)
		VALUES (
			:id, :message_id, :profile_id, :recipient, :content,
			:status, :priority, :scheduled_send_at,
			:attempt_count, :max_attempts, :last_error, :redistributed_from,
			:sent_at, :created_at, :updated_at
		)
	`
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt

	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("failed to create queue item: %w", err)
	}
	return nil
}

func (r *queueRepository) CreateBatch(ctx context.Context, items []*model.QueueItem) error {
	for _, item := range items {
		if err := r.Create(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *queueRepository) Get(ctx context.Context, id uuid.UUID) (*model.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_items WHERE id = $1`

	var item model.QueueItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return &item, nil
}

func (r *queueRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.QueueItem, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM queue_items
		WHERE status = $1 AND scheduled_send_at <= $2
		ORDER BY scheduled_send_at
		LIMIT $3
	`
	var items []*model.QueueItem
	err := r.db.SelectContext(ctx, &items, query, model.QueueStatusWaiting, now, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return items, err
}

func (r *queueRepository) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE queue_items
		SET status = $1, attempt_count = attempt_count + 1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, model.QueueStatusProcessing, time.Now(), id, model.QueueStatusWaiting)
	if err != nil {
		return false, fmt.Errorf("failed to mark queue item processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *queueRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE queue_items
		SET status = $1, sent_at = $2, last_error = NULL, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	if _, err := r.db.ExecContext(ctx, query, model.QueueStatusSent, at, id, model.QueueStatusProcessing); err != nil {
		return fmt.Errorf("failed to mark queue item sent: %w", err)
	}
	return nil
}

func (r *queueRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE queue_items
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	if _, err := r.db.ExecContext(ctx, query, model.QueueStatusFailed, reason, time.Now(), id, model.QueueStatusProcessing); err != nil {
		return fmt.Errorf("failed to mark queue item failed: %w", err)
	}
	return nil
}

func (r *queueRepository) Requeue(ctx context.Context, id uuid.UUID, at time.Time, reason string) error {
	query := `
		UPDATE queue_items
		SET status = $1, scheduled_send_at = $2, last_error = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	if _, err := r.db.ExecContext(ctx, query, model.QueueStatusWaiting, at, reason, time.Now(), id, model.QueueStatusProcessing); err != nil {
		return fmt.Errorf("failed to requeue queue item: %w", err)
	}
	return nil
}

// Cancel only succeeds while the item is still waiting; processing items run
// to completion and terminal items are immutable.
func (r *queueRepository) Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE queue_items
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, model.QueueStatusCancelled, reason, time.Now(), id, model.QueueStatusWaiting)
	if err != nil {
		return false, fmt.Errorf("failed to cancel queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *queueRepository) CancelWaitingByProfile(ctx context.Context, profileID uuid.UUID, reason string) (int64, error) {
	query := `
		UPDATE queue_items
		SET status = $1, last_error = $2, updated_at = $3
		WHERE profile_id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, model.QueueStatusCancelled, reason, time.Now(), profileID, model.QueueStatusWaiting)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade-cancel queue items: %w", err)
	}
	return res.RowsAffected()
}

func (r *queueRepository) CountWaitingByPackage(ctx context.Context, packageID uuid.UUID) (int, error) {
	return r.countByPackage(ctx, packageID, model.QueueStatusWaiting)
}

func (r *queueRepository) CountProcessingByPackage(ctx context.Context, packageID uuid.UUID) (int, error) {
	return r.countByPackage(ctx, packageID, model.QueueStatusProcessing)
}

func (r *queueRepository) countByPackage(ctx context.Context, packageID uuid.UUID, status model.QueueStatus) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM queue_items q
		JOIN profiles p ON p.id = q.profile_id
		WHERE p.package_id = $1 AND q.status = $2
	`
	var n int
	if err := r.db.GetContext(ctx, &n, query, packageID, status); err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return n, nil
}

func (r *queueRepository) PendingCountByProfile(ctx context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(profileIDs))
	for _, id := range profileIDs {
		out[id] = 0
	}
	if len(profileIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT profile_id, COUNT(*) AS n
		FROM queue_items
		WHERE profile_id IN (?) AND status = ?
		GROUP BY profile_id
	`, profileIDs, model.QueueStatusWaiting)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	rows := []struct {
		ProfileID uuid.UUID `db:"profile_id"`
		N         int       `db:"n"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to count pending by profile: %w", err)
	}
	for _, row := range rows {
		out[row.ProfileID] = row.N
	}
	return out, nil
}

func (r *queueRepository) LastScheduledForProfile(ctx context.Context, profileID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT MAX(scheduled_send_at)
		FROM queue_items
		WHERE profile_id = $1 AND status = $2
	`
	var t sql.NullTime
	if err := r.db.GetContext(ctx, &t, query, profileID, model.QueueStatusWaiting); err != nil {
		return nil, fmt.Errorf("failed to get last scheduled time: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func (r *queueRepository) LastScheduledForPackage(ctx context.Context, packageID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT MAX(q.scheduled_send_at)
		FROM queue_items q
		JOIN profiles p ON p.id = q.profile_id
		WHERE p.package_id = $1 AND q.status = $2
	`
	var t sql.NullTime
	if err := r.db.GetContext(ctx, &t, query, packageID, model.QueueStatusWaiting); err != nil {
		return nil, fmt.Errorf("failed to get last scheduled time for package: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func (r *queueRepository) NextDueForPackage(ctx context.Context, packageID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT MIN(q.scheduled_send_at)
		FROM queue_items q
		JOIN profiles p ON p.id = q.profile_id
		WHERE p.package_id = $1 AND q.status = $2
	`
	var t sql.NullTime
	if err := r.db.GetContext(ctx, &t, query, packageID, model.QueueStatusWaiting); err != nil {
		return nil, fmt.Errorf("failed to get next due time: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func (r *queueRepository) ListByPackage(ctx context.Context, packageID uuid.UUID, status model.QueueStatus, limit int) ([]*model.QueueItem, error) {
	query := `
		SELECT ` + qualifiedQueueColumns + `
		FROM queue_items q
		JOIN profiles p ON p.id = q.profile_id
		WHERE p.package_id = $1 AND q.status = $2
		ORDER BY q.scheduled_send_at
		LIMIT $3
	`
	var items []*model.QueueItem
	err := r.db.SelectContext(ctx, &items, query, packageID, status, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return items, err
}

const qualifiedQueueColumns = `
	q.id, q.message_id, q.profile_id, q.recipient, q.content,
	q.status, q.priority, q.scheduled_send_at,
	q.attempt_count, q.max_attempts, q.last_error, q.redistributed_from,
	q.sent_at, q.created_at, q.updated_at`
