package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

const messageColumns = `
	id, package_id, mode, content, recipients, status, scheduled_at,
	total_recipients, processed_count, success_count, failed_count,
	created_at, updated_at`

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (
			:id, :package_id, :mode, :content, :recipients, :status, :scheduled_at,
			:total_recipients, :processed_count, :success_count, :failed_count,
			:created_at, :updated_at
		)
	`
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt

	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	var msg model.Message
	if err := r.db.GetContext(ctx, &msg, query, id); err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

func (r *messageRepository) List(ctx context.Context, packageID uuid.UUID, status model.MessageStatus, limit, offset int) ([]*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE package_id = $1`
	args := []interface{}{packageID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	var msgs []*model.Message
	err := r.db.SelectContext(ctx, &msgs, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msgs, err
}

func (r *messageRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.MessageStatus) error {
	query := `UPDATE messages SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set message status: %w", err)
	}
	return nil
}

// BumpCounts folds one recipient outcome into the message and flips it to
// completed once every recipient is accounted for, all in one statement.
func (r *messageRepository) BumpCounts(ctx context.Context, id uuid.UUID, success bool) error {
	succ, fail := 0, 1
	if success {
		succ, fail = 1, 0
	}
	query := `
		UPDATE messages SET
			processed_count = processed_count + 1,
			success_count = success_count + $1,
			failed_count = failed_count + $2,
			status = CASE
				WHEN processed_count + 1 >= total_recipients THEN 'completed'
				ELSE status
			END,
			updated_at = $3
		WHERE id = $4
	`
	if _, err := r.db.ExecContext(ctx, query, succ, fail, time.Now(), id); err != nil {
		return fmt.Errorf("failed to bump message counts: %w", err)
	}
	return nil
}

func (r *messageRepository) ListScheduledDue(ctx context.Context, now time.Time, limit int) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3
	`
	var msgs []*model.Message
	err := r.db.SelectContext(ctx, &msgs, query, model.MessageStatusScheduled, now, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msgs, err
}
