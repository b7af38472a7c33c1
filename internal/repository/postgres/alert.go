package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

const alertColumns = `
	id, package_id, profile_id, type, severity, title, message,
	is_read, is_resolved, resolved_at, created_at`

func (r *alertRepository) Create(ctx context.Context, alert *model.Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (
			:id, :package_id, :profile_id, :type, :severity, :title, :message,
			:is_read, :is_resolved, :resolved_at, :created_at
		)
	`
	alert.ID = uuid.New()
	alert.CreatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) ExistsSince(ctx context.Context, alertType model.AlertType, profileID *uuid.UUID, severity model.AlertSeverity, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE type = $1
			  AND severity = $2
			  AND created_at >= $3
			  AND ((profile_id IS NULL AND $4::uuid IS NULL) OR profile_id = $4)
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, alertType, severity, since, profileID); err != nil {
		return false, fmt.Errorf("failed to check alert existence: %w", err)
	}
	return exists, nil
}

func (r *alertRepository) List(ctx context.Context, packageID *uuid.UUID, unreadOnly bool, limit int) ([]*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	args := []interface{}{}

	if packageID != nil {
		args = append(args, *packageID)
		query += fmt.Sprintf(` AND package_id = $%d`, len(args))
	}
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	var alerts []*model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return alerts, err
}

func (r *alertRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE alerts SET is_read = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	return nil
}
