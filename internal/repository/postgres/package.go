package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

const packageColumns = `
	id, name, description, status, distribution_mode,
	max_per_hour, max_per_3_hours, max_per_day,
	min_per_hour, min_per_3_hours, min_per_day,
	cap_per_hour, cap_per_3_hours, cap_per_day,
	max_concurrent_sends, freeze_duration_hours,
	rush_threshold, rush_multiplier, quiet_threshold, quiet_multiplier,
	auto_adjust_limits, auto_adjust_interval_mins,
	auto_pause_on_failures, auto_pause_failures, auto_pause_success_rate,
	alert_risk_threshold,
	retry_failed_sends, retry_max_attempts, retry_base_delay_sec,
	created_at, updated_at`

func (r *packageRepository) Create(ctx context.Context, pkg *model.Package) error {
	query := `
		INSERT INTO packages (` + packageColumns + `)
		VALUES (
			:id, :name, :description, :status, :distribution_mode,
			:max_per_hour, :max_per_3_hours, :max_per_day,
			:min_per_hour, :min_per_3_hours, :min_per_day,
			:cap_per_hour, :cap_per_3_hours, :cap_per_day,
			:max_concurrent_sends, :freeze_duration_hours,
			:rush_threshold, :rush_multiplier, :quiet_threshold, :quiet_multiplier,
			:auto_adjust_limits, :auto_adjust_interval_mins,
			:auto_pause_on_failures, :auto_pause_failures, :auto_pause_success_rate,
			:alert_risk_threshold,
			:retry_failed_sends, :retry_max_attempts, :retry_base_delay_sec,
			:created_at, :updated_at
		)
	`
	pkg.ID = uuid.New()
	pkg.CreatedAt = time.Now()
	pkg.UpdatedAt = pkg.CreatedAt

	if _, err := r.db.NamedExecContext(ctx, query, pkg); err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

func (r *packageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`

	var pkg model.Package
	if err := r.db.GetContext(ctx, &pkg, query, id); err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return &pkg, nil
}

func (r *packageRepository) Update(ctx context.Context, pkg *model.Package) error {
	query := `
		UPDATE packages SET
			name = :name,
			description = :description,
			status = :status,
			distribution_mode = :distribution_mode,
			max_per_hour = :max_per_hour,
			max_per_3_hours = :max_per_3_hours,
			max_per_day = :max_per_day,
			max_concurrent_sends = :max_concurrent_sends,
			freeze_duration_hours = :freeze_duration_hours,
			rush_threshold = :rush_threshold,
			rush_multiplier = :rush_multiplier,
			quiet_threshold = :quiet_threshold,
			quiet_multiplier = :quiet_multiplier,
			auto_adjust_limits = :auto_adjust_limits,
			auto_adjust_interval_mins = :auto_adjust_interval_mins,
			auto_pause_on_failures = :auto_pause_on_failures,
			auto_pause_failures = :auto_pause_failures,
			auto_pause_success_rate = :auto_pause_success_rate,
			alert_risk_threshold = :alert_risk_threshold,
			retry_failed_sends = :retry_failed_sends,
			retry_max_attempts = :retry_max_attempts,
			retry_base_delay_sec = :retry_base_delay_sec,
			updated_at = :updated_at
		WHERE id = :id
	`
	pkg.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, pkg); err != nil {
		return fmt.Errorf("failed to update package: %w", err)
	}
	return nil
}

// UpdateLimits writes only the three rate limits; used by the auto-adjust
// controller so it never races with operator edits of other policy fields.
func (r *packageRepository) UpdateLimits(ctx context.Context, id uuid.UUID, hourly, threeHour, daily int) error {
	query := `
		UPDATE packages
		SET max_per_hour = $1, max_per_3_hours = $2, max_per_day = $3, updated_at = $4
		WHERE id = $5
	`
	if _, err := r.db.ExecContext(ctx, query, hourly, threeHour, daily, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update package limits: %w", err)
	}
	return nil
}

func (r *packageRepository) List(ctx context.Context) ([]*model.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages ORDER BY created_at`

	var pkgs []*model.Package
	err := r.db.SelectContext(ctx, &pkgs, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return pkgs, err
}

func (r *packageRepository) ListActive(ctx context.Context) ([]*model.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE status = $1 ORDER BY created_at`

	var pkgs []*model.Package
	err := r.db.SelectContext(ctx, &pkgs, query, model.PackageStatusActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return pkgs, err
}
