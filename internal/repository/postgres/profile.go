package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

const profileColumns = `
	id, package_id, name, address, provider_uuid, provider_token,
	status, pause_reason, resume_at,
	manual_priority, account_age_months, weight_score, health_score, risk_score,
	max_per_hour, max_per_3_hours, max_per_day,
	last_send_at, last_block_at, last_health_check_at,
	created_at, updated_at`

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES (
			:id, :package_id, :name, :address, :provider_uuid, :provider_token,
			:status, :pause_reason, :resume_at,
			:manual_priority, :account_age_months, :weight_score, :health_score, :risk_score,
			:max_per_hour, :max_per_3_hours, :max_per_day,
			:last_send_at, :last_block_at, :last_health_check_at,
			:created_at, :updated_at
		)
	`
	profile.ID = uuid.New()
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = profile.CreatedAt

	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *profileRepository) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	var profile model.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *model.Profile) error {
	query := `
		UPDATE profiles SET
			name = :name,
			address = :address,
			provider_uuid = :provider_uuid,
			provider_token = :provider_token,
			manual_priority = :manual_priority,
			account_age_months = :account_age_months,
			max_per_hour = :max_per_hour,
			max_per_3_hours = :max_per_3_hours,
			max_per_day = :max_per_day,
			updated_at = :updated_at
		WHERE id = :id
	`
	profile.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (r *profileRepository) ListByPackage(ctx context.Context, packageID uuid.UUID) ([]*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE package_id = $1 ORDER BY created_at`

	var profiles []*model.Profile
	err := r.db.SelectContext(ctx, &profiles, query, packageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return profiles, err
}

func (r *profileRepository) ListByPackageAndStatus(ctx context.Context, packageID uuid.UUID, status model.ProfileStatus) ([]*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE package_id = $1 AND status = $2 ORDER BY created_at`

	var profiles []*model.Profile
	err := r.db.SelectContext(ctx, &profiles, query, packageID, status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return profiles, err
}

func (r *profileRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to model.ProfileStatus, reason *string, resumeAt *time.Time) (bool, error) {
	query := `
		UPDATE profiles
		SET status = $1, pause_reason = $2, resume_at = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, to, reason, resumeAt, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to set profile status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *profileRepository) SetScores(ctx context.Context, id uuid.UUID, health, risk int, weight float64) error {
	query := `
		UPDATE profiles
		SET health_score = $1, risk_score = $2, weight_score = $3,
		    last_health_check_at = $4, updated_at = $4
		WHERE id = $5
	`
	if _, err := r.db.ExecContext(ctx, query, health, risk, weight, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set profile scores: %w", err)
	}
	return nil
}

func (r *profileRepository) TouchLastSend(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE profiles SET last_send_at = $1, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to touch last send: %w", err)
	}
	return nil
}

func (r *profileRepository) MarkBlocked(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE profiles SET last_block_at = $1, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to mark profile blocked: %w", err)
	}
	return nil
}

func (r *profileRepository) ListDueForResume(ctx context.Context, now time.Time) ([]*model.Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE status = $1 AND resume_at IS NOT NULL AND resume_at <= $2
	`
	var profiles []*model.Profile
	err := r.db.SelectContext(ctx, &profiles, query, model.ProfileStatusPaused, now)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return profiles, err
}
