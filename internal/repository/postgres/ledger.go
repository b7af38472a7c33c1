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

const ledgerColumns = `
	profile_id, sent_total,
	sent_hour, failed_hour, sent_3_hours, sent_day, failed_day, received_day,
	success_rate_24h, avg_response_time_ms,
	cooldown_seconds, cooldown_expires_at, cooldown_mode,
	hour_reset_at, hour3_reset_at, day_reset_at, updated_at`

func (r *ledgerRepository) Get(ctx context.Context, profileID uuid.UUID) (*model.ProfileLedger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM profile_ledgers WHERE profile_id = $1`

	var ledger model.ProfileLedger
	if err := r.db.GetContext(ctx, &ledger, query, profileID); err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return &ledger, nil
}

func (r *ledgerRepository) GetBatch(ctx context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]*model.ProfileLedger, error) {
	if len(profileIDs) == 0 {
		return map[uuid.UUID]*model.ProfileLedger{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+ledgerColumns+` FROM profile_ledgers WHERE profile_id IN (?)`, profileIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var ledgers []*model.ProfileLedger
	if err := r.db.SelectContext(ctx, &ledgers, query, args...); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to batch get ledgers: %w", err)
	}

	out := make(map[uuid.UUID]*model.ProfileLedger, len(ledgers))
	for _, l := range ledgers {
		out[l.ProfileID] = l
	}
	return out, nil
}

func (r *ledgerRepository) Ensure(ctx context.Context, profileID uuid.UUID, now time.Time) error {
	query := `
		INSERT INTO profile_ledgers (
			profile_id, success_rate_24h, cooldown_mode,
			hour_reset_at, hour3_reset_at, day_reset_at, updated_at
		) VALUES ($1, 100, $2, $3, $3, $3, $3)
		ON CONFLICT (profile_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, profileID, model.CooldownModeNormal, now); err != nil {
		return fmt.Errorf("failed to ensure ledger: %w", err)
	}
	return nil
}

// RecordOutcome is the single write path for completed sends. Counters are
// incremented in SQL rather than read-modify-written in Go, so a concurrent
// health-check pause can never clobber a send completion.
func (r *ledgerRepository) RecordOutcome(ctx context.Context, o *model.SendOutcome) error {
	failed := 0
	if !o.Success {
		failed = 1
	}
	query := `
		UPDATE profile_ledgers SET
			sent_total = sent_total + 1,
			sent_hour = sent_hour + 1,
			failed_hour = failed_hour + $1,
			sent_3_hours = sent_3_hours + 1,
			sent_day = sent_day + 1,
			failed_day = failed_day + $1,
			success_rate_24h = ROUND(
				(sent_day + 1 - failed_day - $1) * 100.0 / (sent_day + 1), 2
			),
			avg_response_time_ms = CASE
				WHEN $2 <= 0 THEN avg_response_time_ms
				WHEN avg_response_time_ms = 0 THEN $2
				ELSE (avg_response_time_ms + $2) / 2
			END,
			cooldown_seconds = $3,
			cooldown_expires_at = $4,
			cooldown_mode = $5,
			updated_at = $6
		WHERE profile_id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		failed,
		o.ResponseTimeMs,
		o.CooldownSeconds,
		o.CooldownExpiresAt,
		o.CooldownMode,
		o.At,
		o.ProfileID,
	)
	if err != nil {
		return fmt.Errorf("failed to record send outcome: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no ledger row for profile %s", o.ProfileID)
	}
	return nil
}

// SaveWindows persists counter resets. The guard on the stored markers makes
// the reset idempotent when two workers race on the same elapsed window.
func (r *ledgerRepository) SaveWindows(ctx context.Context, l *model.ProfileLedger) error {
	query := `
		UPDATE profile_ledgers SET
			sent_hour = $1, failed_hour = $2,
			sent_3_hours = $3,
			sent_day = $4, failed_day = $5, received_day = $6,
			hour_reset_at = $7, hour3_reset_at = $8, day_reset_at = $9,
			updated_at = $10
		WHERE profile_id = $11
		  AND hour_reset_at <= $7 AND hour3_reset_at <= $8 AND day_reset_at <= $9
	`
	_, err := r.db.ExecContext(ctx, query,
		l.SentHour, l.FailedHour,
		l.Sent3Hours,
		l.SentDay, l.FailedDay, l.ReceivedDay,
		l.HourResetAt, l.Hour3ResetAt, l.DayResetAt,
		time.Now(),
		l.ProfileID,
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger windows: %w", err)
	}
	return nil
}

func (r *ledgerRepository) RecordReceived(ctx context.Context, profileID uuid.UUID) error {
	query := `
		UPDATE profile_ledgers
		SET received_day = received_day + 1, updated_at = $1
		WHERE profile_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), profileID); err != nil {
		return fmt.Errorf("failed to record received message: %w", err)
	}
	return nil
}
