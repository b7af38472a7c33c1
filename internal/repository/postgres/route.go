package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

func (r *routeRepository) Get(ctx context.Context, packageID uuid.UUID, customerAddress string) (*model.ConversationRoute, error) {
	query := `
		SELECT id, package_id, customer_address, profile_id, last_interaction_at, created_at
		FROM conversation_routes
		WHERE package_id = $1 AND customer_address = $2
	`
	var route model.ConversationRoute
	err := r.db.GetContext(ctx, &route, query, packageID, customerAddress)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation route: %w", err)
	}
	return &route, nil
}

// Upsert pins the route on first contact; later calls refresh the interaction
// time and reassign the profile (used when the pinned profile is blocked).
func (r *routeRepository) Upsert(ctx context.Context, route *model.ConversationRoute) error {
	query := `
		INSERT INTO conversation_routes (id, package_id, customer_address, profile_id, last_interaction_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (package_id, customer_address) DO UPDATE
		SET profile_id = EXCLUDED.profile_id,
		    last_interaction_at = EXCLUDED.last_interaction_at
	`
	if route.ID == uuid.Nil {
		route.ID = uuid.New()
	}
	if route.LastInteractionAt.IsZero() {
		route.LastInteractionAt = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, query,
		route.ID, route.PackageID, route.CustomerAddress, route.ProfileID, route.LastInteractionAt,
	); err != nil {
		return fmt.Errorf("failed to upsert conversation route: %w", err)
	}
	return nil
}
