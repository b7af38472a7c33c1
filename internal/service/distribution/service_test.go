package distribution

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository/fake"
	"github.com/blockpreventer/bridge/pkg/logger"
)

type routeHarness struct {
	profiles *fake.ProfileRepo
	ledgers  *fake.LedgerRepo
	queue    *fake.QueueRepo
	routes   *fake.RouteRepo
	svc      *Service
}

func newRouteHarness() *routeHarness {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	h := &routeHarness{
		profiles: fake.NewProfileRepo(),
		ledgers:  fake.NewLedgerRepo(),
		queue:    fake.NewQueueRepo(),
		routes:   fake.NewRouteRepo(),
	}
	h.svc = NewService(h.profiles, h.ledgers, h.queue, h.routes, rand.New(rand.NewSource(1)), log)
	return h
}

func routePkg() *model.Package {
	pkg := &model.Package{
		Name:             "pool-a",
		Status:           model.PackageStatusActive,
		DistributionMode: model.DistributionRoundRobin,
		MaxPerHour:       10,
		MaxPer3Hours:     25,
		MaxPerDay:        60,
	}
	pkg.ID = uuid.New()
	return pkg
}

func (h *routeHarness) seedProfile(pkg *model.Package, name string, status model.ProfileStatus) *model.Profile {
	p := &model.Profile{PackageID: pkg.ID, Name: name, Address: name + "@pool", Status: status, HealthScore: 100, WeightScore: 1}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().Add(-time.Hour)
	h.profiles.Profiles[p.ID] = p
	return p
}

func (h *routeHarness) pin(pkg *model.Package, addr string, p *model.Profile) {
	h.routes.Routes[pkg.ID.String()+":"+addr] = &model.ConversationRoute{
		ID:                uuid.New(),
		PackageID:         pkg.ID,
		CustomerAddress:   addr,
		ProfileID:         p.ID,
		LastInteractionAt: time.Now(),
	}
}

func TestResolveReactiveIgnoresPacingAndCaps(t *testing.T) {
	h := newRouteHarness()
	pkg := routePkg()

	// The routed profile is paused, cooling down, and out of daily capacity.
	routed := h.seedProfile(pkg, "alpha", model.ProfileStatusPaused)
	expires := time.Now().Add(time.Hour)
	h.ledgers.Ledgers[routed.ID] = &model.ProfileLedger{
		ProfileID:         routed.ID,
		SentDay:           pkg.MaxPerDay,
		CooldownExpiresAt: &expires,
	}
	h.pin(pkg, "+15550100", routed)

	got, err := h.svc.ResolveReactive(context.Background(), pkg, "+15550100")
	require.NoError(t, err)
	assert.Equal(t, routed.ID, got.ID, "replies must follow the sticky route regardless of limits")
}

func TestResolveReactiveReassignsOnlyWhenBlocked(t *testing.T) {
	h := newRouteHarness()
	pkg := routePkg()

	blocked := h.seedProfile(pkg, "alpha", model.ProfileStatusBlocked)
	fallback := h.seedProfile(pkg, "beta", model.ProfileStatusActive)
	h.pin(pkg, "+15550101", blocked)

	got, err := h.svc.ResolveReactive(context.Background(), pkg, "+15550101")
	require.NoError(t, err)
	assert.Equal(t, fallback.ID, got.ID)

	// The new assignment is pinned for the next reply.
	route, err := h.routes.Get(context.Background(), pkg.ID, "+15550101")
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, fallback.ID, route.ProfileID)
}

func TestDistributeSurfacesSentinelForEmptyPool(t *testing.T) {
	h := newRouteHarness()
	pkg := routePkg()
	h.seedProfile(pkg, "alpha", model.ProfileStatusPaused)

	_, _, err := h.svc.Distribute(context.Background(), pkg, []string{"+15550102"})
	assert.True(t, errors.Is(err, ErrNoEligibleProfile))
}
