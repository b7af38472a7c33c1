package distribution

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/pkg/logger"
)

const (
	routeCacheTTL     = 5 * time.Minute
	routeCacheCleanup = 10 * time.Minute
)

// Service runs the selection pipeline: eligibility, mode assignment, and
// sticky conversation routing for replies.
type Service struct {
	profileRepo repository.ProfileRepository
	ledgerRepo  repository.LedgerRepository
	queueRepo   repository.QueueRepository
	routeRepo   repository.RouteRepository

	routeCache *gocache.Cache
	rng        *rand.Rand
	logger     *logger.Logger
}

func NewService(
	profileRepo repository.ProfileRepository,
	ledgerRepo repository.LedgerRepository,
	queueRepo repository.QueueRepository,
	routeRepo repository.RouteRepository,
	rng *rand.Rand,
	log *logger.Logger,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		queueRepo:   queueRepo,
		routeRepo:   routeRepo,
		routeCache:  gocache.New(routeCacheTTL, routeCacheCleanup),
		rng:         rng,
		logger:      log.WithComponent("distribution"),
	}
}

// Distribute assigns each recipient of a proactive message to a profile.
// exclude removes specific profiles from consideration (redistribution path).
func (s *Service) Distribute(ctx context.Context, pkg *model.Package, recipients []string, exclude ...uuid.UUID) (Assignment, []string, error) {
	cands, err := s.candidates(ctx, pkg, exclude...)
	if err != nil {
		return nil, nil, err
	}

	assignment, overflow, err := Assign(pkg.DistributionMode, cands, recipients, s.rng)
	if err != nil {
		return nil, nil, err
	}

	if len(overflow) > 0 {
		s.logger.Warn("recipients exceed pool capacity",
			"package_id", pkg.ID.String(),
			"overflow", len(overflow),
		)
	}
	return assignment, overflow, nil
}

func (s *Service) candidates(ctx context.Context, pkg *model.Package, exclude ...uuid.UUID) ([]*Candidate, error) {
	profiles, err := s.profileRepo.ListByPackageAndStatus(ctx, pkg.ID, model.ProfileStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active profiles: %w", err)
	}

	excluded := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	kept := profiles[:0]
	for _, p := range profiles {
		if !excluded[p.ID] {
			kept = append(kept, p)
		}
	}
	profiles = kept

	if len(profiles) == 0 {
		return nil, ErrNoEligibleProfile
	}

	ids := make([]uuid.UUID, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}

	ledgers, err := s.ledgerRepo.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledgers: %w", err)
	}
	pending, err := s.queueRepo.PendingCountByProfile(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending counts: %w", err)
	}

	return BuildCandidates(pkg, profiles, ledgers, pending, time.Now()), nil
}

// ResolveReactive returns the profile a reply must leave from. Sticky routes
// win even while the profile is paused or cooling down; only a blocked
// profile forces reassignment. Limits never apply to replies.
func (s *Service) ResolveReactive(ctx context.Context, pkg *model.Package, customerAddress string) (*model.Profile, error) {
	if p := s.cachedRoute(pkg.ID, customerAddress); p != nil {
		return p, nil
	}

	route, err := s.routeRepo.Get(ctx, pkg.ID, customerAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation route: %w", err)
	}
	if route != nil {
		profile, err := s.profileRepo.Get(ctx, route.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("failed to load routed profile: %w", err)
		}
		if profile.Status != model.ProfileStatusBlocked {
			s.routeCache.Set(routeKey(pkg.ID, customerAddress), profile, routeCacheTTL)
			return profile, nil
		}
	}

	// No usable route: pick once via the configured mode, then pin it.
	assignment, _, err := s.Distribute(ctx, pkg, []string{customerAddress})
	if err != nil {
		return nil, err
	}
	var profileID uuid.UUID
	for id := range assignment {
		profileID = id
	}
	profile, err := s.profileRepo.Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load selected profile: %w", err)
	}
	if err := s.PinRoute(ctx, pkg.ID, customerAddress, profileID); err != nil {
		return nil, err
	}
	return profile, nil
}

// PinRoute records (package, customer) → profile and refreshes the cache.
func (s *Service) PinRoute(ctx context.Context, packageID uuid.UUID, customerAddress string, profileID uuid.UUID) error {
	route := &model.ConversationRoute{
		PackageID:         packageID,
		CustomerAddress:   customerAddress,
		ProfileID:         profileID,
		LastInteractionAt: time.Now(),
	}
	if err := s.routeRepo.Upsert(ctx, route); err != nil {
		return fmt.Errorf("failed to pin conversation route: %w", err)
	}
	s.routeCache.Delete(routeKey(packageID, customerAddress))
	return nil
}

func (s *Service) cachedRoute(packageID uuid.UUID, customerAddress string) *model.Profile {
	v, ok := s.routeCache.Get(routeKey(packageID, customerAddress))
	if !ok {
		return nil
	}
	profile, ok := v.(*model.Profile)
	if !ok || profile.Status == model.ProfileStatusBlocked {
		return nil
	}
	return profile
}

func routeKey(packageID uuid.UUID, customerAddress string) string {
	return packageID.String() + ":" + customerAddress
}
