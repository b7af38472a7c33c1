package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/pkg/logger"
)

// Service wraps the pure calculator with the data loads it needs: the
// package-wide waiting queue depth and the profile's trailing 2-hour volume.
type Service struct {
	calc         *Calculator
	queueRepo    repository.QueueRepository
	deliveryRepo repository.DeliveryRepository
	logger       *logger.Logger
}

func NewService(calc *Calculator, queueRepo repository.QueueRepository, deliveryRepo repository.DeliveryRepository, log *logger.Logger) *Service {
	return &Service{
		calc:         calc,
		queueRepo:    queueRepo,
		deliveryRepo: deliveryRepo,
		logger:       log.WithComponent("cooldown"),
	}
}

// ForProfile computes the cooldown that applies after the profile's next
// completed send.
func (s *Service) ForProfile(ctx context.Context, pkg *model.Package, profile *model.Profile) (Result, error) {
	depth, err := s.queueRepo.CountWaitingByPackage(ctx, pkg.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load queue depth: %w", err)
	}

	sent2h, err := s.deliveryRepo.CountSentSince(ctx, profile.ID, time.Now().Add(-2*time.Hour))
	if err != nil {
		return Result{}, fmt.Errorf("failed to load 2h send count: %w", err)
	}

	res := s.calc.Compute(Input{
		DailyLimit:          pkg.EffectiveDaily(profile),
		HourlyLimit:         pkg.EffectiveHourly(profile),
		FreezeDurationHours: pkg.FreezeDurationHours,
		QueueDepth:          depth,
		RushThreshold:       pkg.RushThreshold,
		RushMultiplier:      pkg.RushMultiplier,
		QuietThreshold:      pkg.QuietThreshold,
		QuietMultiplier:     pkg.QuietMultiplier,
		SentLast2h:          sent2h,
		RiskScore:           profile.RiskScore,
	})

	s.logger.Debug("cooldown computed",
		"profile_id", profile.ID.String(),
		"seconds", res.Seconds,
		"mode", string(res.Mode),
	)
	return res, nil
}

// Outcome assembles the atomic ledger write for a completed send: counters
// plus the freshly computed cooldown land together.
func (s *Service) Outcome(profileID uuid.UUID, success bool, responseTimeMs int, res Result, now time.Time) *model.SendOutcome {
	return &model.SendOutcome{
		ProfileID:         profileID,
		Success:           success,
		At:                now,
		ResponseTimeMs:    responseTimeMs,
		CooldownSeconds:   res.Seconds,
		CooldownMode:      res.Mode,
		CooldownExpiresAt: now.Add(time.Duration(res.Seconds) * time.Second),
	}
}
