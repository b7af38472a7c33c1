package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/pkg/logger"
)

// Assessment bundles everything a health check produces for one profile.
type Assessment struct {
	ProfileID       string          `json:"profile_id"`
	Health          int             `json:"health"`
	Risk            RiskAssessment  `json:"risk"`
	Weight          WeightBreakdown `json:"weight"`
	Recommendations []string        `json:"recommendations"`
	CheckedAt       time.Time       `json:"checked_at"`
}

// Service snapshots a profile's recent activity and runs the pure scorers.
type Service struct {
	profileRepo  repository.ProfileRepository
	ledgerRepo   repository.LedgerRepository
	deliveryRepo repository.DeliveryRepository
	logger       *logger.Logger
}

func NewService(profileRepo repository.ProfileRepository, ledgerRepo repository.LedgerRepository, deliveryRepo repository.DeliveryRepository, log *logger.Logger) *Service {
	return &Service{
		profileRepo:  profileRepo,
		ledgerRepo:   ledgerRepo,
		deliveryRepo: deliveryRepo,
		logger:       log.WithComponent("scoring"),
	}
}

// Assess recomputes health, risk and weight for a profile and persists the
// scores. The scores on the profile row are a cache; this is the write path.
func (s *Service) Assess(ctx context.Context, pkg *model.Package, profile *model.Profile) (*Assessment, error) {
	now := time.Now()

	ledger, err := s.ledgerRepo.Get(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	sent5m, err := s.deliveryRepo.CountSentSince(ctx, profile.ID, now.Add(-5*time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to load burst window: %w", err)
	}

	maxRecipients, err := s.deliveryRepo.MaxRecipientsPerMessage(ctx, profile.ID, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load duplicate-content window: %w", err)
	}

	recent, err := s.deliveryRepo.Recent(ctx, profile.ID, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent deliveries: %w", err)
	}

	risk := ScoreRisk(RiskSnapshot{
		SentHour:                ledger.SentHour,
		Sent3Hours:              ledger.Sent3Hours,
		SentDay:                 ledger.SentDay,
		FailedDay:               ledger.FailedDay,
		ReceivedDay:             ledger.ReceivedDay,
		SentLast5Min:            sent5m,
		MaxRecipientsPerMessage: maxRecipients,
		RapidGapCount:           rapidGaps(recent, now),
		HourlyLimit:             pkg.EffectiveHourly(profile),
		ThreeHour:               pkg.Effective3Hours(profile),
		DailyLimit:              pkg.EffectiveDaily(profile),
	})

	health := ScoreHealth(HealthSnapshot{
		SuccessRate24h: ledger.SuccessRate24h,
		SentDay:        ledger.SentDay,
		LastBlockAt:    profile.LastBlockAt,
		Paused:         profile.Status == model.ProfileStatusPaused,
		Now:            now,
	})

	weight := ScoreWeight(WeightSnapshot{
		AccountAgeMonths: profile.AccountAgeMonths,
		ManualPriority:   profile.ManualPriority,
		SentDay:          ledger.SentDay,
		FailedDay:        ledger.FailedDay,
		SuccessRate24h:   ledger.SuccessRate24h,
		LastBlockAt:      profile.LastBlockAt,
		Now:              now,
	})

	if err := s.profileRepo.SetScores(ctx, profile.ID, health, risk.Overall, weight.Total); err != nil {
		return nil, fmt.Errorf("failed to persist scores: %w", err)
	}
	profile.HealthScore = health
	profile.RiskScore = risk.Overall
	profile.WeightScore = weight.Total

	var recs []string
	for _, p := range risk.Patterns {
		recs = append(recs, p.Recommendation)
	}

	return &Assessment{
		ProfileID:       profile.ID.String(),
		Health:          health,
		Risk:            risk,
		Weight:          weight,
		Recommendations: recs,
		CheckedAt:       now,
	}, nil
}

// rapidGaps counts consecutive sends inside the trailing 10 minutes that
// landed within 30 seconds of each other.
func rapidGaps(recent []*model.DeliveryLog, now time.Time) int {
	cutoff := now.Add(-10 * time.Minute)
	var times []time.Time
	for _, d := range recent {
		if d.SentAt != nil && d.SentAt.After(cutoff) {
			times = append(times, *d.SentAt)
		}
	}
	// Recent is newest-first; walk pairs directly.
	count := 0
	for i := 1; i < len(times); i++ {
		if times[i-1].Sub(times[i]) < 30*time.Second {
			count++
		}
	}
	return count
}
