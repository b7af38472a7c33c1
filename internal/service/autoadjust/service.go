package autoadjust

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/internal/service/alert"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/metrics"
)

const (
	// The evaluation interval is hours-scale on purpose: adjusting more often
	// over-corrects because the day counters barely move between passes.
	increaseAbove = 98.0
	decreaseBelow = 85.0
	increaseBy    = 0.10
	decreaseBy    = 0.15

	pausedRatioThreshold = 0.30
	pausedExtraDecrease  = 0.20

	// Day counters below this are too noisy to steer on.
	minVolume = 20

	// Per-package evaluation interval when the package does not set one.
	defaultIntervalMins = 360
)

// Adjustment describes what one evaluation did to a package.
type Adjustment struct {
	PackageID   uuid.UUID `json:"package_id"`
	SuccessRate float64   `json:"success_rate"`
	PausedRatio float64   `json:"paused_ratio"`
	Changed     bool      `json:"changed"`
	Hourly      int       `json:"hourly"`
	ThreeHour   int       `json:"three_hour"`
	Daily       int       `json:"daily"`
}

// Service is the slow feedback loop that widens or narrows a package's rate
// limits from sustained delivery results.
type Service struct {
	packageRepo repository.PackageRepository
	profileRepo repository.ProfileRepository
	ledgerRepo  repository.LedgerRepository
	alerts      *alert.Service
	metrics     *metrics.Metrics
	logger      *logger.Logger

	mu      sync.Mutex
	lastRun map[uuid.UUID]time.Time
}

func NewService(
	packageRepo repository.PackageRepository,
	profileRepo repository.ProfileRepository,
	ledgerRepo repository.LedgerRepository,
	alerts *alert.Service,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		packageRepo: packageRepo,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		alerts:      alerts,
		metrics:     m,
		logger:      log.WithComponent("autoadjust"),
		lastRun:     make(map[uuid.UUID]time.Time),
	}
}

// RunAll evaluates every active package with auto-adjust enabled whose
// configured interval has elapsed. The cron tick runs far more often than any
// single package should be adjusted.
func (s *Service) RunAll(ctx context.Context) ([]*Adjustment, error) {
	pkgs, err := s.packageRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	now := time.Now()
	var out []*Adjustment
	for _, pkg := range pkgs {
		if !pkg.AutoAdjustLimits {
			continue
		}
		if !s.due(pkg, now) {
			continue
		}
		adj, err := s.Evaluate(ctx, pkg)
		if err != nil {
			s.logger.Error(err, "auto-adjust evaluation failed", "package_id", pkg.ID.String())
			continue
		}
		out = append(out, adj)
	}
	return out, nil
}

// Evaluate applies the adjustment rules to one package and persists any
// limit change.
func (s *Service) Evaluate(ctx context.Context, pkg *model.Package) (*Adjustment, error) {
	profiles, err := s.profileRepo.ListByPackage(ctx, pkg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	if len(profiles) == 0 {
		return &Adjustment{PackageID: pkg.ID}, nil
	}

	ids := make([]uuid.UUID, len(profiles))
	paused := 0
	for i, p := range profiles {
		ids[i] = p.ID
		if p.Status == model.ProfileStatusPaused || p.Status == model.ProfileStatusBlocked {
			paused++
		}
	}
	pausedRatio := float64(paused) / float64(len(profiles))

	ledgers, err := s.ledgerRepo.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledgers: %w", err)
	}
	sent, failed := 0, 0
	for _, l := range ledgers {
		sent += l.SentDay
		failed += l.FailedDay
	}

	adj := &Adjustment{
		PackageID:   pkg.ID,
		PausedRatio: pausedRatio,
		Hourly:      pkg.MaxPerHour,
		ThreeHour:   pkg.MaxPer3Hours,
		Daily:       pkg.MaxPerDay,
	}
	if sent < minVolume {
		return adj, nil
	}
	adj.SuccessRate = float64(sent-failed) * 100 / float64(sent)

	factor := 1.0
	direction := ""
	switch {
	case adj.SuccessRate > increaseAbove:
		factor = 1 + increaseBy
		direction = "increase"
	case adj.SuccessRate < decreaseBelow:
		factor = 1 - decreaseBy
		direction = "decrease"
	}
	if pausedRatio > pausedRatioThreshold {
		factor *= 1 - pausedExtraDecrease
		if direction == "" {
			direction = "decrease"
		}
	}
	if factor == 1.0 {
		return adj, nil
	}

	adj.Hourly = clamp(scale(pkg.MaxPerHour, factor), pkg.MinPerHour, pkg.CapPerHour)
	adj.ThreeHour = clamp(scale(pkg.MaxPer3Hours, factor), pkg.MinPer3Hours, pkg.CapPer3Hours)
	adj.Daily = clamp(scale(pkg.MaxPerDay, factor), pkg.MinPerDay, pkg.CapPerDay)

	if adj.Hourly == pkg.MaxPerHour && adj.ThreeHour == pkg.MaxPer3Hours && adj.Daily == pkg.MaxPerDay {
		return adj, nil
	}
	adj.Changed = true

	if err := s.packageRepo.UpdateLimits(ctx, pkg.ID, adj.Hourly, adj.ThreeHour, adj.Daily); err != nil {
		return nil, fmt.Errorf("failed to persist adjusted limits: %w", err)
	}
	if s.metrics != nil {
		s.metrics.LimitAdjustments.WithLabelValues(direction).Inc()
	}
	s.logger.Info("package limits adjusted",
		"package_id", pkg.ID.String(),
		"direction", direction,
		"success_rate", adj.SuccessRate,
		"hourly", adj.Hourly,
		"daily", adj.Daily,
	)

	pkgID := pkg.ID
	if _, err := s.alerts.Raise(ctx, &model.Alert{
		PackageID: &pkgID,
		Type:      model.AlertTypeLimitsAdjusted,
		Severity:  model.AlertSeverityInfo,
		Title:     "Rate limits adjusted: " + pkg.Name,
		Message: fmt.Sprintf("Limits moved to %d/h, %d/3h, %d/day (success rate %.1f%%, paused ratio %.0f%%).",
			adj.Hourly, adj.ThreeHour, adj.Daily, adj.SuccessRate, pausedRatio*100),
	}); err != nil {
		s.logger.Error(err, "failed to raise adjustment alert")
	}

	pkg.MaxPerHour = adj.Hourly
	pkg.MaxPer3Hours = adj.ThreeHour
	pkg.MaxPerDay = adj.Daily
	return adj, nil
}

// due marks the package as evaluated when its interval has elapsed; the zero
// interval falls back to six hours.
func (s *Service) due(pkg *model.Package, now time.Time) bool {
	interval := pkg.AutoAdjustIntervalMins
	if interval <= 0 {
		interval = defaultIntervalMins
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		s.lastRun = make(map[uuid.UUID]time.Time)
	}
	if last, ok := s.lastRun[pkg.ID]; ok && now.Sub(last) < time.Duration(interval)*time.Minute {
		return false
	}
	s.lastRun[pkg.ID] = now
	return true
}

func scale(v int, factor float64) int {
	scaled := int(float64(v) * factor)
	if scaled == v {
		// Integer truncation must not stall small limits.
		if factor > 1 {
			scaled = v + 1
		} else if factor < 1 {
			scaled = v - 1
		}
	}
	return scaled
}

func clamp(v, lo, hi int) int {
	if lo > 0 && v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	if v < 1 {
		return 1
	}
	return v
}
