package blockdetect

import (
	"context"
	"fmt"
	"time"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/internal/service/alert"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/metrics"
)

// Result reports what one check decided for a profile.
type Result struct {
	ProfileID  string      `json:"profile_id"`
	Indicators []Indicator `json:"indicators"`
	Severity   Severity    `json:"severity"`
	Action     string      `json:"action"` // none | auto_pause | alert_only
}

// Service loads block evidence, evaluates it, and applies policy: hard pause
// with cascade-cancel, or a soft warning when the package disables pausing.
type Service struct {
	profileRepo  repository.ProfileRepository
	ledgerRepo   repository.LedgerRepository
	deliveryRepo repository.DeliveryRepository
	queueRepo    repository.QueueRepository
	alerts       *alert.Service
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

func NewService(
	profileRepo repository.ProfileRepository,
	ledgerRepo repository.LedgerRepository,
	deliveryRepo repository.DeliveryRepository,
	queueRepo repository.QueueRepository,
	alerts *alert.Service,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		profileRepo:  profileRepo,
		ledgerRepo:   ledgerRepo,
		deliveryRepo: deliveryRepo,
		queueRepo:    queueRepo,
		alerts:       alerts,
		metrics:      m,
		logger:       log.WithComponent("blockdetect"),
	}
}

// CheckProfile evaluates one profile and applies the configured action.
func (s *Service) CheckProfile(ctx context.Context, pkg *model.Package, profile *model.Profile) (*Result, error) {
	snap, err := s.snapshot(ctx, profile)
	if err != nil {
		return nil, err
	}

	ev := Evaluate(*snap, pkg)
	res := &Result{
		ProfileID:  profile.ID.String(),
		Indicators: ev.Indicators,
		Severity:   ev.Severity,
		Action:     "none",
	}

	switch {
	case ev.Severity == SeverityCritical && pkg.AutoPauseOnFailures:
		res.Action = "auto_pause"
		if err := s.Pause(ctx, pkg, profile, ev); err != nil {
			return nil, err
		}
	case ev.Severity == SeverityCritical || ev.Severity == SeverityWarning:
		// Soft-warning path: same trigger, alert instead of a state change.
		res.Action = "alert_only"
		if err := s.warn(ctx, profile, ev); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		for _, ind := range ev.Indicators {
			s.metrics.BlocksDetected.WithLabelValues(ind.Type).Inc()
		}
	}
	return res, nil
}

// CheckPackage runs the scheduled pass over every active profile.
func (s *Service) CheckPackage(ctx context.Context, pkg *model.Package) ([]*Result, error) {
	profiles, err := s.profileRepo.ListByPackageAndStatus(ctx, pkg.ID, model.ProfileStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	var results []*Result
	for _, p := range profiles {
		res, err := s.CheckProfile(ctx, pkg, p)
		if err != nil {
			s.logger.Error(err, "profile block check failed", "profile_id", p.ID.String())
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// Pause executes the hard-pause path: compare-and-set the status so a racing
// check pauses at most once, cascade-cancel waiting work, alert.
func (s *Service) Pause(ctx context.Context, pkg *model.Package, profile *model.Profile, ev Evaluation) error {
	now := time.Now()
	freeze := time.Duration(pkg.FreezeDurationHours) * time.Hour
	if freeze <= 0 {
		freeze = 2 * time.Hour
	}
	resumeAt := now.Add(freeze)
	reason := "auto-paused: " + summary(ev.Indicators)

	moved, err := s.profileRepo.SetStatus(ctx, profile.ID, model.ProfileStatusActive, model.ProfileStatusPaused, &reason, &resumeAt)
	if err != nil {
		return fmt.Errorf("failed to pause profile: %w", err)
	}
	if !moved {
		// Another flow already changed the status; nothing left to do.
		return nil
	}
	if err := s.profileRepo.MarkBlocked(ctx, profile.ID, now); err != nil {
		return fmt.Errorf("failed to record block time: %w", err)
	}

	cancelled, err := s.CascadeCancel(ctx, profile)
	if err != nil {
		return err
	}

	s.logger.Warn("profile auto-paused",
		"profile_id", profile.ID.String(),
		"reason", reason,
		"cancelled_items", cancelled,
		"resume_at", resumeAt.Format(time.RFC3339),
	)

	profileID := profile.ID
	_, err = s.alerts.Raise(ctx, &model.Alert{
		PackageID: &profile.PackageID,
		ProfileID: &profileID,
		Type:      model.AlertTypeBlockDetected,
		Severity:  model.AlertSeverityCritical,
		Title:     "Profile auto-paused: " + profile.Name,
		Message: fmt.Sprintf("Block indicators detected: %s. Profile paused until %s.",
			summary(ev.Indicators), resumeAt.Format("15:04 MST")),
	})
	return err
}

// CascadeCancel is the explicit named operation that clears a paused
// profile's waiting queue items.
func (s *Service) CascadeCancel(ctx context.Context, profile *model.Profile) (int64, error) {
	n, err := s.queueRepo.CancelWaitingByProfile(ctx, profile.ID, "profile paused by block detection")
	if err != nil {
		return 0, fmt.Errorf("failed to cascade-cancel queue items: %w", err)
	}
	return n, nil
}

func (s *Service) warn(ctx context.Context, profile *model.Profile, ev Evaluation) error {
	profileID := profile.ID
	_, err := s.alerts.Raise(ctx, &model.Alert{
		PackageID: &profile.PackageID,
		ProfileID: &profileID,
		Type:      model.AlertTypeBlockWarning,
		Severity:  model.AlertSeverityWarning,
		Title:     "Block risk warning: " + profile.Name,
		Message:   "Potential block indicators: " + summary(ev.Indicators) + ". Monitor closely.",
	})
	return err
}

// ResumeDue restores every paused profile whose resume time has elapsed.
func (s *Service) ResumeDue(ctx context.Context) (int, error) {
	profiles, err := s.profileRepo.ListDueForResume(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to list profiles due for resume: %w", err)
	}

	resumed := 0
	for _, p := range profiles {
		moved, err := s.profileRepo.SetStatus(ctx, p.ID, model.ProfileStatusPaused, model.ProfileStatusActive, nil, nil)
		if err != nil {
			s.logger.Error(err, "failed to resume profile", "profile_id", p.ID.String())
			continue
		}
		if !moved {
			continue
		}
		resumed++
		if s.metrics != nil {
			s.metrics.ProfilesResumed.Inc()
		}
		s.logger.Info("profile auto-resumed", "profile_id", p.ID.String())

		profileID := p.ID
		if _, err := s.alerts.Raise(ctx, &model.Alert{
			PackageID: &p.PackageID,
			ProfileID: &profileID,
			Type:      model.AlertTypeProfileResumed,
			Severity:  model.AlertSeverityInfo,
			Title:     "Profile auto-resumed: " + p.Name,
			Message:   "Profile " + p.Name + " returned to rotation after its pause window.",
		}); err != nil {
			s.logger.Error(err, "failed to raise resume alert")
		}
	}
	return resumed, nil
}

func (s *Service) snapshot(ctx context.Context, profile *model.Profile) (*Snapshot, error) {
	ledger, err := s.ledgerRepo.Get(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	recent, err := s.deliveryRepo.Recent(ctx, profile.ID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent deliveries: %w", err)
	}
	consecutive := 0
	for _, d := range recent {
		if d.Status != model.DeliveryStatusFailed {
			break
		}
		consecutive++
	}

	errs, err := s.deliveryRepo.RecentErrors(ctx, profile.ID, time.Now().Add(-time.Hour), 20)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent errors: %w", err)
	}

	total, failed, err := s.deliveryRepo.CountSince(ctx, profile.ID, time.Now().Add(-30*time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to load 30-minute window: %w", err)
	}

	return &Snapshot{
		ConsecutiveFailures: consecutive,
		SuccessRate24h:      ledger.SuccessRate24h,
		SentDay:             ledger.SentDay,
		RecentErrors:        errs,
		Recent30MinTotal:    total,
		Recent30MinFailed:   failed,
	}, nil
}
