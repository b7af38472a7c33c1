package worker

import (
	"context"
	"time"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/internal/service/blockdetect"
	"github.com/blockpreventer/bridge/internal/service/scoring"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/metrics"
)

// HealthMonitor is the periodic safety pass: block detection over every
// active profile, auto-resume of elapsed pauses, and a scoring refresh so
// weights and risk stay current between sends.
type HealthMonitor struct {
	packageRepo repository.PackageRepository
	profileRepo repository.ProfileRepository
	blockdetect *blockdetect.Service
	scoring     *scoring.Service
	interval    time.Duration
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewHealthMonitor(
	packageRepo repository.PackageRepository,
	profileRepo repository.ProfileRepository,
	bd *blockdetect.Service,
	scorer *scoring.Service,
	interval time.Duration,
	m *metrics.Metrics,
	log *logger.Logger,
) *HealthMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthMonitor{
		packageRepo: packageRepo,
		profileRepo: profileRepo,
		blockdetect: bd,
		scoring:     scorer,
		interval:    interval,
		metrics:     m,
		logger:      log.WithComponent("health_monitor"),
	}
}

func (w *HealthMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting health monitor", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down health monitor")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *HealthMonitor) runOnce(ctx context.Context) {
	resumed, err := w.blockdetect.ResumeDue(ctx)
	if err != nil {
		w.logger.Error(err, "auto-resume pass failed")
	} else if resumed > 0 {
		w.logger.Info("profiles auto-resumed", "count", resumed)
	}

	pkgs, err := w.packageRepo.ListActive(ctx)
	if err != nil {
		w.logger.Error(err, "failed to list active packages")
		return
	}

	statusCounts := map[model.ProfileStatus]int{}
	for _, pkg := range pkgs {
		if _, err := w.blockdetect.CheckPackage(ctx, pkg); err != nil {
			w.logger.Error(err, "block detection pass failed", "package_id", pkg.ID.String())
		}

		profiles, err := w.profileRepo.ListByPackage(ctx, pkg.ID)
		if err != nil {
			w.logger.Error(err, "failed to list profiles", "package_id", pkg.ID.String())
			continue
		}
		for _, p := range profiles {
			statusCounts[p.Status]++
			if p.Status != model.ProfileStatusActive {
				continue
			}
			if _, err := w.scoring.Assess(ctx, pkg, p); err != nil {
				w.logger.Error(err, "scoring refresh failed", "profile_id", p.ID.String())
			}
		}
	}

	if w.metrics != nil {
		for _, st := range []model.ProfileStatus{
			model.ProfileStatusActive,
			model.ProfileStatusPaused,
			model.ProfileStatusBlocked,
			model.ProfileStatusCooldown,
		} {
			w.metrics.ProfilesByStatus.WithLabelValues(string(st)).Set(float64(statusCounts[st]))
		}
	}
}
