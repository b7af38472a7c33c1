package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/internal/service/autoadjust"
	"github.com/blockpreventer/bridge/internal/service/message"
	"github.com/blockpreventer/bridge/pkg/logger"
)

// Scheduler owns the cron-style jobs: scheduled-message promotion, the
// counter-window sweep, and the slow auto-adjust loop.
type Scheduler struct {
	cron        *cron.Cron
	packageRepo repository.PackageRepository
	profileRepo repository.ProfileRepository
	ledgerRepo  repository.LedgerRepository
	messages    *message.Service
	autoadjust  *autoadjust.Service
	logger      *logger.Logger
}

func NewScheduler(
	packageRepo repository.PackageRepository,
	profileRepo repository.ProfileRepository,
	ledgerRepo repository.LedgerRepository,
	messages *message.Service,
	adjuster *autoadjust.Service,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		packageRepo: packageRepo,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		messages:    messages,
		autoadjust:  adjuster,
		logger:      log.WithComponent("scheduler"),
	}
}

// Start registers the jobs and runs the cron loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		fn   func(context.Context)
	}{
		{"@every 1m", "promote_scheduled", s.promoteScheduled},
		{"@every 5m", "window_sweep", s.windowSweep},
		// Each package paces itself via its auto_adjust_interval_mins; the
		// tick only has to be frequent enough to notice a due package.
		{"@every 10m", "auto_adjust", s.autoAdjustPass},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { job.fn(ctx) }); err != nil {
			return fmt.Errorf("failed to register %s job: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(jobs))

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) promoteScheduled(ctx context.Context) {
	promoted, err := s.messages.PromoteScheduled(ctx)
	if err != nil {
		s.logger.Error(err, "scheduled-message promotion failed")
		return
	}
	if promoted > 0 {
		s.logger.Info("scheduled messages promoted", "count", promoted)
	}
}

// windowSweep resets elapsed counter windows for idle profiles. Profiles that
// send regularly get their windows reset inline on the send path; the sweep
// covers the ones that went quiet.
func (s *Scheduler) windowSweep(ctx context.Context) {
	pkgs, err := s.packageRepo.ListActive(ctx)
	if err != nil {
		s.logger.Error(err, "failed to list packages for window sweep")
		return
	}

	now := time.Now()
	swept := 0
	for _, pkg := range pkgs {
		profiles, err := s.profileRepo.ListByPackage(ctx, pkg.ID)
		if err != nil {
			s.logger.Error(err, "failed to list profiles for window sweep", "package_id", pkg.ID.String())
			continue
		}
		for _, p := range profiles {
			ledger, err := s.ledgerRepo.Get(ctx, p.ID)
			if err != nil {
				s.logger.Error(err, "failed to load ledger for window sweep", "profile_id", p.ID.String())
				continue
			}
			if !ledger.ApplyResets(now) {
				continue
			}
			if err := s.ledgerRepo.SaveWindows(ctx, ledger); err != nil {
				s.logger.Error(err, "failed to persist window reset", "profile_id", p.ID.String())
				continue
			}
			swept++
		}
	}
	if swept > 0 {
		s.logger.Debug("counter windows reset", "profiles", swept)
	}
}

func (s *Scheduler) autoAdjustPass(ctx context.Context) {
	adjustments, err := s.autoadjust.RunAll(ctx)
	if err != nil {
		s.logger.Error(err, "auto-adjust pass failed")
		return
	}
	changed := 0
	for _, a := range adjustments {
		if a.Changed {
			changed++
		}
	}
	s.logger.Info("auto-adjust pass complete", "evaluated", len(adjustments), "changed", changed)
}
