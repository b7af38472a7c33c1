package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/internal/sender"
	"github.com/blockpreventer/bridge/internal/service/blockdetect"
	"github.com/blockpreventer/bridge/internal/service/cooldown"
	"github.com/blockpreventer/bridge/internal/service/distribution"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/metrics"
)

const (
	defaultBatchSize   = 100
	defaultSendTimeout = 45 * time.Second

	// A failure streak this long on one item is worth a block check even when
	// the error text itself looks benign.
	blockCheckMinAttempts = 3
)

// Service is the scheduling loop: it pulls due queue items, re-checks
// eligibility, drives the external send, and records every outcome.
type Service struct {
	queueRepo    repository.QueueRepository
	profileRepo  repository.ProfileRepository
	packageRepo  repository.PackageRepository
	ledgerRepo   repository.LedgerRepository
	messageRepo  repository.MessageRepository
	deliveryRepo repository.DeliveryRepository

	cooldowns    *cooldown.Service
	distribution *distribution.Service
	detector     *blockdetect.Service
	sender       sender.Sender

	profileLocks keyedMutex
	semaphores   packageSemaphores

	sendTimeout time.Duration
	batchSize   int
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewService(
	queueRepo repository.QueueRepository,
	profileRepo repository.ProfileRepository,
	packageRepo repository.PackageRepository,
	ledgerRepo repository.LedgerRepository,
	messageRepo repository.MessageRepository,
	deliveryRepo repository.DeliveryRepository,
	cooldowns *cooldown.Service,
	dist *distribution.Service,
	detector *blockdetect.Service,
	snd sender.Sender,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		queueRepo:    queueRepo,
		profileRepo:  profileRepo,
		packageRepo:  packageRepo,
		ledgerRepo:   ledgerRepo,
		messageRepo:  messageRepo,
		deliveryRepo: deliveryRepo,
		cooldowns:    cooldowns,
		distribution: dist,
		detector:     detector,
		sender:       snd,
		sendTimeout:  defaultSendTimeout,
		batchSize:    defaultBatchSize,
		metrics:      m,
		logger:       log.WithComponent("queue"),
	}
}

// Tick processes one scheduling pass: due items grouped by profile, profiles
// handled concurrently up to each package's cap, items per profile in order.
func (s *Service) Tick(ctx context.Context) error {
	items, err := s.queueRepo.ListDue(ctx, time.Now(), s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list due queue items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	byProfile := make(map[uuid.UUID][]*model.QueueItem)
	for _, item := range items {
		byProfile[item.ProfileID] = append(byProfile[item.ProfileID], item)
	}

	var wg sync.WaitGroup
	for profileID, group := range byProfile {
		wg.Add(1)
		go func(profileID uuid.UUID, group []*model.QueueItem) {
			defer wg.Done()
			// One in-flight send per profile, always.
			unlock := s.profileLocks.Lock(profileID)
			defer unlock()
			s.processProfileGroup(ctx, profileID, group)
		}(profileID, group)
	}
	wg.Wait()
	return nil
}

func (s *Service) processProfileGroup(ctx context.Context, profileID uuid.UUID, group []*model.QueueItem) {
	profile, err := s.profileRepo.Get(ctx, profileID)
	if err != nil {
		s.logger.Error(err, "failed to load profile for queue group", "profile_id", profileID.String())
		return
	}
	pkg, err := s.packageRepo.Get(ctx, profile.PackageID)
	if err != nil {
		s.logger.Error(err, "failed to load package for queue group", "profile_id", profileID.String())
		return
	}

	for _, item := range group {
		if ctx.Err() != nil {
			return
		}
		s.processItem(ctx, pkg, profile, item)
	}
}

func (s *Service) processItem(ctx context.Context, pkg *model.Package, profile *model.Profile, item *model.QueueItem) {
	switch s.eligibility(ctx, pkg, profile, item) {
	case verdictSkip:
		// Still waiting; a later tick will retry once the profile frees up.
		return
	case verdictRedistribute:
		s.redistribute(ctx, pkg, profile, item, "profile blocked")
		return
	}

	taken, err := s.queueRepo.MarkProcessing(ctx, item.ID)
	if err != nil {
		s.logger.Error(err, "failed to mark queue item processing", "item_id", item.ID.String())
		return
	}
	if !taken {
		// Cancelled or claimed elsewhere between listing and locking.
		return
	}
	attempts := item.AttemptCount + 1

	release := s.semaphores.acquire(pkg)
	defer release()

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	result, sendErr := s.sender.Send(sendCtx, &sender.Request{
		Profile:   profile,
		Recipient: item.Recipient,
		Content:   item.Content,
		Mode:      model.MessageModeProactive,
	})
	cancel()

	if sendErr != nil {
		s.onFailure(ctx, pkg, profile, item, attempts, sendErr)
		return
	}
	s.onSuccess(ctx, pkg, profile, item, attempts, result)
}

func (s *Service) onSuccess(ctx context.Context, pkg *model.Package, profile *model.Profile, item *model.QueueItem, attempts int, result *sender.Result) {
	now := time.Now()

	if err := s.queueRepo.MarkSent(ctx, item.ID, now); err != nil {
		s.logger.Error(err, "failed to mark queue item sent", "item_id", item.ID.String())
	}

	s.recordDelivery(ctx, item, profile, model.DeliveryStatusSent, attempts, &result.ProviderMessageID, nil, int(result.ResponseTime.Milliseconds()), &now)

	cd, err := s.cooldowns.ForProfile(ctx, pkg, profile)
	if err != nil {
		s.logger.Error(err, "failed to compute cooldown", "profile_id", profile.ID.String())
		cd = cooldown.Result{Seconds: cooldown.MinSeconds, Mode: model.CooldownModeNormal}
	}
	outcome := s.cooldowns.Outcome(profile.ID, true, int(result.ResponseTime.Milliseconds()), cd, now)
	if err := s.ledgerRepo.RecordOutcome(ctx, outcome); err != nil {
		s.logger.Error(err, "failed to record send outcome", "profile_id", profile.ID.String())
	}
	if err := s.profileRepo.TouchLastSend(ctx, profile.ID, now); err != nil {
		s.logger.Error(err, "failed to touch last send", "profile_id", profile.ID.String())
	}
	if err := s.messageRepo.BumpCounts(ctx, item.MessageID, true); err != nil {
		s.logger.Error(err, "failed to bump message counts", "message_id", item.MessageID.String())
	}
	// First successful proactive contact pins the conversation, so a later
	// reply from this recipient leaves from the same profile.
	if err := s.distribution.PinRoute(ctx, pkg.ID, item.Recipient, profile.ID); err != nil {
		s.logger.Error(err, "failed to pin conversation route", "profile_id", profile.ID.String())
	}

	if s.metrics != nil {
		s.metrics.SendsTotal.WithLabelValues("sent", string(model.MessageModeProactive)).Inc()
		s.metrics.SendLatency.Observe(result.ResponseTime.Seconds())
		s.metrics.CooldownSeconds.Observe(float64(cd.Seconds))
	}
	s.logger.Debug("queue item sent",
		"item_id", item.ID.String(),
		"profile_id", profile.ID.String(),
		"cooldown_s", cd.Seconds,
	)
}

func (s *Service) onFailure(ctx context.Context, pkg *model.Package, profile *model.Profile, item *model.QueueItem, attempts int, sendErr error) {
	now := time.Now()
	reason := sendErr.Error()

	s.recordDelivery(ctx, item, profile, model.DeliveryStatusFailed, attempts, nil, &reason, 0, nil)

	cd, err := s.cooldowns.ForProfile(ctx, pkg, profile)
	if err != nil {
		cd = cooldown.Result{Seconds: cooldown.MinSeconds, Mode: model.CooldownModeNormal}
	}
	outcome := s.cooldowns.Outcome(profile.ID, false, 0, cd, now)
	if err := s.ledgerRepo.RecordOutcome(ctx, outcome); err != nil {
		s.logger.Error(err, "failed to record failed outcome", "profile_id", profile.ID.String())
	}

	// Block-keyword errors are evidence right now; run the check inline
	// instead of waiting for the next scheduled health pass.
	if s.detector != nil && (blockdetect.MatchesBlockKeyword(reason) || attempts >= blockCheckMinAttempts) {
		if _, err := s.detector.CheckProfile(ctx, pkg, profile); err != nil {
			s.logger.Error(err, "failed to run block check after failure", "profile_id", profile.ID.String())
		}
	}

	maxAttempts := item.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = pkg.RetryMaxAttempts
	}

	if pkg.RetryFailedSends && attempts < maxAttempts {
		delay := pkg.RetryDelay(attempts)
		if err := s.queueRepo.Requeue(ctx, item.ID, now.Add(delay), reason); err != nil {
			s.logger.Error(err, "failed to requeue item", "item_id", item.ID.String())
			return
		}
		if s.metrics != nil {
			s.metrics.RetriesTotal.Inc()
		}
		s.logger.Debug("queue item requeued",
			"item_id", item.ID.String(),
			"attempt", attempts,
			"delay", delay.String(),
		)
		return
	}

	if err := s.queueRepo.MarkFailed(ctx, item.ID, reason); err != nil {
		s.logger.Error(err, "failed to mark item terminally failed", "item_id", item.ID.String())
		return
	}
	if err := s.messageRepo.BumpCounts(ctx, item.MessageID, false); err != nil {
		s.logger.Error(err, "failed to bump message counts", "message_id", item.MessageID.String())
	}
	if s.metrics != nil {
		s.metrics.SendsTotal.WithLabelValues("failed", string(model.MessageModeProactive)).Inc()
	}

	// One redistribution hop per original item: a reassigned copy that also
	// exhausts its retries dies where it is.
	if item.RedistributedFrom == nil {
		s.spawnRedistributed(ctx, pkg, profile, item, "retries exhausted on "+profile.Name)
	}
}

type verdict int

const (
	verdictSend verdict = iota
	verdictSkip
	verdictRedistribute
)

// eligibility re-checks the profile at dequeue time; it may have been paused
// or drained since the item was enqueued.
func (s *Service) eligibility(ctx context.Context, pkg *model.Package, profile *model.Profile, item *model.QueueItem) verdict {
	if profile.Status == model.ProfileStatusBlocked {
		return verdictRedistribute
	}
	if profile.Status != model.ProfileStatusActive {
		return verdictSkip
	}

	ledger, err := s.ledgerRepo.Get(ctx, profile.ID)
	if err != nil {
		s.logger.Error(err, "failed to load ledger for eligibility", "profile_id", profile.ID.String())
		return verdictSkip
	}

	now := time.Now()
	if ledger.ApplyResets(now) {
		if err := s.ledgerRepo.SaveWindows(ctx, ledger); err != nil {
			s.logger.Error(err, "failed to persist window reset", "profile_id", profile.ID.String())
		}
	}
	if ledger.InCooldown(now) {
		return verdictSkip
	}

	h, h3, d := ledger.RemainingCapacity(pkg.EffectiveHourly(profile), pkg.Effective3Hours(profile), pkg.EffectiveDaily(profile), 0)
	if h <= 0 || h3 <= 0 || d <= 0 {
		return verdictSkip
	}
	return verdictSend
}

// redistribute handles a blocked profile found at dequeue: the original item
// is cancelled with a reason and, if it has not hopped before, reassigned.
func (s *Service) redistribute(ctx context.Context, pkg *model.Package, profile *model.Profile, item *model.QueueItem, why string) {
	cancelled, err := s.queueRepo.Cancel(ctx, item.ID, why+"; redistributed")
	if err != nil {
		s.logger.Error(err, "failed to cancel item for redistribution", "item_id", item.ID.String())
		return
	}
	if !cancelled {
		return
	}
	if item.RedistributedFrom != nil {
		// Already a second home for this recipient; stop here.
		if err := s.messageRepo.BumpCounts(ctx, item.MessageID, false); err != nil {
			s.logger.Error(err, "failed to bump message counts", "message_id", item.MessageID.String())
		}
		return
	}
	s.spawnRedistributed(ctx, pkg, profile, item, why)
}

// spawnRedistributed creates the single-hop replacement item on another
// profile, excluding the one that failed.
func (s *Service) spawnRedistributed(ctx context.Context, pkg *model.Package, failed *model.Profile, item *model.QueueItem, why string) {
	assignment, _, err := s.distribution.Distribute(ctx, pkg, []string{item.Recipient}, failed.ID)
	if err != nil {
		s.logger.Warn("redistribution found no eligible profile",
			"item_id", item.ID.String(),
			"reason", why,
		)
		return
	}

	origin := item.ID
	for profileID := range assignment {
		replacement := &model.QueueItem{
			MessageID:         item.MessageID,
			ProfileID:         profileID,
			Recipient:         item.Recipient,
			Content:           item.Content,
			Status:            model.QueueStatusWaiting,
			Priority:          item.Priority,
			ScheduledSendAt:   time.Now(),
			MaxAttempts:       item.MaxAttempts,
			RedistributedFrom: &origin,
		}
		if err := s.queueRepo.Create(ctx, replacement); err != nil {
			s.logger.Error(err, "failed to create redistributed item", "origin_id", origin.String())
			return
		}
		if s.metrics != nil {
			s.metrics.Redistributions.Inc()
		}
		s.logger.Info("queue item redistributed",
			"origin_id", origin.String(),
			"new_profile_id", profileID.String(),
			"reason", why,
		)
	}
}

// CancelItem is the user-facing cancellation; only waiting items may be
// cancelled.
func (s *Service) CancelItem(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	return s.queueRepo.Cancel(ctx, id, reason)
}

func (s *Service) recordDelivery(ctx context.Context, item *model.QueueItem, profile *model.Profile, status model.DeliveryStatus, attempts int, providerID, errMsg *string, responseMs int, sentAt *time.Time) {
	log := &model.DeliveryLog{
		MessageID:         item.MessageID,
		ProfileID:         profile.ID,
		Recipient:         item.Recipient,
		Mode:              model.MessageModeProactive,
		Status:            status,
		ProviderMessageID: providerID,
		AttemptCount:      attempts,
		ErrorMessage:      errMsg,
		ResponseTimeMs:    responseMs,
		SentAt:            sentAt,
	}
	if err := s.deliveryRepo.Create(ctx, log); err != nil {
		s.logger.Error(err, "failed to record delivery log", "item_id", item.ID.String())
	}
}
