package message

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/internal/sender"
	"github.com/blockpreventer/bridge/internal/service/cooldown"
	"github.com/blockpreventer/bridge/internal/service/distribution"
	"github.com/blockpreventer/bridge/internal/service/scoring"
	"github.com/blockpreventer/bridge/pkg/errors"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/metrics"
)

const reactiveSendTimeout = 45 * time.Second

// SubmitOptions modify how a proactive message is queued.
type SubmitOptions struct {
	// ScheduledAt defers distribution until the cron promoter picks the
	// message up.
	ScheduledAt *time.Time
	// DripSeconds overrides the cooldown-derived gap with a fixed
	// per-recipient stagger.
	DripSeconds int
	Priority    int
}

// SubmitResult reports the per-recipient assignment of an accepted message.
type SubmitResult struct {
	MessageID   uuid.UUID            `json:"message_id"`
	Status      model.MessageStatus  `json:"status"`
	Assignments map[string]uuid.UUID `json:"assignments"` // recipient -> profile
	Unassigned  []string             `json:"unassigned,omitempty"`
	FirstSendAt *time.Time           `json:"first_send_at,omitempty"`
	LastSendAt  *time.Time           `json:"last_send_at,omitempty"`
}

// ReactiveResult is the immediate outcome of a reply send.
type ReactiveResult struct {
	MessageID         uuid.UUID `json:"message_id"`
	ProfileID         uuid.UUID `json:"profile_id"`
	Success           bool      `json:"success"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// QueueStatus is the caller-facing queue summary for a package.
type QueueStatus struct {
	Waiting    int                `json:"waiting"`
	Processing int                `json:"processing"`
	Mode       model.CooldownMode `json:"mode"`
	NextDueAt  *time.Time         `json:"next_due_at,omitempty"`
}

// Service is the caller surface: proactive fan-out, reactive replies, and
// status queries.
type Service struct {
	packageRepo  repository.PackageRepository
	profileRepo  repository.ProfileRepository
	ledgerRepo   repository.LedgerRepository
	messageRepo  repository.MessageRepository
	queueRepo    repository.QueueRepository
	deliveryRepo repository.DeliveryRepository

	distribution *distribution.Service
	cooldowns    *cooldown.Service
	scoring      *scoring.Service
	sender       sender.Sender

	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(
	packageRepo repository.PackageRepository,
	profileRepo repository.ProfileRepository,
	ledgerRepo repository.LedgerRepository,
	messageRepo repository.MessageRepository,
	queueRepo repository.QueueRepository,
	deliveryRepo repository.DeliveryRepository,
	dist *distribution.Service,
	cooldowns *cooldown.Service,
	scorer *scoring.Service,
	snd sender.Sender,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		packageRepo:  packageRepo,
		profileRepo:  profileRepo,
		ledgerRepo:   ledgerRepo,
		messageRepo:  messageRepo,
		queueRepo:    queueRepo,
		deliveryRepo: deliveryRepo,
		distribution: dist,
		cooldowns:    cooldowns,
		scoring:      scorer,
		sender:       snd,
		metrics:      m,
		logger:       log.WithComponent("message"),
	}
}

// SubmitProactive accepts a fan-out message: each recipient is assigned to a
// profile and queued on a package-global timeline so the pool's pacing is
// preserved across separate submissions.
func (s *Service) SubmitProactive(ctx context.Context, packageID uuid.UUID, recipients []string, content string, opts SubmitOptions) (*SubmitResult, error) {
	pkg, err := s.packageRepo.Get(ctx, packageID)
	if err != nil {
		return nil, errors.NotFound("package", err)
	}
	if pkg.Status != model.PackageStatusActive {
		return nil, errors.BadRequest("package is not active", nil)
	}
	if len(recipients) == 0 {
		return nil, errors.BadRequest("no recipients", nil)
	}

	msg := &model.Message{
		PackageID:       packageID,
		Mode:            model.MessageModeProactive,
		Content:         content,
		Recipients:      recipients,
		Status:          model.MessageStatusPending,
		TotalRecipients: len(recipients),
		ScheduledAt:     opts.ScheduledAt,
	}

	if opts.ScheduledAt != nil && opts.ScheduledAt.After(time.Now()) {
		msg.Status = model.MessageStatusScheduled
		if err := s.messageRepo.Create(ctx, msg); err != nil {
			return nil, errors.Internal(err)
		}
		return &SubmitResult{MessageID: msg.ID, Status: msg.Status}, nil
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, errors.Internal(err)
	}
	return s.enqueue(ctx, pkg, msg, opts)
}

// enqueue distributes the message's recipients and creates the queue items.
func (s *Service) enqueue(ctx context.Context, pkg *model.Package, msg *model.Message, opts SubmitOptions) (*SubmitResult, error) {
	assignment, overflow, err := s.distribution.Distribute(ctx, pkg, msg.Recipients)
	if err != nil {
		if stderrors.Is(err, distribution.ErrNoEligibleProfile) {
			_ = s.messageRepo.SetStatus(ctx, msg.ID, model.MessageStatusFailed)
			return nil, errors.Unavailable("no eligible profile in package", err)
		}
		return nil, errors.Internal(err)
	}

	slots, err := s.timeline(ctx, pkg, assignment, opts)
	if err != nil {
		return nil, errors.Internal(err)
	}

	res := &SubmitResult{
		MessageID:   msg.ID,
		Status:      model.MessageStatusQueued,
		Assignments: make(map[string]uuid.UUID),
		Unassigned:  overflow,
	}

	items := make([]*model.QueueItem, 0, len(slots))
	for _, slot := range slots {
		items = append(items, &model.QueueItem{
			MessageID:       msg.ID,
			ProfileID:       slot.profileID,
			Recipient:       slot.recipient,
			Content:         msg.Content,
			Status:          model.QueueStatusWaiting,
			Priority:        opts.Priority,
			ScheduledSendAt: slot.at,
			MaxAttempts:     pkg.RetryMaxAttempts,
		})
		res.Assignments[slot.recipient] = slot.profileID
		if res.FirstSendAt == nil || slot.at.Before(*res.FirstSendAt) {
			t := slot.at
			res.FirstSendAt = &t
		}
		if res.LastSendAt == nil || slot.at.After(*res.LastSendAt) {
			t := slot.at
			res.LastSendAt = &t
		}
	}
	if err := s.queueRepo.CreateBatch(ctx, items); err != nil {
		return nil, errors.Internal(err)
	}
	if err := s.messageRepo.SetStatus(ctx, msg.ID, model.MessageStatusQueued); err != nil {
		return nil, errors.Internal(err)
	}

	s.logger.Info("proactive message queued",
		"message_id", msg.ID.String(),
		"recipients", len(msg.Recipients),
		"profiles", len(assignment),
		"unassigned", len(overflow),
	)
	return res, nil
}

type slot struct {
	recipient string
	profileID uuid.UUID
	at        time.Time
}

// timeline spreads the assignment over a shared package timeline. The gap
// between consecutive items is the pool cooldown divided by the number of
// carrying profiles: each individual profile still sees its full cooldown
// between its own sends, while the pool as a whole keeps moving.
func (s *Service) timeline(ctx context.Context, pkg *model.Package, assignment distribution.Assignment, opts SubmitOptions) ([]slot, error) {
	base := time.Now()
	if last, err := s.queueRepo.LastScheduledForPackage(ctx, pkg.ID); err != nil {
		return nil, fmt.Errorf("failed to load package timeline tail: %w", err)
	} else if last != nil && last.After(base) {
		base = *last
	}

	gap, err := s.interProfileGap(ctx, pkg, assignment, opts)
	if err != nil {
		return nil, err
	}

	// Interleave profiles round-robin so consecutive slots rotate through
	// the pool.
	type cursorList struct {
		profileID  uuid.UUID
		recipients []string
	}
	lists := make([]cursorList, 0, len(assignment))
	for id, recips := range assignment {
		lists = append(lists, cursorList{profileID: id, recipients: recips})
	}

	var slots []slot
	at := base
	for remaining := true; remaining; {
		remaining = false
		for i := range lists {
			if len(lists[i].recipients) == 0 {
				continue
			}
			at = at.Add(gap)
			slots = append(slots, slot{
				recipient: lists[i].recipients[0],
				profileID: lists[i].profileID,
				at:        at,
			})
			lists[i].recipients = lists[i].recipients[1:]
			if len(lists[i].recipients) > 0 {
				remaining = true
			}
		}
	}
	return slots, nil
}

func (s *Service) interProfileGap(ctx context.Context, pkg *model.Package, assignment distribution.Assignment, opts SubmitOptions) (time.Duration, error) {
	if opts.DripSeconds > 0 {
		return time.Duration(opts.DripSeconds) * time.Second, nil
	}

	// Estimate the pool cooldown from one carrying profile; any of them
	// sees the same package-level inputs.
	var profileID uuid.UUID
	for id := range assignment {
		profileID = id
		break
	}
	profile, err := s.profileRepo.Get(ctx, profileID)
	if err != nil {
		return 0, fmt.Errorf("failed to load profile for gap estimate: %w", err)
	}
	cd, err := s.cooldowns.ForProfile(ctx, pkg, profile)
	if err != nil {
		return 0, err
	}

	n := len(assignment)
	if n < 1 {
		n = 1
	}
	gap := time.Duration(cd.Seconds/n) * time.Second
	if gap < time.Second {
		gap = time.Second
	}
	return gap, nil
}

// SubmitReactive sends a reply immediately through the sticky route. Replies
// bypass cooldowns and window caps entirely; only a blocked profile forces a
// new route.
func (s *Service) SubmitReactive(ctx context.Context, packageID uuid.UUID, recipient, content string) (*ReactiveResult, error) {
	pkg, err := s.packageRepo.Get(ctx, packageID)
	if err != nil {
		return nil, errors.NotFound("package", err)
	}

	profile, err := s.distribution.ResolveReactive(ctx, pkg, recipient)
	if err != nil {
		if stderrors.Is(err, distribution.ErrNoEligibleProfile) {
			return nil, errors.Unavailable("no profile available for reply", err)
		}
		return nil, errors.Internal(err)
	}

	msg := &model.Message{
		PackageID:       packageID,
		Mode:            model.MessageModeReactive,
		Content:         content,
		Recipients:      []string{recipient},
		Status:          model.MessageStatusPending,
		TotalRecipients: 1,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, errors.Internal(err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, reactiveSendTimeout)
	result, sendErr := s.sender.Send(sendCtx, &sender.Request{
		Profile:   profile,
		Recipient: recipient,
		Content:   content,
		Mode:      model.MessageModeReactive,
	})
	cancel()

	now := time.Now()
	out := &ReactiveResult{MessageID: msg.ID, ProfileID: profile.ID}

	if sendErr != nil {
		out.Error = sendErr.Error()
		reason := sendErr.Error()
		s.recordReactiveDelivery(ctx, msg, profile, model.DeliveryStatusFailed, nil, &reason, 0, nil)
		_ = s.messageRepo.SetStatus(ctx, msg.ID, model.MessageStatusFailed)
		if s.metrics != nil {
			s.metrics.SendsTotal.WithLabelValues("failed", string(model.MessageModeReactive)).Inc()
		}
		return out, nil
	}

	out.Success = true
	out.ProviderMessageID = result.ProviderMessageID
	s.recordReactiveDelivery(ctx, msg, profile, model.DeliveryStatusSent, &result.ProviderMessageID, nil, int(result.ResponseTime.Milliseconds()), &now)
	_ = s.messageRepo.SetStatus(ctx, msg.ID, model.MessageStatusCompleted)
	_ = s.messageRepo.BumpCounts(ctx, msg.ID, true)

	// Replies still count in the ledger so risk and trend stay honest, and
	// the route is refreshed for the next reply.
	cd, err := s.cooldowns.ForProfile(ctx, pkg, profile)
	if err == nil {
		outcome := s.cooldowns.Outcome(profile.ID, true, int(result.ResponseTime.Milliseconds()), cd, now)
		if err := s.ledgerRepo.RecordOutcome(ctx, outcome); err != nil {
			s.logger.Error(err, "failed to record reactive outcome", "profile_id", profile.ID.String())
		}
	}
	if err := s.profileRepo.TouchLastSend(ctx, profile.ID, now); err != nil {
		s.logger.Error(err, "failed to touch last send", "profile_id", profile.ID.String())
	}
	if err := s.distribution.PinRoute(ctx, packageID, recipient, profile.ID); err != nil {
		s.logger.Error(err, "failed to refresh conversation route")
	}
	if s.metrics != nil {
		s.metrics.SendsTotal.WithLabelValues("sent", string(model.MessageModeReactive)).Inc()
	}
	return out, nil
}

// RecordInbound bumps the received counter for engagement scoring when the
// provider reports an incoming customer message.
func (s *Service) RecordInbound(ctx context.Context, packageID uuid.UUID, customerAddress string) error {
	pkg, err := s.packageRepo.Get(ctx, packageID)
	if err != nil {
		return errors.NotFound("package", err)
	}
	profile, err := s.distribution.ResolveReactive(ctx, pkg, customerAddress)
	if err != nil {
		return errors.Internal(err)
	}
	return s.ledgerRepo.RecordReceived(ctx, profile.ID)
}

// PromoteScheduled moves due scheduled messages into the queue. Run by cron.
func (s *Service) PromoteScheduled(ctx context.Context) (int, error) {
	msgs, err := s.messageRepo.ListScheduledDue(ctx, time.Now(), 50)
	if err != nil {
		return 0, fmt.Errorf("failed to list due scheduled messages: %w", err)
	}

	promoted := 0
	for _, msg := range msgs {
		pkg, err := s.packageRepo.Get(ctx, msg.PackageID)
		if err != nil {
			s.logger.Error(err, "failed to load package for scheduled message", "message_id", msg.ID.String())
			continue
		}
		if _, err := s.enqueue(ctx, pkg, msg, SubmitOptions{}); err != nil {
			s.logger.Error(err, "failed to promote scheduled message", "message_id", msg.ID.String())
			continue
		}
		promoted++
	}
	return promoted, nil
}

// GetQueueStatus reports depth, pressure mode and the next due send.
func (s *Service) GetQueueStatus(ctx context.Context, packageID uuid.UUID) (*QueueStatus, error) {
	pkg, err := s.packageRepo.Get(ctx, packageID)
	if err != nil {
		return nil, errors.NotFound("package", err)
	}

	waiting, err := s.queueRepo.CountWaitingByPackage(ctx, packageID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	processing, err := s.queueRepo.CountProcessingByPackage(ctx, packageID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	nextDue, err := s.queueRepo.NextDueForPackage(ctx, packageID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	mode := model.CooldownModeNormal
	switch {
	case waiting >= cooldown.CriticalQueueDepth:
		mode = model.CooldownModeCritical
	case waiting > pkg.RushThreshold:
		mode = model.CooldownModeRush
	case waiting <= pkg.QuietThreshold:
		mode = model.CooldownModeQuiet
	}

	if s.metrics != nil {
		s.metrics.QueueDepth.WithLabelValues(string(model.QueueStatusWaiting)).Set(float64(waiting))
		s.metrics.QueueDepth.WithLabelValues(string(model.QueueStatusProcessing)).Set(float64(processing))
	}

	return &QueueStatus{
		Waiting:    waiting,
		Processing: processing,
		Mode:       mode,
		NextDueAt:  nextDue,
	}, nil
}

// GetProfileHealth recomputes and returns the full assessment for a profile.
func (s *Service) GetProfileHealth(ctx context.Context, profileID uuid.UUID) (*scoring.Assessment, error) {
	profile, err := s.profileRepo.Get(ctx, profileID)
	if err != nil {
		return nil, errors.NotFound("profile", err)
	}
	pkg, err := s.packageRepo.Get(ctx, profile.PackageID)
	if err != nil {
		return nil, errors.NotFound("package", err)
	}
	assessment, err := s.scoring.Assess(ctx, pkg, profile)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return assessment, nil
}

func (s *Service) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	msg, err := s.messageRepo.Get(ctx, id)
	if err != nil {
		return nil, errors.NotFound("message", err)
	}
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, packageID uuid.UUID, status model.MessageStatus, limit, offset int) ([]*model.Message, error) {
	return s.messageRepo.List(ctx, packageID, status, limit, offset)
}

func (s *Service) ListQueueItems(ctx context.Context, packageID uuid.UUID, status model.QueueStatus, limit int) ([]*model.QueueItem, error) {
	return s.queueRepo.ListByPackage(ctx, packageID, status, limit)
}

func (s *Service) recordReactiveDelivery(ctx context.Context, msg *model.Message, profile *model.Profile, status model.DeliveryStatus, providerID, errMsg *string, responseMs int, sentAt *time.Time) {
	log := &model.DeliveryLog{
		MessageID:         msg.ID,
		ProfileID:         profile.ID,
		Recipient:         msg.Recipients[0],
		Mode:              model.MessageModeReactive,
		Status:            status,
		ProviderMessageID: providerID,
		AttemptCount:      1,
		ErrorMessage:      errMsg,
		ResponseTimeMs:    responseMs,
		SentAt:            sentAt,
	}
	if err := s.deliveryRepo.Create(ctx, log); err != nil {
		s.logger.Error(err, "failed to record reactive delivery log")
	}
}
