package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/email"
	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository"
	"github.com/blockpreventer/bridge/pkg/logger"
	"github.com/blockpreventer/bridge/pkg/messaging"
	"github.com/blockpreventer/bridge/pkg/metrics"
)

// dedupWindow suppresses repeat alerts of the same (type, profile, severity).
const dedupWindow = time.Hour

// Config controls the optional notification fan-out.
type Config struct {
	NotifyEmail string
}

// Service is the single write path for alerts: dedup, store, publish,
// optionally email.
type Service struct {
	repo    repository.AlertRepository
	broker  messaging.Broker
	email   email.Service
	cfg     Config
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(repo repository.AlertRepository, broker messaging.Broker, mailer email.Service, cfg Config, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		broker:  broker,
		email:   mailer,
		cfg:     cfg,
		metrics: m,
		logger:  log.WithComponent("alert"),
	}
}

// Raise creates the alert unless an identical one fired within the trailing
// hour. Returns true if a new alert was created.
func (s *Service) Raise(ctx context.Context, a *model.Alert) (bool, error) {
	exists, err := s.repo.ExistsSince(ctx, a.Type, a.ProfileID, a.Severity, time.Now().Add(-dedupWindow))
	if err != nil {
		return false, fmt.Errorf("failed to check alert dedup: %w", err)
	}
	if exists {
		s.logger.Debug("alert suppressed by dedup", "type", string(a.Type))
		return false, nil
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return false, fmt.Errorf("failed to create alert: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AlertsRaised.WithLabelValues(string(a.Type)).Inc()
	}

	s.publish(ctx, a)
	s.notify(ctx, a)
	return true, nil
}

func (s *Service) publish(ctx context.Context, a *model.Alert) {
	if s.broker == nil {
		return
	}
	err := s.broker.Publish(ctx, messaging.ChannelAlerts, messaging.Message{
		Type:    string(a.Type),
		Payload: a,
	})
	if err != nil {
		s.logger.Error(err, "failed to publish alert event")
	}
}

func (s *Service) notify(ctx context.Context, a *model.Alert) {
	if s.email == nil || s.cfg.NotifyEmail == "" || a.Severity != model.AlertSeverityCritical {
		return
	}
	if err := s.email.SendAlert(ctx, s.cfg.NotifyEmail, a.Title, a.Message); err != nil {
		s.logger.Error(err, "failed to email alert")
	}
}

func (s *Service) List(ctx context.Context, packageID *uuid.UUID, unreadOnly bool, limit int) ([]*model.Alert, error) {
	return s.repo.List(ctx, packageID, unreadOnly, limit)
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, id)
}
