package queue

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository/fake"
	"github.com/blockpreventer/bridge/internal/sender"
	alertService "github.com/blockpreventer/bridge/internal/service/alert"
	"github.com/blockpreventer/bridge/internal/service/blockdetect"
	"github.com/blockpreventer/bridge/internal/service/cooldown"
	"github.com/blockpreventer/bridge/internal/service/distribution"
	"github.com/blockpreventer/bridge/pkg/logger"
)

type scriptedSender struct {
	err   error
	calls int
}

func (s *scriptedSender) Send(_ context.Context, _ *sender.Request) (*sender.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &sender.Result{ProviderMessageID: "pm-1", ResponseTime: 50 * time.Millisecond}, nil
}

type harness struct {
	packages   *fake.PackageRepo
	profiles   *fake.ProfileRepo
	ledgers    *fake.LedgerRepo
	messages   *fake.MessageRepo
	queue      *fake.QueueRepo
	deliveries *fake.DeliveryRepo
	routes     *fake.RouteRepo
	alerts     *fake.AlertRepo
	sender     *scriptedSender
	svc        *Service
}

func newHarness(snd *scriptedSender) *harness {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	h := &harness{
		packages:   fake.NewPackageRepo(),
		profiles:   fake.NewProfileRepo(),
		ledgers:    fake.NewLedgerRepo(),
		messages:   fake.NewMessageRepo(),
		queue:      fake.NewQueueRepo(),
		deliveries: fake.NewDeliveryRepo(),
		routes:     fake.NewRouteRepo(),
		alerts:     fake.NewAlertRepo(),
		sender:     snd,
	}
	rng := rand.New(rand.NewSource(1))
	cooldowns := cooldown.NewService(cooldown.NewCalculator(rng), h.queue, h.deliveries, log)
	dist := distribution.NewService(h.profiles, h.ledgers, h.queue, h.routes, rng, log)
	alerts := alertService.NewService(h.alerts, nil, nil, alertService.Config{}, nil, log)
	detector := blockdetect.NewService(h.profiles, h.ledgers, h.deliveries, h.queue, alerts, nil, log)
	h.svc = NewService(h.queue, h.profiles, h.packages, h.ledgers, h.messages, h.deliveries, cooldowns, dist, detector, snd, nil, log)
	return h
}

func (h *harness) seedPackage() *model.Package {
	pkg := &model.Package{
		Name:                 "pool-a",
		Status:               model.PackageStatusActive,
		DistributionMode:     model.DistributionRoundRobin,
		MaxPerHour:           10,
		MaxPer3Hours:         25,
		MaxPerDay:            60,
		MaxConcurrentSends:   2,
		AutoPauseOnFailures:  true,
		AutoPauseFailures:    5,
		AutoPauseSuccessRate: 50,
		FreezeDurationHours:  2,
		RetryMaxAttempts:     3,
		RetryBaseDelaySec:    5,
	}
	pkg.ID = uuid.New()
	h.packages.Packages[pkg.ID] = pkg
	return pkg
}

func (h *harness) seedProfile(pkg *model.Package, name string) *model.Profile {
	p := &model.Profile{
		PackageID:   pkg.ID,
		Name:        name,
		Address:     name + "@pool",
		Status:      model.ProfileStatusActive,
		HealthScore: 100,
		WeightScore: 1,
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().Add(-time.Hour)
	h.profiles.Profiles[p.ID] = p
	now := time.Now()
	h.ledgers.Ledgers[p.ID] = &model.ProfileLedger{
		ProfileID:      p.ID,
		SuccessRate24h: 100,
		HourResetAt:    now,
		Hour3ResetAt:   now,
		DayResetAt:     now,
	}
	return p
}

func (h *harness) seedItem(p *model.Profile, recipient string) *model.QueueItem {
	item := &model.QueueItem{
		MessageID:       uuid.New(),
		ProfileID:       p.ID,
		Recipient:       recipient,
		Content:         "hello",
		Status:          model.QueueStatusWaiting,
		ScheduledSendAt: time.Now().Add(-time.Minute),
		MaxAttempts:     1,
	}
	item.ID = uuid.New()
	h.queue.Items[item.ID] = item
	return item
}

func TestTickPinsRouteOnProactiveSuccess(t *testing.T) {
	h := newHarness(&scriptedSender{})
	pkg := h.seedPackage()
	p := h.seedProfile(pkg, "alpha")
	item := h.seedItem(p, "+15550100")

	require.NoError(t, h.svc.Tick(context.Background()))

	assert.Equal(t, 1, h.sender.calls)
	assert.Equal(t, model.QueueStatusSent, h.queue.Items[item.ID].Status)

	route, err := h.routes.Get(context.Background(), pkg.ID, "+15550100")
	require.NoError(t, err)
	require.NotNil(t, route, "successful proactive send must pin the conversation route")
	assert.Equal(t, p.ID, route.ProfileID)
	assert.Equal(t, 1, h.routes.Upserts)
}

func TestTerminalFailureRedistributesOnce(t *testing.T) {
	h := newHarness(&scriptedSender{err: errors.New("connection reset")})
	pkg := h.seedPackage()
	pkg.RetryFailedSends = false
	p := h.seedProfile(pkg, "alpha")
	backup := h.seedProfile(pkg, "beta")
	item := h.seedItem(p, "+15550101")

	require.NoError(t, h.svc.Tick(context.Background()))

	assert.Equal(t, model.QueueStatusFailed, h.queue.Items[item.ID].Status)
	require.Len(t, h.queue.Created, 1)
	spawned := h.queue.Created[0]
	assert.Equal(t, backup.ID, spawned.ProfileID)
	require.NotNil(t, spawned.RedistributedFrom)
	assert.Equal(t, item.ID, *spawned.RedistributedFrom)
}

func TestRedistributedItemNeverHopsAgain(t *testing.T) {
	h := newHarness(&scriptedSender{err: errors.New("connection reset")})
	pkg := h.seedPackage()
	pkg.RetryFailedSends = false
	p := h.seedProfile(pkg, "alpha")
	h.seedProfile(pkg, "beta") // eligible, but the item already hopped once

	origin := uuid.New()
	item := h.seedItem(p, "+15550102")
	item.RedistributedFrom = &origin

	require.NoError(t, h.svc.Tick(context.Background()))

	assert.Equal(t, model.QueueStatusFailed, h.queue.Items[item.ID].Status)
	assert.Empty(t, h.queue.Created, "a redistributed item that fails out must die in place")
}

func TestBlockKeywordFailureTriggersImmediateCheck(t *testing.T) {
	h := newHarness(&scriptedSender{err: errors.New("account blocked by provider")})
	pkg := h.seedPackage()
	pkg.RetryFailedSends = false
	p := h.seedProfile(pkg, "alpha")
	h.seedItem(p, "+15550103")
	waiting := h.seedItem(p, "+15550104")
	waiting.ScheduledSendAt = time.Now().Add(time.Hour)

	require.NoError(t, h.svc.Tick(context.Background()))

	stored := h.profiles.Profiles[p.ID]
	assert.Equal(t, model.ProfileStatusPaused, stored.Status, "keyword failure must pause within the same tick")
	require.NotNil(t, stored.PauseReason)
	assert.NotNil(t, stored.ResumeAt)

	// The pause cascade-cancelled the profile's remaining waiting work.
	assert.Equal(t, model.QueueStatusCancelled, h.queue.Items[waiting.ID].Status)

	require.Len(t, h.alerts.Alerts, 1)
	assert.Equal(t, model.AlertTypeBlockDetected, h.alerts.Alerts[0].Type)
}

func TestBenignFailureSkipsBlockCheck(t *testing.T) {
	h := newHarness(&scriptedSender{err: errors.New("connection reset")})
	pkg := h.seedPackage()
	pkg.RetryFailedSends = false
	p := h.seedProfile(pkg, "alpha")
	h.seedItem(p, "+15550105")

	require.NoError(t, h.svc.Tick(context.Background()))

	assert.Equal(t, model.ProfileStatusActive, h.profiles.Profiles[p.ID].Status)
	assert.Empty(t, h.alerts.Alerts)
}
