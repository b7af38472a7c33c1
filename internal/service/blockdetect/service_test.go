package blockdetect

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository/fake"
	alertService "github.com/blockpreventer/bridge/internal/service/alert"
	"github.com/blockpreventer/bridge/pkg/logger"
)

type checkHarness struct {
	profiles   *fake.ProfileRepo
	ledgers    *fake.LedgerRepo
	deliveries *fake.DeliveryRepo
	queue      *fake.QueueRepo
	alertRepo  *fake.AlertRepo
	svc        *Service
}

func newCheckHarness() *checkHarness {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	h := &checkHarness{
		profiles:   fake.NewProfileRepo(),
		ledgers:    fake.NewLedgerRepo(),
		deliveries: fake.NewDeliveryRepo(),
		queue:      fake.NewQueueRepo(),
		alertRepo:  fake.NewAlertRepo(),
	}
	alerts := alertService.NewService(h.alertRepo, nil, nil, alertService.Config{}, nil, log)
	h.svc = NewService(h.profiles, h.ledgers, h.deliveries, h.queue, alerts, nil, log)
	return h
}

func (h *checkHarness) seedProfile(pkg *model.Package) *model.Profile {
	p := &model.Profile{PackageID: pkg.ID, Name: "alpha", Address: "alpha@pool", Status: model.ProfileStatusActive}
	p.ID = uuid.New()
	h.profiles.Profiles[p.ID] = p
	return p
}

func (h *checkHarness) seedFailure(p *model.Profile, errText string) {
	msg := errText
	h.deliveries.Logs = append(h.deliveries.Logs, &model.DeliveryLog{
		ID:           uuid.New(),
		MessageID:    uuid.New(),
		ProfileID:    p.ID,
		Recipient:    "+15550100",
		Mode:         model.MessageModeProactive,
		Status:       model.DeliveryStatusFailed,
		ErrorMessage: &msg,
		CreatedAt:    time.Now(),
	})
}

func policyPkg(pause bool) *model.Package {
	pkg := &model.Package{
		Name:                 "pool-a",
		Status:               model.PackageStatusActive,
		AutoPauseOnFailures:  pause,
		AutoPauseFailures:    5,
		AutoPauseSuccessRate: 50,
		FreezeDurationHours:  2,
	}
	pkg.ID = uuid.New()
	return pkg
}

func TestCheckProfilePausesAtMostOnce(t *testing.T) {
	h := newCheckHarness()
	pkg := policyPkg(true)
	p := h.seedProfile(pkg)
	h.seedFailure(p, "account suspended by provider")

	waiting := &model.QueueItem{ProfileID: p.ID, Status: model.QueueStatusWaiting, ScheduledSendAt: time.Now()}
	waiting.ID = uuid.New()
	h.queue.Items[waiting.ID] = waiting

	res, err := h.svc.CheckProfile(context.Background(), pkg, p)
	require.NoError(t, err)
	assert.Equal(t, "auto_pause", res.Action)
	assert.Equal(t, model.ProfileStatusPaused, h.profiles.Profiles[p.ID].Status)
	assert.NotNil(t, h.profiles.Profiles[p.ID].LastBlockAt)
	assert.Equal(t, model.QueueStatusCancelled, h.queue.Items[waiting.ID].Status)
	assert.Equal(t, 1, h.queue.CascadeCalls)
	require.Len(t, h.alertRepo.Alerts, 1)
	assert.Equal(t, model.AlertTypeBlockDetected, h.alertRepo.Alerts[0].Type)

	// The evidence still reads critical, but the compare-and-set already
	// moved the status, so nothing runs twice.
	res, err = h.svc.CheckProfile(context.Background(), pkg, p)
	require.NoError(t, err)
	assert.Equal(t, "auto_pause", res.Action)
	assert.Equal(t, 1, h.queue.CascadeCalls)
	assert.Len(t, h.alertRepo.Alerts, 1)
}

func TestCheckProfileAlertOnlyWhenPausingDisabled(t *testing.T) {
	h := newCheckHarness()
	pkg := policyPkg(false)
	p := h.seedProfile(pkg)
	h.seedFailure(p, "number banned")

	res, err := h.svc.CheckProfile(context.Background(), pkg, p)
	require.NoError(t, err)
	assert.Equal(t, "alert_only", res.Action)
	assert.Equal(t, model.ProfileStatusActive, h.profiles.Profiles[p.ID].Status)
	require.Len(t, h.alertRepo.Alerts, 1)
	assert.Equal(t, model.AlertTypeBlockWarning, h.alertRepo.Alerts[0].Type)
}

func TestCheckProfileCleanHistoryDoesNothing(t *testing.T) {
	h := newCheckHarness()
	pkg := policyPkg(true)
	p := h.seedProfile(pkg)

	res, err := h.svc.CheckProfile(context.Background(), pkg, p)
	require.NoError(t, err)
	assert.Equal(t, "none", res.Action)
	assert.Equal(t, model.ProfileStatusActive, h.profiles.Profiles[p.ID].Status)
	assert.Empty(t, h.alertRepo.Alerts)
}
