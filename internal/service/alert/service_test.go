package alert

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpreventer/bridge/internal/model"
	"github.com/blockpreventer/bridge/internal/repository/fake"
	"github.com/blockpreventer/bridge/pkg/logger"
)

func testService(repo *fake.AlertRepo) *Service {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewService(repo, nil, nil, Config{}, nil, log)
}

func TestRaiseDedupsRepeatsWithinWindow(t *testing.T) {
	repo := fake.NewAlertRepo()
	svc := testService(repo)
	profileID := uuid.New()

	warning := func() *model.Alert {
		return &model.Alert{
			ProfileID: &profileID,
			Type:      model.AlertTypeBlockWarning,
			Severity:  model.AlertSeverityWarning,
			Title:     "Block risk warning",
			Message:   "potential block indicators",
		}
	}

	created, err := svc.Raise(context.Background(), warning())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.Raise(context.Background(), warning())
	require.NoError(t, err)
	assert.False(t, created, "identical alert within the hour must be suppressed")
	assert.Len(t, repo.Alerts, 1)
}

func TestRaiseDistinguishesSeverityAndProfile(t *testing.T) {
	repo := fake.NewAlertRepo()
	svc := testService(repo)
	profileID := uuid.New()

	base := &model.Alert{
		ProfileID: &profileID,
		Type:      model.AlertTypeBlockDetected,
		Severity:  model.AlertSeverityWarning,
		Title:     "t",
		Message:   "m",
	}
	created, err := svc.Raise(context.Background(), base)
	require.NoError(t, err)
	assert.True(t, created)

	// Escalation to critical is not a repeat.
	critical := *base
	critical.ID = uuid.Nil
	critical.Severity = model.AlertSeverityCritical
	created, err = svc.Raise(context.Background(), &critical)
	require.NoError(t, err)
	assert.True(t, created)

	// Same shape for a different profile is not a repeat either.
	otherID := uuid.New()
	other := *base
	other.ID = uuid.Nil
	other.ProfileID = &otherID
	created, err = svc.Raise(context.Background(), &other)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Len(t, repo.Alerts, 3)
}
