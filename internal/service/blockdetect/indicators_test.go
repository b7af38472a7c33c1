package blockdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpreventer/bridge/internal/model"
)

func policyPackage() *model.Package {
	return &model.Package{
		AutoPauseFailures:    5,
		AutoPauseSuccessRate: 70,
	}
}

func findIndicator(ev Evaluation, typ string) *Indicator {
	for i := range ev.Indicators {
		if ev.Indicators[i].Type == typ {
			return &ev.Indicators[i]
		}
	}
	return nil
}

func TestEvaluateCleanSnapshot(t *testing.T) {
	ev := Evaluate(Snapshot{
		SuccessRate24h: 98,
		SentDay:        50,
	}, policyPackage())

	assert.Equal(t, SeverityNone, ev.Severity)
	assert.Empty(t, ev.Indicators)
}

func TestEvaluateConsecutiveFailures(t *testing.T) {
	pkg := policyPackage()

	ev := Evaluate(Snapshot{ConsecutiveFailures: 2, SuccessRate24h: 100}, pkg)
	assert.Nil(t, findIndicator(ev, "consecutive_failures"))

	ev = Evaluate(Snapshot{ConsecutiveFailures: 3, SuccessRate24h: 100}, pkg)
	ind := findIndicator(ev, "consecutive_failures")
	require.NotNil(t, ind)
	assert.Equal(t, SeverityWarning, ind.Severity)
	assert.Equal(t, SeverityWarning, ev.Severity)

	ev = Evaluate(Snapshot{ConsecutiveFailures: 5, SuccessRate24h: 100}, pkg)
	ind = findIndicator(ev, "consecutive_failures")
	require.NotNil(t, ind)
	assert.Equal(t, SeverityCritical, ind.Severity)
	assert.Equal(t, SeverityCritical, ev.Severity)
}

func TestEvaluateConsecutiveThresholdDefaultsWhenUnset(t *testing.T) {
	pkg := policyPackage()
	pkg.AutoPauseFailures = 0

	ev := Evaluate(Snapshot{ConsecutiveFailures: 5, SuccessRate24h: 100}, pkg)
	ind := findIndicator(ev, "consecutive_failures")
	require.NotNil(t, ind)
	assert.Equal(t, SeverityCritical, ind.Severity)
}

func TestEvaluateSuccessRateNeedsSamples(t *testing.T) {
	pkg := policyPackage()

	// 9 sends in the day: not enough evidence, even at 0%.
	ev := Evaluate(Snapshot{SuccessRate24h: 0, SentDay: 9}, pkg)
	assert.Nil(t, findIndicator(ev, "low_success_rate"))

	ev = Evaluate(Snapshot{SuccessRate24h: 60, SentDay: 10}, pkg)
	ind := findIndicator(ev, "low_success_rate")
	require.NotNil(t, ind)
	assert.Equal(t, SeverityCritical, ind.Severity)

	// Between the pause threshold and the warn line.
	ev = Evaluate(Snapshot{SuccessRate24h: 75, SentDay: 10}, pkg)
	ind = findIndicator(ev, "low_success_rate")
	require.NotNil(t, ind)
	assert.Equal(t, SeverityWarning, ind.Severity)
}

func TestEvaluateBlockKeywords(t *testing.T) {
	ev := Evaluate(Snapshot{
		SuccessRate24h: 100,
		RecentErrors: []string{
			"HTTP 403: account BLOCKED by provider",
			"delivery failed: number not registered",
			"connection timeout",
		},
	}, policyPackage())

	ind := findIndicator(ev, "block_error_detected")
	require.NotNil(t, ind)
	assert.Equal(t, SeverityCritical, ind.Severity)
	assert.Contains(t, ind.Detail, "blocked")
	assert.Contains(t, ind.Detail, "not registered")
	assert.NotContains(t, ind.Detail, "timeout")
}

func TestEvaluateAllRecentFailed(t *testing.T) {
	pkg := policyPackage()

	// Window too small.
	ev := Evaluate(Snapshot{SuccessRate24h: 100, Recent30MinTotal: 4, Recent30MinFailed: 4}, pkg)
	assert.Nil(t, findIndicator(ev, "all_recent_failed"))

	// One success in the window keeps it quiet.
	ev = Evaluate(Snapshot{SuccessRate24h: 100, Recent30MinTotal: 6, Recent30MinFailed: 5}, pkg)
	assert.Nil(t, findIndicator(ev, "all_recent_failed"))

	ev = Evaluate(Snapshot{SuccessRate24h: 100, Recent30MinTotal: 5, Recent30MinFailed: 5}, pkg)
	ind := findIndicator(ev, "all_recent_failed")
	require.NotNil(t, ind)
	assert.Equal(t, SeverityCritical, ind.Severity)
}

func TestEvaluateSeverityIsWorstIndicator(t *testing.T) {
	// Warning-level failures plus a critical keyword: overall stays critical.
	ev := Evaluate(Snapshot{
		ConsecutiveFailures: 3,
		SuccessRate24h:      100,
		RecentErrors:        []string{"spam complaint received"},
	}, policyPackage())

	assert.Equal(t, SeverityCritical, ev.Severity)
	assert.Len(t, ev.Indicators, 2)
}

func TestSummaryCapsAtThreeIndicators(t *testing.T) {
	inds := []Indicator{
		{Detail: "a"}, {Detail: "b"}, {Detail: "c"}, {Detail: "d"},
	}
	assert.Equal(t, "a; b; c", summary(inds))
	assert.Equal(t, "a", summary(inds[:1]))
}
