package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreRiskCleanProfile(t *testing.T) {
	res := ScoreRisk(RiskSnapshot{
		SentHour:    10,
		Sent3Hours:  20,
		SentDay:     40,
		ReceivedDay: 3,
		HourlyLimit: 50,
		ThreeHour:   120,
		DailyLimit:  400,
	})

	assert.Equal(t, 0, res.Overall)
	assert.Equal(t, RiskLow, res.Level)
	assert.Empty(t, res.Patterns)
}

func TestScoreRiskOverallIsMaxNotSum(t *testing.T) {
	// Two scoring patterns fire at 50 each; overall must stay at 50.
	res := ScoreRisk(RiskSnapshot{
		SentHour:     100, // speed 50
		SentLast5Min: 12,  // burst 50
		SentDay:      100,
		ReceivedDay:  5,
		HourlyLimit:  200,
		ThreeHour:    500,
		DailyLimit:   1000,
	})

	assert.Equal(t, 50, res.Overall)
	assert.Equal(t, RiskMedium, res.Level)
	assert.Len(t, res.Patterns, 2)
}

func TestScoreRiskSpeedTiers(t *testing.T) {
	tests := []struct {
		sentHour int
		expected int
	}{
		{60, 0},
		{61, 25},
		{91, 50},
		{121, 80},
	}
	for _, tt := range tests {
		res := ScoreRisk(RiskSnapshot{SentHour: tt.sentHour})
		assert.Equal(t, tt.expected, res.Overall, "sentHour %d", tt.sentHour)
	}
}

func TestScoreRiskFailureRateContinuous(t *testing.T) {
	// 30% failure over the day maps to 60.
	res := ScoreRisk(RiskSnapshot{SentDay: 100, FailedDay: 30})
	assert.Equal(t, 60, res.Overall)

	// Below the minimum sample nothing fires.
	res = ScoreRisk(RiskSnapshot{SentDay: 4, FailedDay: 4})
	assert.Equal(t, 0, res.Overall)

	// Mild failure noise below 8% is ignored.
	res = ScoreRisk(RiskSnapshot{SentDay: 100, FailedDay: 8})
	assert.Equal(t, 0, res.Overall)
}

func TestScoreRiskFailureRateCapped(t *testing.T) {
	res := ScoreRisk(RiskSnapshot{SentDay: 10, FailedDay: 10})
	assert.Equal(t, 100, res.Overall)
	assert.Equal(t, RiskHigh, res.Level)
}

func TestScoreRiskAdvisoryNeverRaisesOverall(t *testing.T) {
	// Only advisory signals fire: no replies, near limits, rapid gaps.
	res := ScoreRisk(RiskSnapshot{
		SentDay:       25,
		ReceivedDay:   0,
		SentHour:      48,
		HourlyLimit:   50,
		RapidGapCount: 6,
		ThreeHour:     200,
		DailyLimit:    500,
	})

	assert.Equal(t, 0, res.Overall)
	assert.Equal(t, RiskLow, res.Level)
	assert.NotEmpty(t, res.Patterns)
	for _, p := range res.Patterns {
		assert.True(t, p.Advisory, p.Name)
	}
}

func TestScoreRiskDuplicateContentTiers(t *testing.T) {
	tests := []struct {
		recipients int
		expected   int
	}{
		{10, 0},
		{11, 20},
		{21, 45},
		{51, 80},
	}
	for _, tt := range tests {
		res := ScoreRisk(RiskSnapshot{MaxRecipientsPerMessage: tt.recipients})
		assert.Equal(t, tt.expected, res.Overall, "recipients %d", tt.recipients)
	}
}

func TestScoreRiskLevels(t *testing.T) {
	assert.Equal(t, RiskLow, levelFor(0))
	assert.Equal(t, RiskLow, levelFor(35))
	assert.Equal(t, RiskMedium, levelFor(36))
	assert.Equal(t, RiskMedium, levelFor(70))
	assert.Equal(t, RiskHigh, levelFor(71))
}

func TestScoreHealthDeductions(t *testing.T) {
	now := time.Now()

	// Healthy profile with volume.
	assert.Equal(t, 100, ScoreHealth(HealthSnapshot{SuccessRate24h: 99, SentDay: 50, Now: now}))

	// Low volume: success rate ignored.
	assert.Equal(t, 100, ScoreHealth(HealthSnapshot{SuccessRate24h: 10, SentDay: 3, Now: now}))

	// Tiered success deductions.
	assert.Equal(t, 90, ScoreHealth(HealthSnapshot{SuccessRate24h: 90, SentDay: 50, Now: now}))
	assert.Equal(t, 75, ScoreHealth(HealthSnapshot{SuccessRate24h: 70, SentDay: 50, Now: now}))
	assert.Equal(t, 60, ScoreHealth(HealthSnapshot{SuccessRate24h: 40, SentDay: 50, Now: now}))
}

func TestScoreHealthBlockDamageDecays(t *testing.T) {
	now := time.Now()

	fresh := now.Add(-time.Hour)
	scoreFresh := ScoreHealth(HealthSnapshot{SuccessRate24h: 100, SentDay: 10, LastBlockAt: &fresh, Now: now})

	halfway := now.Add(-84 * time.Hour)
	scoreHalf := ScoreHealth(HealthSnapshot{SuccessRate24h: 100, SentDay: 10, LastBlockAt: &halfway, Now: now})

	old := now.Add(-8 * 24 * time.Hour)
	scoreOld := ScoreHealth(HealthSnapshot{SuccessRate24h: 100, SentDay: 10, LastBlockAt: &old, Now: now})

	assert.Less(t, scoreFresh, scoreHalf)
	assert.Less(t, scoreHalf, scoreOld)
	assert.Equal(t, 100, scoreOld)
	assert.Equal(t, 80, scoreHalf)
}

func TestScoreHealthPausedPenaltyAndFloor(t *testing.T) {
	now := time.Now()
	blocked := now

	score := ScoreHealth(HealthSnapshot{
		SuccessRate24h: 10,
		SentDay:        50,
		LastBlockAt:    &blocked,
		Paused:         true,
		Now:            now,
	})
	assert.Equal(t, 5, score)

	score = ScoreHealth(HealthSnapshot{
		SuccessRate24h: 0,
		SentDay:        50,
		LastBlockAt:    &blocked,
		Paused:         true,
		Now:            now,
	})
	assert.GreaterOrEqual(t, score, 0)
}

func TestScoreWeightFormula(t *testing.T) {
	now := time.Now()

	// 10 + 12 - 100/20 + 2 - 0 + 30 (never blocked) + 2*2 = 46.
	b := ScoreWeight(WeightSnapshot{
		AccountAgeMonths: 12,
		ManualPriority:   2,
		SentDay:          100,
		FailedDay:        0,
		SuccessRate24h:   99,
		Now:              now,
	})
	assert.InDelta(t, 46.0, b.Total, 0.001)
	assert.Equal(t, 30.0, b.RecoveryBonus)
}

func TestScoreWeightRecoveryBonusGrowsAndCaps(t *testing.T) {
	now := time.Now()

	day := now.Add(-24 * time.Hour)
	b := ScoreWeight(WeightSnapshot{LastBlockAt: &day, Now: now})
	assert.InDelta(t, 1.0, b.RecoveryBonus, 0.001)

	months := now.Add(-100 * 24 * time.Hour)
	b = ScoreWeight(WeightSnapshot{LastBlockAt: &months, Now: now})
	assert.Equal(t, 30.0, b.RecoveryBonus)
}

func TestScoreWeightFloor(t *testing.T) {
	now := time.Now()
	blocked := now.Add(-time.Hour)

	b := ScoreWeight(WeightSnapshot{
		SentDay:     400,
		FailedDay:   20,
		LastBlockAt: &blocked,
		Now:         now,
	})
	assert.Equal(t, 1.0, b.Total)
}
