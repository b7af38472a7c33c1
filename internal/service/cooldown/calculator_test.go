package cooldown

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockpreventer/bridge/internal/model"
)

func fixedCalculator(seed int64) *Calculator {
	return NewCalculator(rand.New(rand.NewSource(seed)))
}

func baseInput() Input {
	return Input{
		DailyLimit:          600,
		HourlyLimit:         50,
		FreezeDurationHours: 4,
		QueueDepth:          8,
		RushThreshold:       10,
		RushMultiplier:      1.5,
		QuietThreshold:      5,
		QuietMultiplier:     0.7,
		SentLast2h:          40,
		RiskScore:           0,
	}
}

func TestComputeBaseFromDailyBudget(t *testing.T) {
	res := fixedCalculator(1).Compute(baseInput())

	// 20 active hours / 600 per day = 120s before modifiers.
	assert.InDelta(t, 120.0, res.Breakdown.BaseSeconds, 0.001)
	assert.Equal(t, model.CooldownModeNormal, res.Mode)
}

func TestComputeRandomDrawStaysInBand(t *testing.T) {
	calc := fixedCalculator(42)
	for i := 0; i < 200; i++ {
		res := calc.Compute(baseInput())
		assert.GreaterOrEqual(t, res.Breakdown.RandomDraw, res.Breakdown.BaseSeconds*0.5)
		assert.LessOrEqual(t, res.Breakdown.RandomDraw, res.Breakdown.BaseSeconds*1.5)
	}
}

func TestComputeClampBounds(t *testing.T) {
	calc := fixedCalculator(7)

	// Tiny budget: base explodes, final must clamp at the ceiling.
	slow := baseInput()
	slow.DailyLimit = 10
	slow.RiskScore = 90
	res := calc.Compute(slow)
	assert.Equal(t, MaxSeconds, res.Seconds)

	// Huge budget: base collapses, final must clamp at the floor.
	fast := baseInput()
	fast.DailyLimit = 100000
	fast.QueueDepth = 3 // quiet discount too
	res = calc.Compute(fast)
	assert.Equal(t, MinSeconds, res.Seconds)
}

func TestComputeQueueTiers(t *testing.T) {
	calc := fixedCalculator(3)

	tests := []struct {
		depth    int
		mode     model.CooldownMode
		expected float64
	}{
		{3, model.CooldownModeQuiet, 0.7},
		{8, model.CooldownModeNormal, 1.0},
		{15, model.CooldownModeRush, 1.5},
		{21, model.CooldownModeCritical, 3.0},
		{50, model.CooldownModeCritical, 3.0},
	}
	for _, tt := range tests {
		in := baseInput()
		in.QueueDepth = tt.depth
		res := calc.Compute(in)
		assert.Equal(t, tt.mode, res.Mode, "depth %d", tt.depth)
		assert.Equal(t, tt.expected, res.Breakdown.QueueMultiplier, "depth %d", tt.depth)
	}
}

func TestComputeCriticalOverridesRushConfig(t *testing.T) {
	in := baseInput()
	in.QueueDepth = CriticalQueueDepth
	in.RushMultiplier = 9.9

	res := fixedCalculator(5).Compute(in)
	assert.Equal(t, model.CooldownModeCritical, res.Mode)
	assert.Equal(t, 3.0, res.Breakdown.QueueMultiplier)
}

func TestComputeTrendMultiplier(t *testing.T) {
	calc := fixedCalculator(11)

	// Expected 2h target: 50*2*0.8 = 80.
	tests := []struct {
		sent2h   int
		expected float64
	}{
		{100, 1.3}, // over target, slow down
		{60, 1.0},  // inside band
		{30, 0.8},  // under half target, speed up
	}
	for _, tt := range tests {
		in := baseInput()
		in.SentLast2h = tt.sent2h
		res := calc.Compute(in)
		assert.Equal(t, tt.expected, res.Breakdown.TrendMultiplier, "sent2h %d", tt.sent2h)
	}
}

func TestComputeRiskMultiplier(t *testing.T) {
	calc := fixedCalculator(13)

	tests := []struct {
		risk     int
		expected float64
	}{
		{0, 1.0},
		{20, 1.0},
		{21, 1.2},
		{50, 1.2},
		{51, 1.5},
		{80, 1.5},
		{81, 2.0},
		{100, 2.0},
	}
	for _, tt := range tests {
		in := baseInput()
		in.RiskScore = tt.risk
		res := calc.Compute(in)
		assert.Equal(t, tt.expected, res.Breakdown.RiskMultiplier, "risk %d", tt.risk)
	}
}

func TestComputeFinalAlwaysWithinBounds(t *testing.T) {
	calc := fixedCalculator(99)
	for daily := 1; daily < 5000; daily += 97 {
		for depth := 0; depth < 40; depth += 7 {
			in := baseInput()
			in.DailyLimit = daily
			in.QueueDepth = depth
			res := calc.Compute(in)
			assert.GreaterOrEqual(t, res.Seconds, MinSeconds)
			assert.LessOrEqual(t, res.Seconds, MaxSeconds)
		}
	}
}

func TestComputeZeroDailyLimitDoesNotPanic(t *testing.T) {
	in := baseInput()
	in.DailyLimit = 0
	res := fixedCalculator(17).Compute(in)
	assert.GreaterOrEqual(t, res.Seconds, MinSeconds)
}
