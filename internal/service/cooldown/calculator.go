package cooldown

import (
	"math/rand"

	"github.com/blockpreventer/bridge/internal/model"
)

const (
	// Hard bounds applied after every other step.
	MinSeconds = 60
	MaxSeconds = 2400

	// Package queue depth at which pacing goes critical regardless of the
	// configured rush multiplier.
	CriticalQueueDepth = 21
	criticalMultiplier = 3.0

	// 2-hour trend: the target is the linearly extrapolated hourly limit
	// discounted to 80%, so a profile running flat-out reads as "too fast".
	trendTargetFactor = 0.8
	trendSlowdown     = 1.3
	trendSpeedup      = 0.8
	trendLowRatio     = 0.5
)

// Input is everything the calculation needs, snapshotted by the caller.
type Input struct {
	DailyLimit          int
	HourlyLimit         int
	FreezeDurationHours int

	QueueDepth      int // waiting items across the whole package
	RushThreshold   int
	RushMultiplier  float64
	QuietThreshold  int
	QuietMultiplier float64

	SentLast2h int
	RiskScore  int
}

// Breakdown records each calculation step for operator-facing explainability.
type Breakdown struct {
	BaseSeconds     float64            `json:"base_seconds"`
	RandomLow       float64            `json:"random_low"`
	RandomHigh      float64            `json:"random_high"`
	RandomDraw      float64            `json:"random_draw"`
	QueueDepth      int                `json:"queue_depth"`
	QueueMultiplier float64            `json:"queue_multiplier"`
	TrendActual     int                `json:"trend_actual_2h"`
	TrendExpected   float64            `json:"trend_expected_2h"`
	TrendMultiplier float64            `json:"trend_multiplier"`
	RiskScore       int                `json:"risk_score"`
	RiskMultiplier  float64            `json:"risk_multiplier"`
	FinalSeconds    int                `json:"final_seconds"`
	Mode            model.CooldownMode `json:"mode"`
}

type Result struct {
	Seconds   int
	Mode      model.CooldownMode
	Breakdown Breakdown
}

// Calculator computes adaptive per-profile cooldowns. The random source is
// injected so tests can pin the draw.
type Calculator struct {
	rng *rand.Rand
}

func NewCalculator(rng *rand.Rand) *Calculator {
	return &Calculator{rng: rng}
}

// Compute applies the pacing steps in strict order: base from daily budget,
// uniform jitter, queue-pressure multiplier, 2-hour trend, risk multiplier,
// clamp.
func (c *Calculator) Compute(in Input) Result {
	b := Breakdown{QueueDepth: in.QueueDepth, RiskScore: in.RiskScore}

	// Step 1: base. The sendable day excludes the freeze window.
	daily := in.DailyLimit
	if daily < 1 {
		daily = 1
	}
	activeSeconds := float64(24-in.FreezeDurationHours) * 3600
	b.BaseSeconds = activeSeconds / float64(daily)

	// Step 2: uniform draw from [0.5x, 1.5x]. Independent per call so
	// profiles never synchronize.
	b.RandomLow = b.BaseSeconds * 0.5
	b.RandomHigh = b.BaseSeconds * 1.5
	b.RandomDraw = b.RandomLow + c.rng.Float64()*(b.RandomHigh-b.RandomLow)
	value := b.RandomDraw

	// Step 3: queue pressure.
	mode, queueMult := queueTier(in)
	b.Mode = mode
	b.QueueMultiplier = queueMult
	value *= queueMult

	// Step 4: 2-hour trend against the extrapolated target.
	b.TrendExpected = float64(in.HourlyLimit*2) * trendTargetFactor
	b.TrendActual = in.SentLast2h
	b.TrendMultiplier = 1.0
	if b.TrendExpected > 0 {
		ratio := float64(in.SentLast2h) / b.TrendExpected
		if ratio > 1.0 {
			b.TrendMultiplier = trendSlowdown
		} else if ratio < trendLowRatio {
			b.TrendMultiplier = trendSpeedup
		}
	}
	value *= b.TrendMultiplier

	// Step 5: risk.
	b.RiskMultiplier = riskMultiplier(in.RiskScore)
	value *= b.RiskMultiplier

	// Step 6: clamp.
	if value < MinSeconds {
		value = MinSeconds
	}
	if value > MaxSeconds {
		value = MaxSeconds
	}
	b.FinalSeconds = int(value)

	return Result{Seconds: b.FinalSeconds, Mode: mode, Breakdown: b}
}

func queueTier(in Input) (model.CooldownMode, float64) {
	switch {
	case in.QueueDepth >= CriticalQueueDepth:
		return model.CooldownModeCritical, criticalMultiplier
	case in.QueueDepth > in.RushThreshold:
		return model.CooldownModeRush, in.RushMultiplier
	case in.QueueDepth <= in.QuietThreshold:
		return model.CooldownModeQuiet, in.QuietMultiplier
	default:
		return model.CooldownModeNormal, 1.0
	}
}

func riskMultiplier(risk int) float64 {
	switch {
	case risk > 80:
		return 2.0
	case risk > 50:
		return 1.5
	case risk > 20:
		return 1.2
	default:
		return 1.0
	}
}
