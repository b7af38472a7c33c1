package scoring

import "time"

// WeightSnapshot feeds the weighted-distribution score.
type WeightSnapshot struct {
	AccountAgeMonths int
	ManualPriority   int

	SentDay        int
	FailedDay      int
	SuccessRate24h float64

	LastBlockAt *time.Time
	Now         time.Time
}

// WeightBreakdown itemizes every bounded contribution so the composite stays
// interpretable.
type WeightBreakdown struct {
	Base            float64 `json:"base"`
	AccountAgeBonus float64 `json:"account_age_bonus"`
	UsagePenalty    float64 `json:"usage_penalty"`
	SuccessBonus    float64 `json:"success_bonus"`
	FailurePenalty  float64 `json:"failure_penalty"`
	RecoveryBonus   float64 `json:"recovery_bonus"`
	PriorityBonus   float64 `json:"priority_bonus"`
	Total           float64 `json:"total"`
}

const (
	weightBase        = 10.0
	weightFloor       = 1.0
	maxRecoveryBonus  = 30.0
	successBonusValue = 2.0
)

// ScoreWeight computes the distribution weight: base plus account age and
// priority, minus usage and failures, plus a recovery bonus that grows with
// time since the last block (capped; never-blocked profiles get the cap).
func ScoreWeight(snap WeightSnapshot) WeightBreakdown {
	b := WeightBreakdown{Base: weightBase}

	b.AccountAgeBonus = float64(snap.AccountAgeMonths)
	b.UsagePenalty = float64(snap.SentDay) / 20.0
	if snap.SuccessRate24h > 95 {
		b.SuccessBonus = successBonusValue
	}
	b.FailurePenalty = float64(snap.FailedDay) * 3.0

	if snap.LastBlockAt == nil {
		b.RecoveryBonus = maxRecoveryBonus
	} else {
		hours := snap.Now.Sub(*snap.LastBlockAt).Hours()
		if hours < 0 {
			hours = 0
		}
		b.RecoveryBonus = hours / 24.0
		if b.RecoveryBonus > maxRecoveryBonus {
			b.RecoveryBonus = maxRecoveryBonus
		}
	}

	b.PriorityBonus = float64(snap.ManualPriority) * 2.0

	b.Total = b.Base + b.AccountAgeBonus - b.UsagePenalty + b.SuccessBonus -
		b.FailurePenalty + b.RecoveryBonus + b.PriorityBonus
	if b.Total < weightFloor {
		b.Total = weightFloor
	}
	return b
}
