package scoring

import "time"

// HealthSnapshot feeds the capacity-oriented health score.
type HealthSnapshot struct {
	SuccessRate24h float64
	SentDay        int

	LastBlockAt *time.Time
	Paused      bool

	Now time.Time
}

const healthBaseline = 100

// ScoreHealth starts from the baseline and deducts for sustained failure and
// recent blocks. Block damage decays linearly over a week, so a profile that
// keeps performing recovers on its own.
func ScoreHealth(snap HealthSnapshot) int {
	score := healthBaseline

	// Success-rate deductions only kick in once there is real volume.
	if snap.SentDay >= 5 {
		switch {
		case snap.SuccessRate24h < 50:
			score -= 40
		case snap.SuccessRate24h < 80:
			score -= 25
		case snap.SuccessRate24h < 95:
			score -= 10
		}
	}

	if snap.LastBlockAt != nil {
		hoursSince := snap.Now.Sub(*snap.LastBlockAt).Hours()
		if hoursSince < 0 {
			hoursSince = 0
		}
		const recoveryHours = 7 * 24
		if hoursSince < recoveryHours {
			damage := 40 * (1 - hoursSince/recoveryHours)
			score -= int(damage)
		}
	}

	if snap.Paused {
		score -= 15
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
