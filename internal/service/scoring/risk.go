package scoring

import "strconv"

// RiskSnapshot is everything the risk scorer looks at, loaded by the caller.
type RiskSnapshot struct {
	SentHour   int
	Sent3Hours int
	SentDay    int
	FailedDay  int

	ReceivedDay int

	// Burst window: completed sends in the trailing 5 minutes.
	SentLast5Min int
	// Duplicate content: most recipients any single message body reached
	// through this profile in the trailing hour.
	MaxRecipientsPerMessage int
	// Rapid sends: gaps under 30s between consecutive sends, trailing 10 min.
	RapidGapCount int

	HourlyLimit int
	ThreeHour   int
	DailyLimit  int
}

// Pattern is one detected risk signal with its contribution and remedy.
type Pattern struct {
	Name           string `json:"name"`
	Score          int    `json:"score"`
	Detail         string `json:"detail"`
	Recommendation string `json:"recommendation"`
	// Advisory patterns inform operators but never raise the overall score.
	Advisory bool `json:"advisory"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type RiskAssessment struct {
	Overall  int       `json:"overall"`
	Level    RiskLevel `json:"level"`
	Patterns []Pattern `json:"patterns"`
}

// ScoreRisk evaluates the four scoring patterns (speed, burst, duplicate
// content, failure rate) plus advisory signals. The overall score is the
// maximum of the scoring patterns: one severe pattern must dominate instead
// of being averaged away.
func ScoreRisk(snap RiskSnapshot) RiskAssessment {
	var patterns []Pattern
	overall := 0

	add := func(p Pattern) {
		if p.Score <= 0 {
			return
		}
		if p.Score > 100 {
			p.Score = 100
		}
		patterns = append(patterns, p)
		if !p.Advisory && p.Score > overall {
			overall = p.Score
		}
	}

	add(speedPattern(snap))
	add(burstPattern(snap))
	add(duplicateContentPattern(snap))
	add(failureRatePattern(snap))

	add(engagementPattern(snap))
	add(limitProximityPattern(snap))
	add(rapidSendsPattern(snap))

	return RiskAssessment{
		Overall:  overall,
		Level:    levelFor(overall),
		Patterns: patterns,
	}
}

func levelFor(score int) RiskLevel {
	switch {
	case score > 70:
		return RiskHigh
	case score > 35:
		return RiskMedium
	default:
		return RiskLow
	}
}

// speedPattern flags profiles averaging above one send per minute over the
// trailing hour.
func speedPattern(snap RiskSnapshot) Pattern {
	p := Pattern{
		Name:           "sending_speed",
		Recommendation: "Increase cooldown between messages.",
	}
	switch {
	case snap.SentHour > 120:
		p.Score = 80
	case snap.SentHour > 90:
		p.Score = 50
	case snap.SentHour > 60:
		p.Score = 25
	}
	if p.Score > 0 {
		p.Detail = itoa(snap.SentHour) + " sends in the last hour"
	}
	return p
}

func burstPattern(snap RiskSnapshot) Pattern {
	p := Pattern{
		Name:           "burst_sending",
		Recommendation: "Spread sends out; let the pacing engine set the gaps.",
	}
	switch {
	case snap.SentLast5Min > 15:
		p.Score = 80
	case snap.SentLast5Min > 10:
		p.Score = 50
	case snap.SentLast5Min > 7:
		p.Score = 25
	}
	if p.Score > 0 {
		p.Detail = itoa(snap.SentLast5Min) + " sends in the last 5 minutes"
	}
	return p
}

func duplicateContentPattern(snap RiskSnapshot) Pattern {
	p := Pattern{
		Name:           "duplicate_content",
		Recommendation: "Vary message content; use templates with personalization.",
	}
	switch {
	case snap.MaxRecipientsPerMessage > 50:
		p.Score = 80
	case snap.MaxRecipientsPerMessage > 20:
		p.Score = 45
	case snap.MaxRecipientsPerMessage > 10:
		p.Score = 20
	}
	if p.Score > 0 {
		p.Detail = "same message reached " + itoa(snap.MaxRecipientsPerMessage) + " recipients within an hour"
	}
	return p
}

// failureRatePattern scales continuously: 50% failures over the trailing day
// maps to the score ceiling. A minimum sample avoids low-volume noise.
func failureRatePattern(snap RiskSnapshot) Pattern {
	p := Pattern{
		Name:           "failure_rate",
		Recommendation: "Verify recipient addresses; review recent error messages.",
	}
	if snap.SentDay < 5 {
		return p
	}
	rate := float64(snap.FailedDay) * 100 / float64(snap.SentDay)
	if rate <= 8 {
		return p
	}
	p.Score = int(rate * 2)
	p.Detail = itoa(snap.FailedDay) + "/" + itoa(snap.SentDay) + " sends failed over the trailing day"
	return p
}

func engagementPattern(snap RiskSnapshot) Pattern {
	p := Pattern{
		Name:           "no_engagement",
		Advisory:       true,
		Recommendation: "Mix broadcasts with reply conversations; confirm recipients are real.",
	}
	switch {
	case snap.SentDay > 20 && snap.ReceivedDay == 0:
		p.Score = 20
	case snap.SentDay > 10 && snap.ReceivedDay == 0:
		p.Score = 10
	}
	if p.Score > 0 {
		p.Detail = itoa(snap.SentDay) + " sends today with no replies received"
	}
	return p
}

func limitProximityPattern(snap RiskSnapshot) Pattern {
	p := Pattern{
		Name:           "approaching_limits",
		Advisory:       true,
		Recommendation: "Reduce sending rate or raise limits carefully.",
	}
	maxPct := 0
	for _, w := range []struct{ used, limit int }{
		{snap.SentHour, snap.HourlyLimit},
		{snap.Sent3Hours, snap.ThreeHour},
		{snap.SentDay, snap.DailyLimit},
	} {
		if w.limit <= 0 {
			continue
		}
		pct := w.used * 100 / w.limit
		if pct > maxPct {
			maxPct = pct
		}
	}
	switch {
	case maxPct >= 95:
		p.Score = 15
	case maxPct >= 80:
		p.Score = 8
	}
	if p.Score > 0 {
		p.Detail = "at " + itoa(maxPct) + "% of rate limit capacity"
	}
	return p
}

func rapidSendsPattern(snap RiskSnapshot) Pattern {
	p := Pattern{
		Name:           "rapid_sequential_sends",
		Advisory:       true,
		Recommendation: "Enforce minimum 60-second gaps between messages.",
	}
	switch {
	case snap.RapidGapCount > 5:
		p.Score = 20
	case snap.RapidGapCount > 2:
		p.Score = 10
	}
	if p.Score > 0 {
		p.Detail = itoa(snap.RapidGapCount) + " sends landed within 30s of the previous one"
	}
	return p
}

func itoa(n int) string { return strconv.Itoa(n) }
