package distribution

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/blockpreventer/bridge/internal/model"
)

// ErrNoEligibleProfile is terminal: the caller must surface it, not retry.
var ErrNoEligibleProfile = errors.New("no eligible profile")

// Smart-mode composite factors are fixed constants. Risk enters as a
// penalty multiplier rather than a term so a risky profile can never win on
// raw weight alone.
const (
	smartRiskPenaltyHigh     = 0.5 // risk > 50
	smartRiskPenaltyElevated = 0.8 // risk > 20
)

// Candidate is one eligible profile with its load snapshot. Remaining is the
// minimum queue-aware remaining capacity across the three windows.
type Candidate struct {
	Profile   *model.Profile
	Ledger    *model.ProfileLedger
	Pending   int
	Remaining int
	DailyCap  int
}

// BuildCandidates applies the eligibility filter: active status, expired
// cooldown, and room left in every window with pending queue load counted.
func BuildCandidates(pkg *model.Package, profiles []*model.Profile, ledgers map[uuid.UUID]*model.ProfileLedger, pending map[uuid.UUID]int, now time.Time) []*Candidate {
	var out []*Candidate
	for _, p := range profiles {
		if !p.Sendable() {
			continue
		}
		l := ledgers[p.ID]
		if l == nil {
			continue
		}
		if l.InCooldown(now) {
			continue
		}
		pend := pending[p.ID]
		h, h3, d := l.RemainingCapacity(pkg.EffectiveHourly(p), pkg.Effective3Hours(p), pkg.EffectiveDaily(p), pend)
		remaining := min(h, min(h3, d))
		if remaining <= 0 {
			continue
		}
		out = append(out, &Candidate{
			Profile:   p,
			Ledger:    l,
			Pending:   pend,
			Remaining: remaining,
			DailyCap:  pkg.EffectiveDaily(p),
		})
	}
	// Stable order so the round-robin cursor is deterministic.
	sort.Slice(out, func(i, j int) bool {
		return out[i].Profile.CreatedAt.Before(out[j].Profile.CreatedAt)
	})
	return out
}

// Assignment maps profile → the recipients it will carry.
type Assignment map[uuid.UUID][]string

// Assign distributes recipients over the candidates using the given mode.
// Every mode respects each candidate's remaining capacity; recipients that
// no candidate can absorb are returned as overflow.
func Assign(mode model.DistributionMode, cands []*Candidate, recipients []string, rng *rand.Rand) (Assignment, []string, error) {
	if len(cands) == 0 {
		return nil, nil, ErrNoEligibleProfile
	}

	out := make(Assignment)
	assigned := make(map[uuid.UUID]int)

	take := func(c *Candidate, r string) {
		out[c.Profile.ID] = append(out[c.Profile.ID], r)
		assigned[c.Profile.ID]++
	}
	room := func(c *Candidate) int {
		return c.Remaining - assigned[c.Profile.ID]
	}

	var overflow []string
	switch mode {
	case model.DistributionRandom:
		for _, r := range recipients {
			perm := rng.Perm(len(cands))
			placed := false
			for _, idx := range perm {
				if room(cands[idx]) > 0 {
					take(cands[idx], r)
					placed = true
					break
				}
			}
			if !placed {
				overflow = append(overflow, r)
			}
		}

	case model.DistributionWeighted:
		for _, r := range recipients {
			c := pickWeighted(cands, room, rng)
			if c == nil {
				overflow = append(overflow, r)
				continue
			}
			take(c, r)
		}

	case model.DistributionSmart:
		cursor := totalLoad(cands) % len(cands)
		for _, r := range recipients {
			c := pickSmart(cands, room, cursor)
			if c == nil {
				overflow = append(overflow, r)
				continue
			}
			take(c, r)
			cursor = (cursor + 1) % len(cands)
		}

	default: // round_robin
		// The cursor is derived from the pool's total load so separate
		// single-recipient submissions interleave the same way one
		// multi-recipient submission would.
		offset := totalLoad(cands) % len(cands)
		for i, r := range recipients {
			placed := false
			for j := 0; j < len(cands); j++ {
				c := cands[(offset+i+j)%len(cands)]
				if room(c) > 0 {
					take(c, r)
					placed = true
					break
				}
			}
			if !placed {
				overflow = append(overflow, r)
			}
		}
	}

	if len(out) == 0 {
		return nil, nil, ErrNoEligibleProfile
	}
	return out, overflow, nil
}

func totalLoad(cands []*Candidate) int {
	total := 0
	for _, c := range cands {
		total += c.Ledger.SentDay + c.Pending
	}
	return total
}

// pickWeighted draws proportionally to weight score among candidates with
// room, falling back to uniform when every weight is zero.
func pickWeighted(cands []*Candidate, room func(*Candidate) int, rng *rand.Rand) *Candidate {
	var open []*Candidate
	total := 0.0
	for _, c := range cands {
		if room(c) > 0 {
			open = append(open, c)
			total += maxf(c.Profile.WeightScore, 0)
		}
	}
	if len(open) == 0 {
		return nil
	}
	if total <= 0 {
		return open[rng.Intn(len(open))]
	}
	draw := rng.Float64() * total
	for _, c := range open {
		draw -= maxf(c.Profile.WeightScore, 0)
		if draw <= 0 {
			return c
		}
	}
	return open[len(open)-1]
}

// pickSmart scores each open candidate and returns the best; the cursor
// breaks exact ties so equal-scored profiles rotate instead of starving.
func pickSmart(cands []*Candidate, room func(*Candidate) int, cursor int) *Candidate {
	var best *Candidate
	bestScore := -1.0
	for i := 0; i < len(cands); i++ {
		c := cands[(cursor+i)%len(cands)]
		if room(c) <= 0 {
			continue
		}
		s := smartScore(c, room(c))
		if s > bestScore {
			best = c
			bestScore = s
		}
	}
	return best
}

func smartScore(c *Candidate, remaining int) float64 {
	daily := c.DailyCap
	if daily < 1 {
		daily = 1
	}
	score := maxf(c.Profile.WeightScore, 1) *
		(float64(c.Profile.HealthScore) / 100) *
		(float64(remaining) / float64(daily)) *
		(c.Ledger.SuccessRate24h / 100)

	switch {
	case c.Profile.RiskScore > 50:
		score *= smartRiskPenaltyHigh
	case c.Profile.RiskScore > 20:
		score *= smartRiskPenaltyElevated
	}
	return score
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
