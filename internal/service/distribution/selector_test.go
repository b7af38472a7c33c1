package distribution

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpreventer/bridge/internal/model"
)

func testPackage() *model.Package {
	return &model.Package{
		MaxPerHour:   10,
		MaxPer3Hours: 25,
		MaxPerDay:    60,
	}
}

func testProfile(name string, createdOffset time.Duration) *model.Profile {
	p := &model.Profile{
		Name:        name,
		Status:      model.ProfileStatusActive,
		WeightScore: 10,
		HealthScore: 100,
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Unix(0, 0).Add(createdOffset)
	return p
}

func freshLedger(id uuid.UUID) *model.ProfileLedger {
	return &model.ProfileLedger{
		ProfileID:      id,
		SuccessRate24h: 100,
	}
}

func poolOf(n int) ([]*model.Profile, map[uuid.UUID]*model.ProfileLedger) {
	profiles := make([]*model.Profile, n)
	ledgers := make(map[uuid.UUID]*model.ProfileLedger, n)
	for i := 0; i < n; i++ {
		profiles[i] = testProfile(fmt.Sprintf("p%d", i), time.Duration(i)*time.Minute)
		ledgers[profiles[i].ID] = freshLedger(profiles[i].ID)
	}
	return profiles, ledgers
}

func recipients(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("+1555000%04d", i)
	}
	return out
}

func TestBuildCandidatesFilters(t *testing.T) {
	now := time.Now()
	pkg := testPackage()
	profiles, ledgers := poolOf(4)

	// p1 paused.
	profiles[1].Status = model.ProfileStatusPaused
	// p2 in cooldown.
	expires := now.Add(time.Minute)
	ledgers[profiles[2].ID].CooldownExpiresAt = &expires
	// p3 out of daily capacity once pending is counted.
	ledgers[profiles[3].ID].SentDay = 55
	pending := map[uuid.UUID]int{profiles[3].ID: 5}

	cands := BuildCandidates(pkg, profiles, ledgers, pending, now)
	require.Len(t, cands, 1)
	assert.Equal(t, profiles[0].ID, cands[0].Profile.ID)
}

func TestBuildCandidatesRemainingIsMinWindow(t *testing.T) {
	now := time.Now()
	pkg := testPackage()
	profiles, ledgers := poolOf(1)

	l := ledgers[profiles[0].ID]
	l.SentHour = 7  // 3 left
	l.Sent3Hours = 5 // 20 left
	l.SentDay = 10   // 50 left

	cands := BuildCandidates(pkg, profiles, ledgers, nil, now)
	require.Len(t, cands, 1)
	assert.Equal(t, 3, cands[0].Remaining)
}

func TestBuildCandidatesExpiredCooldownIsEligible(t *testing.T) {
	now := time.Now()
	pkg := testPackage()
	profiles, ledgers := poolOf(1)

	expired := now.Add(-time.Second)
	ledgers[profiles[0].ID].CooldownExpiresAt = &expired

	cands := BuildCandidates(pkg, profiles, ledgers, nil, now)
	assert.Len(t, cands, 1)
}

func TestAssignNoEligibleProfile(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, _, err := Assign(model.DistributionRoundRobin, nil, recipients(1), rng)
	assert.ErrorIs(t, err, ErrNoEligibleProfile)
}

func TestAssignRoundRobinEvenSpread(t *testing.T) {
	now := time.Now()
	profiles, ledgers := poolOf(3)
	cands := BuildCandidates(testPackage(), profiles, ledgers, nil, now)
	rng := rand.New(rand.NewSource(1))

	assignment, overflow, err := Assign(model.DistributionRoundRobin, cands, recipients(9), rng)
	require.NoError(t, err)
	assert.Empty(t, overflow)
	for _, c := range cands {
		assert.Len(t, assignment[c.Profile.ID], 3)
	}
}

func TestAssignRoundRobinCursorFollowsLoad(t *testing.T) {
	// With total pool load 1, the cursor starts at the second profile, so
	// back-to-back single-recipient submissions keep rotating.
	now := time.Now()
	profiles, ledgers := poolOf(3)
	ledgers[profiles[0].ID].SentDay = 1

	cands := BuildCandidates(testPackage(), profiles, ledgers, nil, now)
	rng := rand.New(rand.NewSource(1))

	assignment, _, err := Assign(model.DistributionRoundRobin, cands, recipients(1), rng)
	require.NoError(t, err)
	assert.Len(t, assignment[profiles[1].ID], 1)
}

func TestAssignRespectsCapacityAndOverflows(t *testing.T) {
	now := time.Now()
	pkg := testPackage()
	profiles, ledgers := poolOf(2)

	// Each profile has only 2 hourly slots left.
	for _, p := range profiles {
		ledgers[p.ID].SentHour = 8
	}
	cands := BuildCandidates(pkg, profiles, ledgers, nil, now)
	rng := rand.New(rand.NewSource(1))

	assignment, overflow, err := Assign(model.DistributionRoundRobin, cands, recipients(7), rng)
	require.NoError(t, err)
	assert.Len(t, overflow, 3)

	total := 0
	for id, rs := range assignment {
		assert.LessOrEqual(t, len(rs), 2, id.String())
		total += len(rs)
	}
	assert.Equal(t, 4, total)
}

func TestAssignRandomNeverExceedsCapacity(t *testing.T) {
	now := time.Now()
	profiles, ledgers := poolOf(3)
	for _, p := range profiles {
		ledgers[p.ID].SentHour = 9 // 1 slot each
	}
	cands := BuildCandidates(testPackage(), profiles, ledgers, nil, now)
	rng := rand.New(rand.NewSource(2))

	assignment, overflow, err := Assign(model.DistributionRandom, cands, recipients(5), rng)
	require.NoError(t, err)
	assert.Len(t, overflow, 2)
	for id, rs := range assignment {
		assert.Len(t, rs, 1, id.String())
	}
}

func TestAssignWeightedFavorsHeavierProfiles(t *testing.T) {
	now := time.Now()
	profiles, ledgers := poolOf(2)
	profiles[0].WeightScore = 90
	profiles[1].WeightScore = 10

	cands := BuildCandidates(testPackage(), profiles, ledgers, nil, now)
	rng := rand.New(rand.NewSource(3))

	heavy, light := 0, 0
	for i := 0; i < 500; i++ {
		assignment, _, err := Assign(model.DistributionWeighted, cands, recipients(1), rng)
		require.NoError(t, err)
		if len(assignment[profiles[0].ID]) == 1 {
			heavy++
		} else {
			light++
		}
	}
	assert.Greater(t, heavy, light*3)
}

func TestAssignWeightedUniformFallbackOnZeroWeights(t *testing.T) {
	now := time.Now()
	profiles, ledgers := poolOf(2)
	profiles[0].WeightScore = 0
	profiles[1].WeightScore = 0

	cands := BuildCandidates(testPackage(), profiles, ledgers, nil, now)
	rng := rand.New(rand.NewSource(4))

	counts := map[uuid.UUID]int{}
	for i := 0; i < 400; i++ {
		assignment, _, err := Assign(model.DistributionWeighted, cands, recipients(1), rng)
		require.NoError(t, err)
		for id := range assignment {
			counts[id]++
		}
	}
	assert.Greater(t, counts[profiles[0].ID], 100)
	assert.Greater(t, counts[profiles[1].ID], 100)
}

func TestAssignSmartPrefersHealthyLightProfiles(t *testing.T) {
	now := time.Now()
	profiles, ledgers := poolOf(2)

	// p0: loaded and risky; p1: idle and clean.
	profiles[0].RiskScore = 60
	ledgers[profiles[0].ID].SentDay = 40
	profiles[1].RiskScore = 0

	cands := BuildCandidates(testPackage(), profiles, ledgers, nil, now)
	rng := rand.New(rand.NewSource(5))

	assignment, _, err := Assign(model.DistributionSmart, cands, recipients(1), rng)
	require.NoError(t, err)
	assert.Len(t, assignment[profiles[1].ID], 1)
}

func TestAssignSmartNeverPicksFullProfile(t *testing.T) {
	now := time.Now()
	profiles, ledgers := poolOf(2)
	ledgers[profiles[0].ID].SentHour = 9 // 1 slot
	// p1 unconstrained.

	cands := BuildCandidates(testPackage(), profiles, ledgers, nil, now)
	rng := rand.New(rand.NewSource(6))

	assignment, overflow, err := Assign(model.DistributionSmart, cands, recipients(11), rng)
	require.NoError(t, err)
	assert.Empty(t, overflow)
	assert.LessOrEqual(t, len(assignment[profiles[0].ID]), 1)
	assert.GreaterOrEqual(t, len(assignment[profiles[1].ID]), 10)
}
