package autoadjust

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/blockpreventer/bridge/internal/model"
)

func TestScaleNeverStallsSmallLimits(t *testing.T) {
	// 5 * 1.10 truncates back to 5; the helper must still move.
	assert.Equal(t, 6, scale(5, 1+increaseBy))
	assert.Equal(t, 4, scale(5, 1-decreaseBy))

	// Large limits move by the factor itself.
	assert.Equal(t, 110, scale(100, 1.10))
	assert.Equal(t, 85, scale(100, 0.85))

	// Identity factor stays put.
	assert.Equal(t, 100, scale(100, 1.0))
}

func TestClampBounds(t *testing.T) {
	assert.Equal(t, 10, clamp(5, 10, 100))
	assert.Equal(t, 100, clamp(150, 10, 100))
	assert.Equal(t, 50, clamp(50, 10, 100))

	// Zero bounds are treated as unset.
	assert.Equal(t, 5, clamp(5, 0, 0))
	assert.Equal(t, 1000, clamp(1000, 0, 0))

	// Never below 1 even with no floor configured.
	assert.Equal(t, 1, clamp(0, 0, 0))
	assert.Equal(t, 1, clamp(-3, 0, 0))
}

func TestRepeatedDecreaseStaysAboveFloor(t *testing.T) {
	v := 40
	for i := 0; i < 50; i++ {
		v = clamp(scale(v, 1-decreaseBy), 0, 0)
	}
	assert.Equal(t, 1, v)
}

func TestEvaluationIntervalPerPackage(t *testing.T) {
	s := &Service{}
	now := time.Now()

	pkg := &model.Package{AutoAdjustIntervalMins: 60}
	pkg.ID = uuid.New()
	assert.True(t, s.due(pkg, now))
	assert.False(t, s.due(pkg, now.Add(30*time.Minute)))
	assert.True(t, s.due(pkg, now.Add(61*time.Minute)))

	// An unset interval falls back to six hours.
	def := &model.Package{}
	def.ID = uuid.New()
	assert.True(t, s.due(def, now))
	assert.False(t, s.due(def, now.Add(5*time.Hour)))
	assert.True(t, s.due(def, now.Add(7*time.Hour)))

	// Packages pace independently.
	other := &model.Package{AutoAdjustIntervalMins: 60}
	other.ID = uuid.New()
	assert.True(t, s.due(other, now.Add(30*time.Minute)))
}

func TestPausedPenaltyCompoundsWithDecrease(t *testing.T) {
	factor := (1 - decreaseBy) * (1 - pausedExtraDecrease)
	assert.InDelta(t, 0.68, factor, 0.001)
	assert.Equal(t, 68, scale(100, factor))
}
