package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockpreventer/bridge/internal/model"
)

func TestPackageDefaults(t *testing.T) {
	pkg := &model.Package{}
	applyPackageDefaults(pkg)

	assert.Equal(t, model.PackageStatusActive, pkg.Status)
	assert.Equal(t, model.DistributionRoundRobin, pkg.DistributionMode)
	assert.Equal(t, 1, pkg.MaxConcurrentSends)
	assert.Equal(t, 2, pkg.FreezeDurationHours)
	assert.Equal(t, 5, pkg.AutoPauseFailures)
	assert.InDelta(t, 50.0, pkg.AutoPauseSuccessRate, 0.001)
	assert.Equal(t, 3, pkg.RetryMaxAttempts)
	assert.Equal(t, 5, pkg.RetryBaseDelaySec)
}

func TestPackageDefaultsKeepExplicitValues(t *testing.T) {
	pkg := &model.Package{
		DistributionMode:     model.DistributionSmart,
		AutoPauseFailures:    3,
		AutoPauseSuccessRate: 90,
	}
	applyPackageDefaults(pkg)

	assert.Equal(t, model.DistributionSmart, pkg.DistributionMode)
	assert.Equal(t, 3, pkg.AutoPauseFailures)
	assert.InDelta(t, 90.0, pkg.AutoPauseSuccessRate, 0.001)
}
