package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lox/vocmax/internal/pvmodule"
)

func TestSafetyFactors(t *testing.T) {
	ref := pvmodule.Reference{Voco: 50, Bvoco: -0.15}

	assert.InDelta(t, 0.015, WeatherDataSafetyFactor(5, ref), 1e-12)
	assert.Zero(t, WeatherDataSafetyFactor(-2, ref))
	assert.InDelta(t, 0.009, ExtremeColdSafetyFactor(-5, -8, ref), 1e-12)
	assert.Zero(t, ExtremeColdSafetyFactor(-5, -5, ref))
	assert.Zero(t, WeatherDataSafetyFactor(5, pvmodule.Reference{}))

	assert.InDelta(t, 0.016, SuggestedAdditionalSafetyFactor(false), 1e-12)
	assert.InDelta(t, 0.020, SuggestedAdditionalSafetyFactor(true), 1e-12)

	b := SafetyFactorBreakdown{WeatherData: 0.01, ExtremeCold: 0.02, Additional: 0.016}.Sum()
	assert.InDelta(t, 0.026, b.Total, 1e-12)
	b.IncludeExtremeCold = true
	assert.InDelta(t, 0.046, b.Sum().Total, 1e-12)
}
