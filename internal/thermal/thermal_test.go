package thermal

import (
	"math"
	"testing"

	"github.com/lox/vocmax/internal/pverr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupPresets(t *testing.T) {
	c, err := Lookup(OpenRackGlassPolymer)
	require.NoError(t, err)
	assert.Equal(t, Coefficients{A: -3.56, B: -0.0750, DeltaT: 3}, c)

	_, err = Lookup("roof_mount")
	assert.True(t, pverr.IsConfiguration(err))

	assert.Len(t, Presets(), 4)
	assert.Equal(t, CloseMountGlassGlass, Presets()[0])
}

func TestCellTemperature(t *testing.T) {
	m, err := Params{Preset: OpenRackGlassGlass}.Resolve(0)
	require.NoError(t, err)

	want := 800*math.Exp(-3.47-0.0594*2) + 10 + 0.8*3
	assert.InDelta(t, want, m.CellTemperature(800, 10, 2), 1e-9)
	assert.Equal(t, 10.0, m.CellTemperature(0, 10, 2), "no irradiance means ambient")
}

func TestCellTemperatureMonotonic(t *testing.T) {
	m, err := Params{Preset: InsulatedBackGlassPolymer}.Resolve(0)
	require.NoError(t, err)

	prev := math.Inf(-1)
	for poa := 0.0; poa <= 1200; poa += 100 {
		got := m.CellTemperature(poa, 20, 1)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
	assert.Less(t, m.CellTemperature(800, 20, 10), m.CellTemperature(800, 20, 0), "wind cools")
}

func TestExplicitCoefficients(t *testing.T) {
	p := Params{Preset: Explicit, Coefficients: Coefficients{A: -100, B: 0, DeltaT: 0}}
	m, err := p.Resolve(0)
	require.NoError(t, err)
	assert.InDelta(t, 25, m.CellTemperature(1000, 25, 0), 1e-9)

	p.Coefficients.A = math.NaN()
	_, err = p.Resolve(0)
	assert.True(t, pverr.IsConfiguration(err))
}

func TestOpenCircuitRise(t *testing.T) {
	p := Params{Preset: OpenRackGlassPolymer, OpenCircuitRise: true}

	m, err := p.Resolve(0.2)
	require.NoError(t, err)
	want := (1000*math.Exp(-3.56) + 3) * 0.25
	assert.InDelta(t, want, m.Rise, 1e-9)
	assert.InDelta(t, 20+want, m.CellTemperature(0, 20, 3), 1e-9, "rise is flat")

	_, err = p.Resolve(0)
	assert.True(t, pverr.IsConfiguration(err), "derived rise needs efficiency")

	rise := 1.5
	p.RiseC = &rise
	m, err = p.Resolve(0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, m.Rise)
}
