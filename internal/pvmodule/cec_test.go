package pvmodule

import (
	"math"
	"testing"

	"github.com/lox/vocmax/internal/pverr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cs5p220m(t *testing.T) CEC {
	t.Helper()
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	m, ok := cat.Lookup("Canadian Solar Inc. CS5P-220M")
	require.True(t, ok)
	return m
}

func TestCECVocAtReference(t *testing.T) {
	m := cs5p220m(t)
	require.NoError(t, m.Validate())

	v, err := m.Voc(1000, 25)
	require.NoError(t, err)
	assert.InDelta(t, 59.4, v, 0.1)

	op := m.Translate(1000, 25)
	assert.InDelta(t, m.ILRef, op.IL, 1e-12)
	assert.InDelta(t, m.IORef, op.I0, 1e-20)
	assert.InDelta(t, m.ARef, op.NNsVth, 1e-12)
}

func TestCECResidualAtSolution(t *testing.T) {
	m := cs5p220m(t)
	for _, c := range []struct{ e, temp float64 }{{1000, 25}, {300, -10}, {50, 60}, {1100, 5}} {
		v, err := m.Voc(c.e, c.temp)
		require.NoError(t, err)
		op := m.Translate(c.e, c.temp)
		res := op.IL - op.I0*(math.Exp(v/op.NNsVth)-1) - v/op.RSh
		assert.InDelta(t, 0, res, 1e-6, "e=%v t=%v", c.e, c.temp)
	}
}

func TestCECMonotonic(t *testing.T) {
	m := cs5p220m(t)

	prev := 0.0
	for e := 25.0; e <= 1200; e += 25 {
		v, err := m.Voc(e, 25)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}

	prev = math.Inf(1)
	for temp := -40.0; temp <= 85; temp += 5 {
		v, err := m.Voc(800, temp)
		require.NoError(t, err)
		assert.LessOrEqual(t, v, prev)
		prev = v
	}
}

func TestCECZeroIrradiance(t *testing.T) {
	m := cs5p220m(t)
	v, err := m.Voc(0, 25)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestSolveVocFailsClosed(t *testing.T) {
	_, err := solveVoc(Operating{IL: 1, I0: 0, RSh: 100, NNsVth: 1})
	require.Error(t, err)
	assert.True(t, pverr.IsConvergence(err))
}

func TestCECReferenceAndEfficiency(t *testing.T) {
	m := cs5p220m(t)

	ref := m.Reference()
	assert.InDelta(t, 59.4, ref.Voco, 0.1)
	assert.Equal(t, -0.22216, ref.Bvoco)

	m.BetaOC = 0
	assert.InDelta(t, -0.24, m.Reference().Bvoco, 0.02)

	assert.InDelta(t, 46.9*4.69/1700, m.Base().Efficiency, 1e-12)
	assert.InDelta(t, 1.069, m.NDiode(), 0.005)
}

func TestCECToSimplified(t *testing.T) {
	m := cs5p220m(t)
	s, err := m.ToSimplified()
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, 96, s.CellsInSeries)
	assert.InDelta(t, m.NDiode(), s.NDiode, 1e-12)
	assert.Less(t, math.Abs(s.Mbvoc), 0.05)

	cec, _ := m.Voc(1000, 25)
	simp, _ := s.Voc(1000, 25)
	assert.InDelta(t, cec, simp, 1e-9)

	cec, _ = m.Voc(600, 10)
	simp, _ = s.Voc(600, 10)
	assert.InDelta(t, cec, simp, 1.0)
}

func TestCECToSimplifiedMatchesLowLightSlope(t *testing.T) {
	m := cs5p220m(t)
	// A datasheet coefficient that differs from the diode model's own slope.
	m.BetaOC = 1.1 * m.tempCoefficient()

	s, err := m.ToSimplified()
	require.NoError(t, err)
	assert.Equal(t, m.BetaOC, s.Bvoco)

	slope := func(voc func(e, t float64) (float64, error)) float64 {
		hi, err := voc(200, 26)
		require.NoError(t, err)
		lo, err := voc(200, 24)
		require.NoError(t, err)
		return (hi - lo) / 2
	}
	assert.InDelta(t, slope(m.Voc), slope(s.Voc), 1e-9)
}

func TestCECValidate(t *testing.T) {
	m := cs5p220m(t)
	m.RShRef = 0
	assert.True(t, pverr.IsConfiguration(m.Validate()))

	m = cs5p220m(t)
	m.CellsInSeries = 0
	assert.True(t, pverr.IsConfiguration(m.Validate()))
}
