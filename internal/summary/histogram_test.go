package summary

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistogramEdges(t *testing.T) {
	h := NewHistogram([]float64{-1, 0, 0.5, 1, 1.5, 2, 3, math.NaN()}, []float64{0, 1, 2}, 1, 1)
	assert.Equal(t, []int{2, 3}, h.Counts)
	assert.Equal(t, 1, h.Underflow)
	assert.Equal(t, 1, h.Overflow)
	assert.Equal(t, 7, h.Total())
}

func TestHistogramConservesHours(t *testing.T) {
	xs := make([]float64, 8760)
	for i := range xs {
		xs[i] = 30 + 20*math.Sin(float64(i)/100)
	}
	h := VocHistogram(xs, DefaultVocHistogramEdges, 0.5, 2)
	require.Len(t, h.Edges, DefaultVocHistogramEdges)
	assert.Equal(t, len(xs), h.Total())
	assert.InDelta(t, float64(len(xs))*0.5/2, h.TotalHoursPerYear(), 1e-6)
	assert.InDelta(t, 0.6*maxFinite(xs), h.Edges[0], 1e-9)
	assert.InDelta(t, maxFinite(xs)+1, h.Edges[len(h.Edges)-1], 1e-9)
}

func TestTemperatureHistogram(t *testing.T) {
	h := TemperatureHistogram([]float64{-3.2, 0, 5.9}, 1, 1)
	assert.Equal(t, -8.0, h.Edges[0])
	assert.Equal(t, 6.0, h.Edges[len(h.Edges)-1])
	assert.Equal(t, 3, h.Total())
	assert.Zero(t, h.Underflow+h.Overflow)

	empty := TemperatureHistogram([]float64{math.NaN()}, 1, 1)
	assert.Zero(t, empty.Total())
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
	assert.Equal(t, []float64{2}, Linspace(2, 5, 1))
	assert.Nil(t, Linspace(0, 1, 0))
}
