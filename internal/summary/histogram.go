package summary

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultVocHistogramEdges gives 199 bins between 0.6·max and max+1.
const DefaultVocHistogramEdges = 200

// Histogram counts samples into contiguous bins. Every bin is half-open
// except the last, which includes its upper edge. Samples outside the edges
// are counted in Underflow and Overflow so nothing is lost.
type Histogram struct {
	Edges     []float64 `json:"edges"`
	Counts    []int     `json:"counts"`
	Underflow int       `json:"underflow"`
	Overflow  int       `json:"overflow"`
	// HoursPerYear is Counts scaled by interval hours over series years.
	HoursPerYear          []float64 `json:"hours_per_year"`
	UnderflowHoursPerYear float64   `json:"underflow_hours_per_year"`
	OverflowHoursPerYear  float64   `json:"overflow_hours_per_year"`
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// NewHistogram bins the finite values in xs into the given edges and scales
// counts to hours per year.
func NewHistogram(xs, edges []float64, intervalHours, years float64) *Histogram {
	h := &Histogram{
		Edges:  edges,
		Counts: make([]int, max(len(edges)-1, 0)),
	}
	last := len(edges) - 1
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		switch {
		case last < 1 || x < edges[0]:
			h.Underflow++
		case x > edges[last]:
			h.Overflow++
		case x == edges[last]:
			h.Counts[last-1]++
		default:
			// first edge strictly greater than x closes the bin
			i := sort.Search(len(edges), func(i int) bool { return edges[i] > x })
			h.Counts[i-1]++
		}
	}

	scale := 0.0
	if years > 0 {
		scale = intervalHours / years
	}
	h.HoursPerYear = make([]float64, len(h.Counts))
	for i, c := range h.Counts {
		h.HoursPerYear[i] = float64(c) * scale
	}
	h.UnderflowHoursPerYear = float64(h.Underflow) * scale
	h.OverflowHoursPerYear = float64(h.Overflow) * scale
	return h
}

// Total returns the number of samples binned, including under and overflow.
func (h *Histogram) Total() int {
	n := h.Underflow + h.Overflow
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// TotalHoursPerYear sums every bin's hours per year, tails included.
func (h *Histogram) TotalHoursPerYear() float64 {
	return floats.Sum(h.HoursPerYear) + h.UnderflowHoursPerYear + h.OverflowHoursPerYear
}

// VocHistogram bins Voc over [0.6·max, max+1].
func VocHistogram(voc []float64, edges int, intervalHours, years float64) *Histogram {
	hi := maxFinite(voc)
	if math.IsInf(hi, -1) {
		hi = 0
	}
	if edges < 2 {
		edges = DefaultVocHistogramEdges
	}
	return NewHistogram(voc, Linspace(0.6*hi, hi+1, edges), intervalHours, years)
}

// TemperatureHistogram bins temperatures into 1 °C bins from four degrees
// below the floored minimum to one above the floored maximum.
func TemperatureHistogram(temps []float64, intervalHours, years float64) *Histogram {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range temps {
		if math.IsNaN(t) {
			continue
		}
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
	}
	if math.IsInf(lo, 1) {
		return NewHistogram(nil, nil, intervalHours, years)
	}
	start, end := math.Floor(lo)-4, math.Floor(hi)+1
	edges := make([]float64, 0, int(end-start)+1)
	for e := start; e <= end; e++ {
		edges = append(edges, e)
	}
	return NewHistogram(temps, edges, intervalHours, years)
}

func maxFinite(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if !math.IsNaN(x) && x > m {
			m = x
		}
	}
	return m
}
