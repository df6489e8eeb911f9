// Package thermal estimates cell temperature with the Sandia array
// performance model's empirical exponential wind model.
package thermal

import (
	"math"
	"sort"

	"github.com/lox/vocmax/internal/pverr"
)

// Preset names a published racking coefficient set.
type Preset string

const (
	OpenRackGlassGlass        Preset = "open_rack_glass_glass"
	CloseMountGlassGlass      Preset = "close_mount_glass_glass"
	OpenRackGlassPolymer      Preset = "open_rack_glass_polymer"
	InsulatedBackGlassPolymer Preset = "insulated_back_glass_polymer"
	Explicit                  Preset = "explicit"
)

// Coefficients are the a, b and deltaT terms of the model.
type Coefficients struct {
	A      float64 `json:"a" yaml:"a"`
	B      float64 `json:"b" yaml:"b"`
	DeltaT float64 `json:"deltaT" yaml:"deltaT"`
}

var presets = map[Preset]Coefficients{
	OpenRackGlassGlass:        {A: -3.47, B: -0.0594, DeltaT: 3},
	CloseMountGlassGlass:      {A: -2.98, B: -0.0471, DeltaT: 1},
	OpenRackGlassPolymer:      {A: -3.56, B: -0.0750, DeltaT: 3},
	InsulatedBackGlassPolymer: {A: -2.81, B: -0.0455, DeltaT: 0},
}

// Lookup returns the coefficients for a named preset.
func Lookup(p Preset) (Coefficients, error) {
	c, ok := presets[p]
	if !ok {
		return Coefficients{}, pverr.Configf("racking_model", "unknown thermal preset %q", p)
	}
	return c, nil
}

// Presets lists the available preset names in sorted order.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Params selects a preset or explicit coefficients.
type Params struct {
	Preset Preset `json:"named_model" yaml:"named_model"`
	// Coefficients is used when Preset is Explicit.
	Coefficients Coefficients `json:"coefficients" yaml:"coefficients"`
	// OpenCircuitRise adds the extra heating of a module that is not
	// delivering power.
	OpenCircuitRise bool `json:"open_circuit_rise" yaml:"open_circuit_rise"`
	// RiseC overrides the derived open circuit rise, in degrees C.
	RiseC *float64 `json:"open_circuit_rise_c,omitempty" yaml:"open_circuit_rise_c,omitempty"`
}

// Model is a resolved thermal model ready for per-timestep evaluation.
type Model struct {
	Coefficients
	Rise float64
}

// Resolve looks up the coefficients and fixes the open circuit rise.
// Without an explicit RiseC the rise is the extra heat retained at
// 1000 W/m² and still air when the electrical output, efficiency times
// incident power, stays in the module.
func (p Params) Resolve(efficiency float64) (Model, error) {
	var c Coefficients
	if p.Preset == Explicit {
		c = p.Coefficients
		if math.IsNaN(c.A) || math.IsNaN(c.B) || math.IsNaN(c.DeltaT) {
			return Model{}, pverr.Configf("thermal", "explicit coefficients must be finite")
		}
	} else {
		var err error
		if c, err = Lookup(p.Preset); err != nil {
			return Model{}, err
		}
	}

	m := Model{Coefficients: c}
	if !p.OpenCircuitRise {
		return m, nil
	}
	if p.RiseC != nil {
		m.Rise = *p.RiseC
		return m, nil
	}
	if !(efficiency > 0 && efficiency < 1) {
		return Model{}, pverr.Configf("efficiency", "open circuit rise needs efficiency in (0, 1), got %v", efficiency)
	}
	m.Rise = m.ModuleRise(1000, 0) * efficiency / (1 - efficiency)
	return m, nil
}

// ModuleRise is the module temperature above ambient at the given plane of
// array irradiance and wind speed, including the back-to-cell difference.
func (c Coefficients) ModuleRise(poa, windSpeed float64) float64 {
	return poa*math.Exp(c.A+c.B*windSpeed) + poa/1000*c.DeltaT
}

// ModuleTemperature returns back-of-module temperature in degrees C.
func (c Coefficients) ModuleTemperature(poa, tempAir, windSpeed float64) float64 {
	return poa*math.Exp(c.A+c.B*windSpeed) + tempAir
}

// CellTemperature returns cell temperature in degrees C.
func (m Model) CellTemperature(poa, tempAir, windSpeed float64) float64 {
	return m.ModuleTemperature(poa, tempAir, windSpeed) + poa/1000*m.DeltaT + m.Rise
}
