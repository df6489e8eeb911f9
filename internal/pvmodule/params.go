// Package pvmodule evaluates module open-circuit voltage from effective
// irradiance and cell temperature.
//
// Two parameterisations are supported: the simplified Sandia-style Voc model
// (Simplified) and the five-parameter CEC single-diode model (CEC). Both
// implement Parameters.
package pvmodule

import (
	"math"

	"github.com/lox/vocmax/internal/pverr"
)

// Physical constants, SI.
const (
	Boltzmann            = 1.38064852e-23 // J/K
	ElementaryCharge     = 1.60217662e-19 // C
	BoltzmannEV          = Boltzmann / ElementaryCharge
	ReferenceIrradiance  = 1000.0 // W/m²
	ReferenceTemperature = 25.0   // °C
	kelvin               = 273.15
)

// Bifacial describes backside response.
type Bifacial struct {
	IsBifacial        bool    `json:"is_bifacial" yaml:"is_bifacial"`
	BifacialityFactor float64 `json:"bifaciality_factor" yaml:"bifaciality_factor"`
}

// Common holds fields shared by every parameterisation.
type Common struct {
	Name          string  `json:"name" yaml:"name"`
	CellsInSeries int     `json:"cells_in_series" yaml:"cells_in_series"`
	FD            float64 `json:"FD" yaml:"FD"`
	Efficiency    float64 `json:"efficiency" yaml:"efficiency"`
	Bifacial      `yaml:",inline"`
}

// Bifaciality returns the effective backside factor, zero when monofacial.
func (c Common) Bifaciality() float64 {
	if !c.IsBifacial {
		return 0
	}
	return c.BifacialityFactor
}

func (c Common) validate() error {
	if c.CellsInSeries <= 0 {
		return pverr.Configf("cells_in_series", "must be positive, got %d", c.CellsInSeries)
	}
	if math.IsNaN(c.FD) || c.FD < 0 || c.FD > 1 {
		return pverr.Configf("FD", "must be in [0, 1], got %v", c.FD)
	}
	if c.IsBifacial && (math.IsNaN(c.BifacialityFactor) || c.BifacialityFactor < 0 || c.BifacialityFactor > 1) {
		return pverr.Configf("bifaciality_factor", "must be in [0, 1], got %v", c.BifacialityFactor)
	}
	return nil
}

// Reference is the module's behaviour at standard test conditions.
type Reference struct {
	Voco  float64 // V
	Bvoco float64 // V/°C
}

// Parameters is implemented by Simplified and CEC.
type Parameters interface {
	// Voc returns the open-circuit voltage at effective irradiance e (W/m²)
	// and cell temperature t (°C). Zero irradiance gives zero volts.
	Voc(e, t float64) (float64, error)
	Validate() error
	Base() Common
	Reference() Reference
	sealed()
}
