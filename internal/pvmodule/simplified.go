package pvmodule

import (
	"math"

	"github.com/lox/vocmax/internal/pverr"
)

// Simplified is the datasheet-style Voc model
//
//	Voc = Voco + Ns·δ(T)·ln(E/E0) + Bvoc(E)·(T - T0)
//	δ(T) = n·k·(T + 273.15)/q
//	Bvoc(E) = Bvoco + Mbvoc·(1 - E/E0)
type Simplified struct {
	Common `yaml:",inline"`
	Voco   float64 `json:"Voco" yaml:"Voco"`
	Bvoco  float64 `json:"Bvoco" yaml:"Bvoco"`
	Mbvoc  float64 `json:"Mbvoc" yaml:"Mbvoc"`
	NDiode float64 `json:"n_diode" yaml:"n_diode"`
}

func (Simplified) sealed() {}

func (s Simplified) Base() Common { return s.Common }

func (s Simplified) Reference() Reference { return Reference{Voco: s.Voco, Bvoco: s.Bvoco} }

func (s Simplified) Validate() error {
	if err := s.Common.validate(); err != nil {
		return err
	}
	if !(s.Voco > 0) {
		return pverr.Configf("Voco", "must be positive, got %v", s.Voco)
	}
	if !(s.NDiode > 0) {
		return pverr.Configf("n_diode", "must be positive, got %v", s.NDiode)
	}
	if math.IsNaN(s.Bvoco) || math.IsNaN(s.Mbvoc) {
		return pverr.Configf("Bvoco", "temperature coefficients must be finite")
	}
	return nil
}

// ThermalVoltage returns n·k·T/q for the cell temperature t in °C.
func (s Simplified) ThermalVoltage(t float64) float64 {
	return s.NDiode * BoltzmannEV * (t + kelvin)
}

// Voc never fails for the simplified model; negative results clamp to zero.
func (s Simplified) Voc(e, t float64) (float64, error) {
	if !(e > 0) {
		return 0, nil
	}
	bvoc := s.Bvoco + s.Mbvoc*(1-e/ReferenceIrradiance)
	v := s.Voco +
		float64(s.CellsInSeries)*s.ThermalVoltage(t)*math.Log(e/ReferenceIrradiance) +
		bvoc*(t-ReferenceTemperature)
	return math.Max(v, 0), nil
}

// TemperatureForVoc returns the cell temperature at which the module reaches
// voc at effective irradiance e. It is the threshold curve used to show which
// weather conditions exceed a design voltage. Returns NaN when e is not
// positive or the model is flat in temperature.
func (s Simplified) TemperatureForVoc(e, voc float64) float64 {
	if !(e > 0) {
		return math.NaN()
	}
	l := math.Log(e / ReferenceIrradiance)
	c := float64(s.CellsInSeries) * s.NDiode * BoltzmannEV * l
	bvoc := s.Bvoco + s.Mbvoc*(1-e/ReferenceIrradiance)
	den := c + bvoc
	if den == 0 {
		return math.NaN()
	}
	return (voc - s.Voco - c*kelvin + bvoc*ReferenceTemperature) / den
}
