package pvmodule

import (
	"math"

	"github.com/lox/vocmax/internal/pverr"
)

// Band gap at reference conditions and its temperature dependence for
// crystalline silicon, as used by the CEC translation.
const (
	EgRef = 1.121      // eV
	DEgDT = -0.0002677 // 1/K
)

// Solver limits for the open-circuit Newton iteration.
const (
	SolveTolerance = 1e-6 // V
	SolveMaxIter   = 50
)

// CEC is the five-parameter single-diode model at reference conditions plus
// the datasheet values carried in the SAM CEC module library.
type CEC struct {
	Common       `yaml:",inline"`
	Manufacturer string  `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Technology   string  `json:"technology,omitempty" yaml:"technology,omitempty"`
	AlphaSC      float64 `json:"alpha_sc" yaml:"alpha_sc"`
	ARef         float64 `json:"a_ref" yaml:"a_ref"`
	ILRef        float64 `json:"I_L_ref" yaml:"I_L_ref"`
	IORef        float64 `json:"I_o_ref" yaml:"I_o_ref"`
	RShRef       float64 `json:"R_sh_ref" yaml:"R_sh_ref"`
	RS           float64 `json:"R_s" yaml:"R_s"`
	Adjust       float64 `json:"Adjust" yaml:"Adjust"`
	VocRef       float64 `json:"V_oc_ref" yaml:"V_oc_ref"`
	IscRef       float64 `json:"I_sc_ref" yaml:"I_sc_ref"`
	VmpRef       float64 `json:"V_mp_ref" yaml:"V_mp_ref"`
	ImpRef       float64 `json:"I_mp_ref" yaml:"I_mp_ref"`
	BetaOC       float64 `json:"beta_oc" yaml:"beta_oc"`
	Area         float64 `json:"A_c" yaml:"A_c"`
	STC          float64 `json:"STC" yaml:"STC"`
}

func (CEC) sealed() {}

// Base fills in efficiency from the datasheet when not set explicitly.
func (c CEC) Base() Common {
	b := c.Common
	if b.Efficiency == 0 && c.Area > 0 {
		b.Efficiency = c.VmpRef * c.ImpRef / (c.Area * ReferenceIrradiance)
	}
	return b
}

// Reference solves the model at standard test conditions. BetaOC from the
// datasheet is used for the temperature coefficient when present.
func (c CEC) Reference() Reference {
	voco, err := c.Voc(ReferenceIrradiance, ReferenceTemperature)
	if err != nil || voco == 0 {
		voco = c.VocRef
	}
	bvoco := c.BetaOC
	if bvoco == 0 {
		bvoco = c.tempCoefficient()
	}
	return Reference{Voco: voco, Bvoco: bvoco}
}

func (c CEC) Validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"a_ref", c.ARef},
		{"I_L_ref", c.ILRef},
		{"I_o_ref", c.IORef},
		{"R_sh_ref", c.RShRef},
	} {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return pverr.Configf(f.name, "must be positive and finite, got %v", f.v)
		}
	}
	if c.RS < 0 || math.IsNaN(c.AlphaSC) || math.IsNaN(c.Adjust) {
		return pverr.Configf("R_s", "invalid series resistance or temperature terms")
	}
	return nil
}

// NDiode is the diode ideality factor implied by a_ref.
func (c CEC) NDiode() float64 {
	return c.ARef / (float64(c.CellsInSeries) * BoltzmannEV * (ReferenceTemperature + kelvin))
}

// Operating holds the single-diode parameters translated to one
// irradiance and temperature.
type Operating struct {
	IL     float64 // photocurrent, A
	I0     float64 // saturation current, A
	RS     float64 // series resistance, Ω
	RSh    float64 // shunt resistance, Ω
	NNsVth float64 // modified ideality factor, V
}

// Translate applies the CEC (De Soto with Adjust) equations.
func (c CEC) Translate(e, t float64) Operating {
	tref := ReferenceTemperature + kelvin
	tc := t + kelvin
	eg := EgRef * (1 + DEgDT*(tc-tref))

	return Operating{
		IL:     e / ReferenceIrradiance * (c.ILRef + c.AlphaSC*(1-c.Adjust/100)*(tc-tref)),
		I0:     c.IORef * math.Pow(tc/tref, 3) * math.Exp(EgRef/(BoltzmannEV*tref)-eg/(BoltzmannEV*tc)),
		RS:     c.RS,
		RSh:    c.RShRef * ReferenceIrradiance / e,
		NNsVth: c.ARef * tc / tref,
	}
}

// Voc solves IL - I0·(exp(V/a) - 1) - V/Rsh = 0. Series resistance carries
// no current at open circuit and drops out.
func (c CEC) Voc(e, t float64) (float64, error) {
	if !(e > 0) {
		return 0, nil
	}
	op := c.Translate(e, t)
	if !(op.IL > 0) {
		return 0, nil
	}
	return solveVoc(op)
}

// solveVoc runs Newton's method from the ideal-diode Voc. The residual is
// concave and decreasing in V and negative at the start, so iterates
// approach the root monotonically from above.
func solveVoc(op Operating) (float64, error) {
	a := op.NNsVth
	v := a * math.Log1p(op.IL/op.I0)
	var f float64
	for i := 0; i < SolveMaxIter; i++ {
		ex := math.Exp(v / a)
		f = op.IL - op.I0*(ex-1) - v/op.RSh
		df := -op.I0/a*ex - 1/op.RSh
		step := f / df
		v -= step
		if math.IsNaN(v) || math.IsInf(v, 0) {
			break
		}
		if math.Abs(step) < SolveTolerance {
			return math.Max(v, 0), nil
		}
	}
	return 0, &pverr.ConvergenceError{Iterations: SolveMaxIter, Residual: f}
}

func (c CEC) tempCoefficient() float64 {
	hi, err1 := c.Voc(ReferenceIrradiance, ReferenceTemperature+1)
	lo, err2 := c.Voc(ReferenceIrradiance, ReferenceTemperature-1)
	if err1 != nil || err2 != nil {
		return 0
	}
	return (hi - lo) / 2
}

// ToSimplified derives simplified-model parameters from a CEC parameter set
// so the closed-form model can be used for the time series. Mbvoc is fitted
// so both models share dVoc/dT at 200 W/m² as well as at 1000 W/m².
func (c CEC) ToSimplified() (Simplified, error) {
	if err := c.Validate(); err != nil {
		return Simplified{}, err
	}
	ref := c.Reference()
	n := c.NDiode()

	const eLow = 200.0
	hi, err := c.Voc(eLow, ReferenceTemperature+1)
	if err != nil {
		return Simplified{}, err
	}
	lo, err := c.Voc(eLow, ReferenceTemperature-1)
	if err != nil {
		return Simplified{}, err
	}
	slopeLow := (hi - lo) / 2
	logTerm := float64(c.CellsInSeries) * n * BoltzmannEV * math.Log(eLow/ReferenceIrradiance)

	return Simplified{
		Common: c.Base(),
		Voco:   ref.Voco,
		Bvoco:  ref.Bvoco,
		Mbvoc:  (slopeLow - logTerm - ref.Bvoco) / (1 - eLow/ReferenceIrradiance),
		NDiode: n,
	}, nil
}
