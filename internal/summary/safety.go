package summary

import (
	"math"

	"github.com/lox/vocmax/internal/pvmodule"
)

// Additional safety factor components, as fractions of string Voc.
const (
	BaseAdditionalSafetyFactor    = 0.010 // general modelling uncertainty
	IrradianceModelSafetyFactor   = 0.006 // transposition and spectral error
	ManualModuleDiodeSafetyFactor = 0.004 // diode factor guessed from a datasheet
)

// relativeTempCoefficient returns |Bvoco/Voco| in 1/°C.
func relativeTempCoefficient(ref pvmodule.Reference) float64 {
	if ref.Voco == 0 {
		return 0
	}
	return math.Abs(ref.Bvoco / ref.Voco)
}

// WeatherDataSafetyFactor converts a warm bias in the weather data's minimum
// temperatures, in °C, into a fraction of Voc. Negative errors give zero.
func WeatherDataSafetyFactor(temperatureError float64, ref pvmodule.Reference) float64 {
	if !(temperatureError > 0) {
		return 0
	}
	return temperatureError * relativeTempCoefficient(ref)
}

// ExtremeColdSafetyFactor covers the gap between the mean yearly minimum
// and the coldest temperature in the whole record.
func ExtremeColdSafetyFactor(meanYearlyMin, absoluteMin float64, ref pvmodule.Reference) float64 {
	d := meanYearlyMin - absoluteMin
	if !(d > 0) {
		return 0
	}
	return d * relativeTempCoefficient(ref)
}

// SuggestedAdditionalSafetyFactor is the margin for model error. Manually
// entered modules carry extra uncertainty in the diode factor.
func SuggestedAdditionalSafetyFactor(manualModule bool) float64 {
	sf := BaseAdditionalSafetyFactor + IrradianceModelSafetyFactor
	if manualModule {
		sf += ManualModuleDiodeSafetyFactor
	}
	return sf
}

// SafetyFactorBreakdown itemises a recommended safety factor.
type SafetyFactorBreakdown struct {
	WeatherData        float64 `json:"weather_data"`
	ExtremeCold        float64 `json:"extreme_cold"`
	IncludeExtremeCold bool    `json:"include_extreme_cold"`
	Additional         float64 `json:"additional"`
	Total              float64 `json:"total"`
}

// Sum fills Total from the components.
func (b SafetyFactorBreakdown) Sum() SafetyFactorBreakdown {
	b.Total = b.WeatherData + b.Additional
	if b.IncludeExtremeCold {
		b.Total += b.ExtremeCold
	}
	return b
}
