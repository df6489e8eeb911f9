package summary

import "math"

// necRow maps a lower bound on ambient temperature (°C) to a Voc multiplier.
type necRow struct {
	minTemp float64
	factor  float64
}

// NEC Table 690.7(A), crystalline and multicrystalline modules, descending.
var necTable = []necRow{
	{25, 1.00},
	{20, 1.02},
	{15, 1.04},
	{10, 1.06},
	{5, 1.08},
	{0, 1.10},
	{-5, 1.12},
	{-10, 1.14},
	{-15, 1.16},
	{-20, 1.18},
	{-25, 1.20},
	{-30, 1.21},
	{-35, 1.23},
}

const necColdest = 1.25

// NECCorrectionFactor returns the NEC Table 690.7(A) Voc correction factor
// for the lowest expected ambient temperature. Temperatures are floored to
// whole degrees before lookup.
func NECCorrectionFactor(tempC float64) float64 {
	t := math.Floor(tempC)
	for _, r := range necTable {
		if t >= r.minTemp {
			return r.factor
		}
	}
	return necColdest
}
