// Package irradiance transposes horizontal irradiance onto the plane of a
// fixed or tracking array and applies the optical losses that determine the
// effective irradiance seen by the cells.
package irradiance

import (
	"math"

	"github.com/lox/vocmax/internal/models"
	"github.com/lox/vocmax/internal/solarpos"
)

// SkyModel selects the sky diffuse transposition.
type SkyModel string

const (
	SkyIsotropic SkyModel = "isotropic"
	SkyHayDavies SkyModel = "haydavies"
)

// DefaultIAMParam is the ASHRAE incidence angle modifier coefficient b0.
const DefaultIAMParam = 0.05

const solarConstant = 1367.0

// Options carries the module-side optics used when transposing.
type Options struct {
	Sky      SkyModel
	IAMParam float64
	// FD is the fraction of diffuse irradiance used by the module.
	FD float64
	// Bifaciality is zero for monofacial modules.
	Bifaciality float64
}

// DefaultOptions returns isotropic sky, ASHRAE b0 = 0.05, full diffuse use.
func DefaultOptions() Options {
	return Options{Sky: SkyIsotropic, IAMParam: DefaultIAMParam, FD: 1}
}

// POA holds plane-of-array irradiance components for one timestep.
type POA struct {
	Orientation
	AOI           float64
	Direct        float64
	SkyDiffuse    float64
	GroundDiffuse float64
	Global        float64
	// Effective is the irradiance converted by the cells after incidence
	// losses, diffuse utilisation and any backside gain.
	Effective float64
}

// AOI returns the angle of incidence in degrees between the sun and the
// normal of a surface with the given tilt and azimuth.
func AOI(surfaceTilt, surfaceAzimuth float64, sun solarpos.Position) float64 {
	return deg(math.Acos(cosAOI(surfaceTilt, surfaceAzimuth, sun)))
}

func cosAOI(surfaceTilt, surfaceAzimuth float64, sun solarpos.Position) float64 {
	zen, tilt := rad(sun.Zenith), rad(surfaceTilt)
	c := math.Cos(zen)*math.Cos(tilt) +
		math.Sin(zen)*math.Sin(tilt)*math.Cos(rad(sun.Azimuth-surfaceAzimuth))
	return math.Max(-1, math.Min(1, c))
}

// ASHRAEIAM is the ASHRAE incidence angle modifier 1 - b(1/cos(aoi) - 1),
// clipped to [0, 1] and zero at or beyond grazing incidence.
func ASHRAEIAM(aoi, b float64) float64 {
	if math.Abs(aoi) >= 90 {
		return 0
	}
	iam := 1 - b*(1/math.Cos(rad(aoi))-1)
	return math.Max(0, math.Min(1, iam))
}

func extraterrestrialDNI(dayOfYear int) float64 {
	return solarConstant * (1 + 0.033*math.Cos(2*math.Pi*float64(dayOfYear)/365))
}

// Compute transposes a weather record onto the array described by r.
func Compute(rec models.WeatherRecord, sun solarpos.Position, r Racking, opt Options) POA {
	o := r.Orient(sun)
	out := POA{Orientation: o, AOI: AOI(o.SurfaceTilt, o.SurfaceAzimuth, sun)}
	if rec.GHI <= 0 {
		return out
	}

	tilt := rad(o.SurfaceTilt)
	cosTheta := cosAOI(o.SurfaceTilt, o.SurfaceAzimuth, sun)
	if sun.Zenith < 90 {
		out.Direct = math.Max(rec.DNI*cosTheta, 0)
	}

	isoFactor := (1 + math.Cos(tilt)) / 2
	switch opt.Sky {
	case SkyHayDavies:
		ai := 0.0
		rb := 0.0
		if sun.Zenith < 90 {
			ai = math.Min(rec.DNI/extraterrestrialDNI(rec.Time.YearDay()), 1)
			rb = math.Max(cosTheta, 0) / math.Max(math.Cos(rad(sun.Zenith)), 0.01745)
		}
		out.SkyDiffuse = rec.DHI * (ai*rb + (1-ai)*isoFactor)
	default:
		out.SkyDiffuse = rec.DHI * isoFactor
	}
	out.GroundDiffuse = rec.GHI * r.GroundAlbedo() * (1 - math.Cos(tilt)) / 2
	out.Global = out.Direct + out.SkyDiffuse + out.GroundDiffuse

	iam := ASHRAEIAM(out.AOI, opt.IAMParam)
	eff := out.Direct*iam + opt.FD*(out.SkyDiffuse+out.GroundDiffuse)
	if opt.Bifaciality > 0 {
		eff *= 1 + opt.Bifaciality*r.BacksideFraction()
	}
	out.Effective = eff
	return out
}
