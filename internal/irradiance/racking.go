package irradiance

import (
	"math"
	"strings"

	"github.com/lox/vocmax/internal/pverr"
	"github.com/lox/vocmax/internal/solarpos"
)

// Mount names a racking variant as it appears in configuration.
type Mount string

const (
	MountFixedTilt  Mount = "fixed_tilt"
	MountSingleAxis Mount = "single_axis"
)

// ParseMount maps a configuration string onto a Mount.
func ParseMount(s string) (Mount, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed_tilt", "fixed":
		return MountFixedTilt, nil
	case "single_axis", "single_axis_tracker", "tracker":
		return MountSingleAxis, nil
	}
	return "", pverr.Configf("racking_type", "unsupported racking type %q", s)
}

// Orientation is the instantaneous plane of the module surface.
type Orientation struct {
	SurfaceTilt    float64
	SurfaceAzimuth float64
	TrackerTheta   float64 // rotation from horizontal; zero for fixed tilt
}

// Racking is implemented by FixedTilt and SingleAxis only.
type Racking interface {
	Mount() Mount
	Validate() error
	Orient(sun solarpos.Position) Orientation
	GroundAlbedo() float64
	BacksideFraction() float64
}

// FixedTilt is a static array.
type FixedTilt struct {
	SurfaceTilt                float64 `json:"surface_tilt" yaml:"surface_tilt"`
	SurfaceAzimuth             float64 `json:"surface_azimuth" yaml:"surface_azimuth"`
	Albedo                     float64 `json:"albedo" yaml:"albedo"`
	BacksideIrradianceFraction float64 `json:"backside_irradiance_fraction" yaml:"backside_irradiance_fraction"`
}

func (FixedTilt) Mount() Mount { return MountFixedTilt }
func (f FixedTilt) GroundAlbedo() float64 { return f.Albedo }
func (f FixedTilt) BacksideFraction() float64 { return f.BacksideIrradianceFraction }

func (f FixedTilt) Orient(solarpos.Position) Orientation {
	return Orientation{SurfaceTilt: f.SurfaceTilt, SurfaceAzimuth: f.SurfaceAzimuth}
}

func (f FixedTilt) Validate() error {
	if err := checkRange("surface_tilt", f.SurfaceTilt, 0, 90); err != nil {
		return err
	}
	if err := checkAzimuth("surface_azimuth", f.SurfaceAzimuth); err != nil {
		return err
	}
	return checkGround(f.Albedo, f.BacksideIrradianceFraction)
}

// SingleAxis is a horizontal or tilted single-axis tracker.
type SingleAxis struct {
	AxisTilt                   float64 `json:"axis_tilt" yaml:"axis_tilt"`
	AxisAzimuth                float64 `json:"axis_azimuth" yaml:"axis_azimuth"`
	MaxAngle                   float64 `json:"max_angle" yaml:"max_angle"`
	Backtrack                  bool    `json:"backtrack" yaml:"backtrack"`
	GCR                        float64 `json:"gcr" yaml:"gcr"`
	Albedo                     float64 `json:"albedo" yaml:"albedo"`
	BacksideIrradianceFraction float64 `json:"backside_irradiance_fraction" yaml:"backside_irradiance_fraction"`
}

func (SingleAxis) Mount() Mount { return MountSingleAxis }
func (s SingleAxis) GroundAlbedo() float64 { return s.Albedo }
func (s SingleAxis) BacksideFraction() float64 { return s.BacksideIrradianceFraction }

func (s SingleAxis) Validate() error {
	if err := checkRange("axis_tilt", s.AxisTilt, 0, 90); err != nil {
		return err
	}
	if err := checkAzimuth("axis_azimuth", s.AxisAzimuth); err != nil {
		return err
	}
	if err := checkRange("max_angle", s.MaxAngle, 0, 90); err != nil {
		return err
	}
	if !(s.GCR > 0 && s.GCR <= 1) {
		return pverr.Configf("gcr", "must be in (0, 1], got %v", s.GCR)
	}
	return checkGround(s.Albedo, s.BacksideIrradianceFraction)
}

// Orient returns the tracker rotation for the given sun position. With the
// sun below the horizon the tracker is stowed flat.
func (s SingleAxis) Orient(sun solarpos.Position) Orientation {
	theta := 0.0
	if sun.Zenith < 90 {
		theta = s.idealRotation(sun)
		if s.Backtrack {
			theta += backtrackCorrection(theta, s.GCR)
		}
		theta = math.Max(-s.MaxAngle, math.Min(s.MaxAngle, theta))
	}
	tilt, az := surfaceFromRotation(theta, s.AxisTilt, s.AxisAzimuth)
	return Orientation{SurfaceTilt: tilt, SurfaceAzimuth: az, TrackerTheta: theta}
}

// idealRotation is the rotation that puts the sun in the plane normal to the
// module, positive toward the west for a south-pointing axis.
func (s SingleAxis) idealRotation(sun solarpos.Position) float64 {
	zen, az := rad(sun.Zenith), rad(sun.Azimuth)
	sx := math.Sin(zen) * math.Sin(az)
	sy := math.Sin(zen) * math.Cos(az)
	sz := math.Cos(zen)

	at, aa := rad(s.AxisTilt), rad(s.AxisAzimuth)
	xp := sx*math.Cos(aa) - sy*math.Sin(aa)
	zp := sx*math.Sin(at)*math.Sin(aa) + sy*math.Sin(at)*math.Cos(aa) + sz*math.Cos(at)
	return deg(math.Atan2(xp, zp))
}

// backtrackCorrection rotates the tracker back toward flat until row-to-row
// shading is removed for ground coverage ratio gcr.
func backtrackCorrection(theta, gcr float64) float64 {
	temp := math.Min(1, math.Max(-1, math.Cos(rad(theta))/gcr))
	sign := 1.0
	if theta < 0 {
		sign = -1
	}
	return deg(-sign * math.Acos(temp))
}

func surfaceFromRotation(theta, axisTilt, axisAzimuth float64) (tilt, azimuth float64) {
	tilt = deg(math.Acos(math.Cos(rad(theta)) * math.Cos(rad(axisTilt))))
	st := math.Sin(rad(tilt))
	delta := 90.0
	if st != 0 {
		delta = deg(math.Asin(math.Max(-1, math.Min(1, math.Sin(rad(theta))/st))))
		if math.Abs(theta) >= 90 {
			sign := 1.0
			if theta < 0 {
				sign = -1
			}
			delta = -delta + sign*180
		}
	}
	azimuth = math.Mod(axisAzimuth+delta, 360)
	if azimuth < 0 {
		azimuth += 360
	}
	return tilt, azimuth
}

func checkRange(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return pverr.Configf(field, "must be in [%g, %g], got %v", lo, hi, v)
	}
	return nil
}

func checkAzimuth(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v >= 360 {
		return pverr.Configf(field, "must be in [0, 360), got %v", v)
	}
	return nil
}

func checkGround(albedo, backside float64) error {
	if err := checkRange("albedo", albedo, 0, 1); err != nil {
		return err
	}
	if math.IsNaN(backside) || backside < 0 {
		return pverr.Configf("backside_irradiance_fraction", "must be non-negative, got %v", backside)
	}
	return nil
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }
