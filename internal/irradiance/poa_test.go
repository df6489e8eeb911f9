package irradiance

import (
	"math"
	"testing"
	"time"

	"github.com/lox/vocmax/internal/models"
	"github.com/lox/vocmax/internal/solarpos"
	"github.com/stretchr/testify/assert"
)

func TestASHRAEIAM(t *testing.T) {
	tests := []struct {
		aoi  float64
		want float64
	}{
		{0, 1},
		{60, 0.95},
		{89.9, 0},
		{90, 0},
		{120, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ASHRAEIAM(tt.aoi, DefaultIAMParam), 1e-9, "aoi %v", tt.aoi)
	}
}

func TestComputeHorizontalDiffuseOnly(t *testing.T) {
	rec := models.WeatherRecord{GHI: 1000, DHI: 1000, DNI: 0}
	sun := solarpos.Position{Zenith: 30, Azimuth: 180}

	poa := Compute(rec, sun, FixedTilt{SurfaceAzimuth: 180, Albedo: 0.25}, DefaultOptions())
	assert.InDelta(t, 1000, poa.SkyDiffuse, 1e-9)
	assert.InDelta(t, 0, poa.GroundDiffuse, 1e-9)
	assert.InDelta(t, 1000, poa.Effective, 1e-9)
}

func TestComputeNightIsZero(t *testing.T) {
	rec := models.WeatherRecord{GHI: 0, DHI: 0, DNI: 0}
	sun := solarpos.Position{Zenith: 120, Azimuth: 0}

	poa := Compute(rec, sun, FixedTilt{SurfaceTilt: 30, SurfaceAzimuth: 180}, DefaultOptions())
	assert.Zero(t, poa.Effective)
	assert.Zero(t, poa.Global)
	assert.False(t, math.IsNaN(poa.AOI))
}

func TestComputeBeamAndGround(t *testing.T) {
	rec := models.WeatherRecord{GHI: 800, DHI: 100, DNI: 900}
	sun := solarpos.Position{Zenith: 30, Azimuth: 180}
	r := FixedTilt{SurfaceTilt: 30, SurfaceAzimuth: 180, Albedo: 0.2}

	poa := Compute(rec, sun, r, DefaultOptions())
	assert.InDelta(t, 0, poa.AOI, 1e-4)
	assert.InDelta(t, 900, poa.Direct, 1e-6)
	assert.InDelta(t, 100*(1+math.Cos(rad(30)))/2, poa.SkyDiffuse, 1e-9)
	assert.InDelta(t, 800*0.2*(1-math.Cos(rad(30)))/2, poa.GroundDiffuse, 1e-9)
	assert.InDelta(t, poa.Global, poa.Effective, 1e-6)
}

func TestComputeDiffuseFractionAndBifacial(t *testing.T) {
	rec := models.WeatherRecord{GHI: 1000, DHI: 1000}
	sun := solarpos.Position{Zenith: 30, Azimuth: 180}

	opt := DefaultOptions()
	opt.FD = 0.5
	poa := Compute(rec, sun, FixedTilt{SurfaceAzimuth: 180}, opt)
	assert.InDelta(t, 500, poa.Effective, 1e-9)

	opt.FD = 1
	opt.Bifaciality = 0.7
	poa = Compute(rec, sun, FixedTilt{SurfaceAzimuth: 180, BacksideIrradianceFraction: 0.2}, opt)
	assert.InDelta(t, 1000*(1+0.7*0.2), poa.Effective, 1e-9)
}

func TestHayDaviesAddsCircumsolar(t *testing.T) {
	rec := models.WeatherRecord{Time: time.Date(2019, 6, 21, 12, 0, 0, 0, time.UTC), GHI: 900, DHI: 150, DNI: 850}
	sun := solarpos.Position{Zenith: 20, Azimuth: 180}
	r := FixedTilt{SurfaceTilt: 20, SurfaceAzimuth: 180}

	iso := Compute(rec, sun, r, DefaultOptions())
	opt := DefaultOptions()
	opt.Sky = SkyHayDavies
	hd := Compute(rec, sun, r, opt)
	assert.Greater(t, hd.SkyDiffuse, iso.SkyDiffuse)
}
