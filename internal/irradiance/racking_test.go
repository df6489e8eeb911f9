package irradiance

import (
	"testing"

	"github.com/lox/vocmax/internal/pverr"
	"github.com/lox/vocmax/internal/solarpos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMount(t *testing.T) {
	m, err := ParseMount("Single_Axis_Tracker")
	require.NoError(t, err)
	assert.Equal(t, MountSingleAxis, m)

	_, err = ParseMount("dual_axis")
	require.Error(t, err)
	assert.True(t, pverr.IsConfiguration(err))
}

func TestRackingValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       Racking
		wantErr bool
	}{
		{"fixed ok", FixedTilt{SurfaceTilt: 30, SurfaceAzimuth: 180, Albedo: 0.25}, false},
		{"fixed tilt over 90", FixedTilt{SurfaceTilt: 95, SurfaceAzimuth: 180}, true},
		{"fixed azimuth 360", FixedTilt{SurfaceTilt: 10, SurfaceAzimuth: 360}, true},
		{"fixed albedo over 1", FixedTilt{SurfaceTilt: 10, SurfaceAzimuth: 180, Albedo: 1.2}, true},
		{"fixed negative backside", FixedTilt{SurfaceTilt: 10, SurfaceAzimuth: 180, BacksideIrradianceFraction: -0.1}, true},
		{"tracker ok", SingleAxis{AxisAzimuth: 180, MaxAngle: 60, GCR: 0.35, Albedo: 0.25}, false},
		{"tracker gcr over 1", SingleAxis{AxisAzimuth: 180, MaxAngle: 60, GCR: 1.5}, true},
		{"tracker gcr zero", SingleAxis{AxisAzimuth: 180, MaxAngle: 60, GCR: 0}, true},
		{"tracker max angle", SingleAxis{AxisAzimuth: 180, MaxAngle: 120, GCR: 0.3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pverr.IsConfiguration(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTrackerFacesMorningSun(t *testing.T) {
	tr := SingleAxis{AxisAzimuth: 180, MaxAngle: 90, GCR: 0.3}
	sun := solarpos.Position{Zenith: 60, Azimuth: 90}

	o := tr.Orient(sun)
	assert.InDelta(t, -60, o.TrackerTheta, 1e-9)
	assert.InDelta(t, 60, o.SurfaceTilt, 1e-6)
	assert.InDelta(t, 90, o.SurfaceAzimuth, 1e-4)
	assert.InDelta(t, 0, AOI(o.SurfaceTilt, o.SurfaceAzimuth, sun), 1e-3)
}

func TestTrackerClipsToMaxAngle(t *testing.T) {
	tr := SingleAxis{AxisAzimuth: 180, MaxAngle: 45, GCR: 0.3}
	o := tr.Orient(solarpos.Position{Zenith: 80, Azimuth: 270})
	assert.InDelta(t, 45, o.TrackerTheta, 1e-9)
	assert.InDelta(t, 270, o.SurfaceAzimuth, 1e-4)
}

func TestTrackerBacktracking(t *testing.T) {
	sun := solarpos.Position{Zenith: 75, Azimuth: 90}
	free := SingleAxis{AxisAzimuth: 180, MaxAngle: 90, GCR: 0.5}
	back := free
	back.Backtrack = true

	ideal := free.Orient(sun).TrackerTheta
	corrected := back.Orient(sun).TrackerTheta
	assert.InDelta(t, -75, ideal, 1e-9)
	assert.Less(t, ideal, corrected)
	assert.Less(t, corrected, 0.0)

	// No shading at moderate angles: backtracking leaves the rotation alone.
	mid := solarpos.Position{Zenith: 40, Azimuth: 90}
	assert.InDelta(t, free.Orient(mid).TrackerTheta, back.Orient(mid).TrackerTheta, 1e-9)
}

func TestTrackerStowsAtNight(t *testing.T) {
	tr := SingleAxis{AxisAzimuth: 180, MaxAngle: 60, GCR: 0.3, Backtrack: true}
	o := tr.Orient(solarpos.Position{Zenith: 110, Azimuth: 0})
	assert.Zero(t, o.TrackerTheta)
	assert.Zero(t, o.SurfaceTilt)
}
