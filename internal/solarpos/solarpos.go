// Package solarpos computes the apparent position of the sun from the NOAA
// low-precision solar coordinate equations. Accuracy is well under a degree
// between 1900 and 2100, which is ample for hourly irradiance transposition.
package solarpos

import (
	"math"
	"time"
)

// Position is the sun's location in the sky for an observer.
type Position struct {
	Zenith        float64 // apparent, degrees from vertical
	Elevation     float64 // apparent, degrees above horizon
	TrueElevation float64 // degrees above horizon before refraction
	Azimuth       float64 // degrees clockwise from north
	Declination   float64 // degrees
	HourAngle     float64 // degrees, negative before solar noon
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }
func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }

func fixAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// julianDay converts t to a Julian Day number.
func julianDay(t time.Time) float64 {
	return 2440587.5 + float64(t.UnixNano())/86400e9
}

// At returns the solar position for latitude lat and longitude lon (degrees,
// east positive) at instant t.
func At(t time.Time, lat, lon float64) Position {
	T := (julianDay(t) - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := 357.52911 + T*(35999.05029-T*0.0001537)
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	Mr := degToRad(M)

	center := math.Sin(Mr)*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(2*Mr)*(0.019993-T*0.000101) +
		math.Sin(3*Mr)*0.000289
	omega := degToRad(125.04 - 1934.136*T)
	lambda := degToRad(L0 + center - 0.00569 - 0.00478*math.Sin(omega))

	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	eps := degToRad(eps0 + 0.00256*math.Cos(omega))

	decl := math.Asin(math.Sin(eps) * math.Sin(lambda))

	y := math.Tan(eps/2) * math.Tan(eps/2)
	L0r := degToRad(L0)
	eqTime := 4 * radToDeg(y*math.Sin(2*L0r)-
		2*e*math.Sin(Mr)+
		4*e*y*math.Sin(Mr)*math.Cos(2*L0r)-
		0.5*y*y*math.Sin(4*L0r)-
		1.25*e*e*math.Sin(2*Mr))

	u := t.UTC()
	utcMin := float64(u.Hour()*60+u.Minute()) + float64(u.Second())/60 + float64(u.Nanosecond())/60e9
	tst := math.Mod(utcMin+eqTime+4*lon, 1440)
	if tst < 0 {
		tst += 1440
	}
	ha := tst/4 - 180

	latR := degToRad(lat)
	haR := degToRad(ha)
	cosZ := math.Sin(latR)*math.Sin(decl) + math.Cos(latR)*math.Cos(decl)*math.Cos(haR)
	cosZ = math.Max(-1, math.Min(1, cosZ))
	elevation := 90 - radToDeg(math.Acos(cosZ))
	apparent := elevation + refraction(elevation)

	az := radToDeg(math.Atan2(math.Sin(haR), math.Cos(haR)*math.Sin(latR)-math.Tan(decl)*math.Cos(latR)))

	return Position{
		Zenith:        90 - apparent,
		Elevation:     apparent,
		TrueElevation: elevation,
		Azimuth:       fixAngle(az + 180),
		Declination:   radToDeg(decl),
		HourAngle:     ha,
	}
}

// refraction returns the NOAA approximation of atmospheric refraction in
// degrees for a true elevation in degrees.
func refraction(elevation float64) float64 {
	if elevation > 85 {
		return 0
	}
	te := math.Tan(degToRad(elevation))
	var arcsec float64
	switch {
	case elevation > 5:
		arcsec = 58.1/te - 0.07/(te*te*te) + 0.000086/math.Pow(te, 5)
	case elevation > -0.575:
		arcsec = 1735 + elevation*(-518.2+elevation*(103.4+elevation*(-12.79+elevation*0.711)))
	default:
		arcsec = -20.772 / te
	}
	return arcsec / 3600
}
