// Package geo has small great-circle helpers shared by the site and station
// lookups.
package geo

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine distance between two points in degrees.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1, p2 := lat1*math.Pi/180, lat2*math.Pi/180
	dp := p2 - p1
	dl := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Nearest returns the index of the point closest to (lat, lon) and its
// distance, or -1 when n is zero. at yields the coordinates of point i.
func Nearest(lat, lon float64, n int, at func(i int) (float64, float64)) (int, float64) {
	best, bestD := -1, math.Inf(1)
	for i := 0; i < n; i++ {
		plat, plon := at(i)
		if d := DistanceKm(lat, lon, plat, plon); d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD
}
