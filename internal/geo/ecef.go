// Package geo implements the WGS-84 geodetic transform, a geohash encoder,
// and the light-cone coincidence criterion used to score pairs of hits.
package geo

import "math"

// WGS-84 ellipsoid constants.
const (
	semiMajorAxis = 6378137.0          // a, metres
	flattening    = 1 / 298.257223563  // f
)

// SpeedOfLight is c in metres/second, used throughout the light-cone
// criterion and the time-of-flight bound.
const SpeedOfLight = 299792458.0

// Location is a geographic position with GNSS quality metadata.
type Location struct {
	Latitude          float64 // degrees
	Longitude         float64 // degrees
	Height            float64 // metres above the ellipsoid
	HorizontalAccuracy float64 // metres
	VerticalAccuracy   float64 // metres
	DOP               float64 // dilution of precision
	Geohash           string
	MaxGeohashLength  int
}

// ECEF converts a Location to earth-centred, earth-fixed cartesian
// coordinates in metres, using the full WGS-84 geodetic transform (not a
// spherical approximation).
func (l Location) ECEF() (x, y, z float64) {
	lat := l.Latitude * math.Pi / 180
	lon := l.Longitude * math.Pi / 180

	eccSq := flattening * (2 - flattening) // e^2 = f(2-f)
	sinLat := math.Sin(lat)
	n := semiMajorAxis / math.Sqrt(1-eccSq*sinLat*sinLat) // prime vertical radius

	x = (n + l.Height) * math.Cos(lat) * math.Cos(lon)
	y = (n + l.Height) * math.Cos(lat) * math.Sin(lon)
	z = (n*(1-eccSq) + l.Height) * sinLat
	return x, y, z
}

// Distance returns the straight-line (chord) distance between two
// Locations in metres, computed via their ECEF coordinates.
func Distance(a, b Location) float64 {
	ax, ay, az := a.ECEF()
	bx, by, bz := b.ECEF()
	dx := ax - bx
	dy := ay - by
	dz := az - bz
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// LocationPrecision implements f_location's numerator: dop * sqrt(h_acc^2 + v_acc^2).
func (l Location) LocationPrecision() float64 {
	return l.DOP * math.Sqrt(l.HorizontalAccuracy*l.HorizontalAccuracy+l.VerticalAccuracy*l.VerticalAccuracy)
}

// WithGeohash returns a copy of l with Geohash populated and truncated to
// MaxGeohashLength (or the full default precision if unset).
func (l Location) WithGeohash() Location {
	length := l.MaxGeohashLength
	if length <= 0 || length > maxGeohashPrecision {
		length = maxGeohashPrecision
	}
	l.Geohash = Encode(l.Latitude, l.Longitude, length)
	return l
}
