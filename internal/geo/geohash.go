package geo

// maxGeohashPrecision is the default/maximum geohash string length this
// package produces; the outgoing coincidence line (§6) always truncates to
// 5 characters regardless of a station's configured MaxGeohashLength.
const maxGeohashPrecision = 12

const base32Alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the base32 geohash of (lat, lon) truncated to precision
// characters.
func Encode(lat, lon float64, precision int) string {
	if precision <= 0 {
		precision = maxGeohashPrecision
	}

	latRange := [2]float64{-90, 90}
	lonRange := [2]float64{-180, 180}

	hash := make([]byte, 0, precision)
	var bit, ch int
	evenBit := true

	for len(hash) < precision {
		if evenBit {
			mid := (lonRange[0] + lonRange[1]) / 2
			if lon >= mid {
				ch |= 1 << uint(4-bit)
				lonRange[0] = mid
			} else {
				lonRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat >= mid {
				ch |= 1 << uint(4-bit)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}
		evenBit = !evenBit

		if bit < 4 {
			bit++
		} else {
			hash = append(hash, base32Alphabet[ch])
			bit = 0
			ch = 0
		}
	}

	return string(hash)
}
