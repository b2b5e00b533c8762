package station

import (
	"math"

	"github.com/muonpi/clusterproc/internal/geo"
	"github.com/muonpi/clusterproc/internal/messages"
)

// ReliabilityFactors holds the three dimensionless ratios the reliability
// heuristic classifies against the hysteresis band (§4.1).
type ReliabilityFactors struct {
	Location float64
	Time     float64
	Rate     float64
}

// locationFactor computes f_location = loc_precision / (c * 1000ns).
func locationFactor(loc geo.Location) float64 {
	return loc.LocationPrecision() / (geo.SpeedOfLight * 1000e-9)
}

// timeFactor computes f_time = mean(short_time_acc) / 1000ns.
func timeFactor(shortTimeAccuracyMean float64) float64 {
	return shortTimeAccuracyMean / maxTimeAccuracyNanos
}

// rateFactor computes f_rate = stddev(mean_rate) / (0.75 * mean(mean_rate)).
func rateFactor(meanRateStdDev, meanRateMean float64) float64 {
	denom := 0.75 * meanRateMean
	if denom == 0 {
		return 0
	}
	return meanRateStdDev / denom
}

// Factors computes the three reliability ratios for the station's current
// state.
func (d *DetectorStation) Factors() ReliabilityFactors {
	return ReliabilityFactors{
		Location: locationFactor(d.Location),
		Time:     timeFactor(d.shortTimeAccuracy.Mean()),
		Rate:     rateFactor(d.meanRate.StdDev(), d.meanRate.Mean()),
	}
}

// reasonFor maps the factor that tripped the upper hysteresis bound to its
// DetectorTrigger reason.
func reasonFor(f ReliabilityFactors, upper float64) messages.Reason {
	switch {
	case f.Location > upper:
		return messages.ReasonLocationPrecision
	case f.Time > upper:
		return messages.ReasonTimeAccuracy
	case f.Rate > upper:
		return messages.ReasonRateInstability
	default:
		return messages.ReasonNone
	}
}

// Recheck applies the ±hysteresis-band reliability rule (§4.1) and returns
// the new status plus a reason (meaningful only when the new status is
// Unreliable). Supervisor.Step calls it for every station inside the
// missed-log interval, including one still in Created; a station whose
// factors fall inside the band keeps its current status.
func (d *DetectorStation) Recheck(hysteresis float64) (messages.Status, messages.Reason) {
	upper := 1 + hysteresis
	lower := 1 - hysteresis
	f := d.Factors()

	if f.Location > upper || f.Time > upper || f.Rate > upper {
		return messages.Unreliable, reasonFor(f, upper)
	}
	if f.Location < lower && f.Time < lower && math.Abs(f.Rate) < lower {
		return messages.Reliable, messages.ReasonNone
	}
	return d.Status, d.Reason
}
