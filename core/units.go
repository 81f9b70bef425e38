package core

import "math"

const (
	metersPerMile = 1609.34
	feetPerMeter  = 3.28084
)

// MetersToMiles converts a distance reported by the provider (meters) into
// the miles figure stored on planned workouts. Every comparison between a
// planned and an actual distance must go through this function so that
// conflict detection and merging never disagree on rounding.
func MetersToMiles(meters float64) float64 {
	return meters / metersPerMile
}

// SecondsToMinutes converts a provider moving time into whole minutes,
// rounding half away from zero.
func SecondsToMinutes(seconds float64) int {
	return int(math.Round(seconds / 60))
}

// MetersToFeet converts an elevation gain into whole feet.
func MetersToFeet(meters float64) int {
	return int(math.Round(meters * feetPerMeter))
}

// RelativeDifference returns |planned-actual| / |planned|. A zero planned
// value yields 0 when actual is also zero and +Inf otherwise, which keeps
// threshold comparisons well defined without a special case at call sites.
func RelativeDifference(planned, actual float64) float64 {
	if planned == 0 {
		if actual == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(planned-actual) / math.Abs(planned)
}
