package core

import (
	"fmt"
	"strings"
	"time"
)

// Confidence thresholds for the categorical match type. Ordering matters:
// checked from strongest to weakest.
const (
	matchExactThreshold    = 0.9
	matchProbableThreshold = 0.7
	matchPossibleThreshold = 0.4
)

// ClassifyMatch scores how well an activity fits an already-identified
// workout candidate. It never fails: a pair with nothing in common simply
// scores low and classifies as conflict. Candidate discovery happens
// upstream; this only grades a given pair.
func ClassifyMatch(activity ExternalActivity, workout PlannedWorkout) MatchResult {
	var confidence float64
	var discrepancies []Discrepancy
	var suggestions []string

	// Date proximity carries the most weight: a same-day run against a
	// same-day plan is the strongest signal we have.
	dayGap := daysApart(activity.StartDate, workout.Date)
	switch {
	case dayGap == 0:
		confidence += 0.5
	case dayGap == 1:
		confidence += 0.3
		discrepancies = append(discrepancies, Discrepancy{
			Field:       "date",
			Planned:     workout.Date.Format("2006-01-02"),
			Actual:      activity.StartDate.Format("2006-01-02"),
			Severity:    SeverityModerate,
			Description: "activity recorded one day off the planned date",
		})
	default:
		discrepancies = append(discrepancies, Discrepancy{
			Field:       "date",
			Planned:     workout.Date.Format("2006-01-02"),
			Actual:      activity.StartDate.Format("2006-01-02"),
			Severity:    SeverityMajor,
			Description: fmt.Sprintf("activity recorded %d days off the planned date", dayGap),
		})
	}

	actualMiles := MetersToMiles(activity.DistanceMeters)
	if workout.PlannedDistanceMiles != nil {
		diff := RelativeDifference(*workout.PlannedDistanceMiles, actualMiles)
		switch {
		case diff <= 0.05:
			confidence += 0.3
		case diff <= 0.15:
			confidence += 0.2
		case diff <= 0.30:
			confidence += 0.1
		}
		if diff > NumericConflictTolerance {
			discrepancies = append(discrepancies, Discrepancy{
				Field:       "distance",
				Planned:     *workout.PlannedDistanceMiles,
				Actual:      actualMiles,
				Severity:    SeverityForDifference(diff),
				Description: fmt.Sprintf("distance differs by %.0f%% from plan", diff*100),
			})
		}
	}

	actualMinutes := SecondsToMinutes(activity.MovingTimeSeconds)
	if workout.PlannedDurationMinutes != nil {
		diff := RelativeDifference(float64(*workout.PlannedDurationMinutes), float64(actualMinutes))
		switch {
		case diff <= 0.05:
			confidence += 0.2
		case diff <= 0.15:
			confidence += 0.1
		}
		if diff > NumericConflictTolerance {
			discrepancies = append(discrepancies, Discrepancy{
				Field:       "duration",
				Planned:     *workout.PlannedDurationMinutes,
				Actual:      actualMinutes,
				Severity:    SeverityForDifference(diff),
				Description: fmt.Sprintf("duration differs by %.0f%% from plan", diff*100),
			})
		}
	}

	typeMismatch := false
	if workout.PlannedType != "" && !strings.EqualFold(workout.PlannedType, activity.SportType) {
		typeMismatch = true
		discrepancies = append(discrepancies, Discrepancy{
			Field:       "type",
			Planned:     workout.PlannedType,
			Actual:      activity.SportType,
			Severity:    SeverityMajor,
			Description: "activity type does not match the planned session type",
		})
		suggestions = append(suggestions, "check whether the athlete logged the wrong sport or substituted a session")
	}

	if confidence > 1 {
		confidence = 1
	}

	matchType := classify(confidence)
	if typeMismatch {
		matchType = MatchTypeConflict
	}
	if matchType == MatchTypePossible || matchType == MatchTypeConflict {
		suggestions = append(suggestions, "review field differences before merging")
	}

	return MatchResult{
		Confidence:    confidence,
		MatchType:     matchType,
		Discrepancies: discrepancies,
		Suggestions:   suggestions,
	}
}

func classify(confidence float64) MatchType {
	switch {
	case confidence >= matchExactThreshold:
		return MatchTypeExact
	case confidence >= matchProbableThreshold:
		return MatchTypeProbable
	case confidence >= matchPossibleThreshold:
		return MatchTypePossible
	}
	return MatchTypeConflict
}

// SeverityForDifference buckets a relative difference for display.
func SeverityForDifference(diff float64) Severity {
	switch {
	case diff <= 0.10:
		return SeverityMinor
	case diff <= 0.25:
		return SeverityModerate
	}
	return SeverityMajor
}

func daysApart(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	at := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bt := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	gap := int(at.Sub(bt).Hours() / 24)
	if gap < 0 {
		gap = -gap
	}
	return gap
}
