package core

import "strings"

type MergeStrategy string

const (
	MergeStrategyPreferPlanned MergeStrategy = "prefer_planned"
	MergeStrategyPreferActual  MergeStrategy = "prefer_actual"
	MergeStrategySmart         MergeStrategy = "smart_merge"
	MergeStrategyManual        MergeStrategy = "manual"
)

// StrategyLabelUnchanged marks fields left as-is when a strategy tag is not
// recognised. It is not a fifth strategy; callers surface it as a warning.
const StrategyLabelUnchanged = "unchanged"

// SmartMergeThreshold is the relative difference beyond which smart_merge
// stops trusting the plan and takes the measured value instead. Within the
// threshold the planned value wins, treating the gap as measurement noise.
const SmartMergeThreshold = 0.20

// magnitudeFields are the fields smart_merge compares numerically. All
// other fields fall back to actual-preferred-with-fallback.
var magnitudeFields = map[string]struct{}{
	"distance": {},
	"duration": {},
}

func (s MergeStrategy) IsValid() bool {
	switch s {
	case MergeStrategyPreferPlanned, MergeStrategyPreferActual, MergeStrategySmart, MergeStrategyManual:
		return true
	}
	return false
}

// MergeFieldOptions carries the per-field inputs for one resolution: an
// optional strategy override and, for manual merges, the caller-supplied
// custom value.
type MergeFieldOptions struct {
	Strategy    MergeStrategy
	Override    *MergeStrategy
	CustomValue any
	HasCustom   bool
}

// MergeResolution is the outcome of resolving a single field.
type MergeResolution struct {
	Value         any
	StrategyLabel string
}

// ApplyMergeStrategy resolves the final value for one field. The effective
// strategy is the per-field override when present, else the caller's global
// strategy. The function is pure: it never writes anything.
func ApplyMergeStrategy(field string, planned, actual any, opts MergeFieldOptions) MergeResolution {
	strategy := opts.Strategy
	if opts.Override != nil {
		strategy = *opts.Override
	}

	switch strategy {
	case MergeStrategyPreferPlanned:
		if isAbsent(planned) {
			return MergeResolution{Value: actual, StrategyLabel: string(MergeStrategyPreferPlanned)}
		}
		return MergeResolution{Value: planned, StrategyLabel: string(MergeStrategyPreferPlanned)}

	case MergeStrategyPreferActual:
		if isAbsent(actual) {
			return MergeResolution{Value: planned, StrategyLabel: string(MergeStrategyPreferActual)}
		}
		return MergeResolution{Value: actual, StrategyLabel: string(MergeStrategyPreferActual)}

	case MergeStrategySmart:
		return smartMerge(field, planned, actual)

	case MergeStrategyManual:
		if opts.HasCustom {
			return MergeResolution{Value: opts.CustomValue, StrategyLabel: string(MergeStrategyManual)}
		}
		return MergeResolution{Value: planned, StrategyLabel: string(MergeStrategyManual)}
	}

	// Unrecognised strategy tags fall through to a no-op rather than failing
	// the whole merge. Callers log this label distinctly so misconfiguration
	// does not pass silently.
	return MergeResolution{Value: planned, StrategyLabel: StrategyLabelUnchanged}
}

func smartMerge(field string, planned, actual any) MergeResolution {
	label := string(MergeStrategySmart)
	if _, magnitude := magnitudeFields[field]; magnitude {
		if isAbsent(planned) {
			return MergeResolution{Value: actual, StrategyLabel: label}
		}
		if isAbsent(actual) {
			return MergeResolution{Value: planned, StrategyLabel: label}
		}
		plannedNum, plannedOK := toFloat(planned)
		actualNum, actualOK := toFloat(actual)
		if plannedOK && actualOK {
			if RelativeDifference(plannedNum, actualNum) > SmartMergeThreshold {
				// Far from plan: the measurement wins, the plan was off.
				return MergeResolution{Value: actual, StrategyLabel: label}
			}
			// Close to plan: keep the planned figure, treat the gap as noise.
			return MergeResolution{Value: planned, StrategyLabel: label}
		}
	}
	if isAbsent(actual) {
		return MergeResolution{Value: planned, StrategyLabel: label}
	}
	return MergeResolution{Value: actual, StrategyLabel: label}
}

// InferTerrain guesses a terrain label from activity metadata. The trainer
// flag is the only real signal; "trail" for outdoor runs is a best-effort
// default for an ultramarathon audience, not a classification the provider
// gives us. Kept behind this function so it can be replaced without
// touching merge logic.
func InferTerrain(activity ExternalActivity) string {
	if activity.Trainer {
		return "treadmill"
	}
	if strings.EqualFold(activity.SportType, "run") || strings.EqualFold(activity.SportType, "trailrun") {
		return "trail"
	}
	return "unknown"
}

type NotesMode string

const (
	NotesModeAppend  NotesMode = "append"
	NotesModePrepend NotesMode = "prepend"
	NotesModeActual  NotesMode = "actual"
	NotesModePlanned NotesMode = "planned"
)

// MergeNotes combines existing workout notes with an incoming block.
// Completed-workout notes are never silently overwritten: append/prepend
// concatenate, actual replaces explicitly, planned keeps the existing text
// unless it is empty.
func MergeNotes(existing, incoming string, mode NotesMode) string {
	existing = strings.TrimSpace(existing)
	incoming = strings.TrimSpace(incoming)
	switch mode {
	case NotesModePrepend:
		return joinNotes(incoming, existing)
	case NotesModeActual:
		return incoming
	case NotesModePlanned:
		if existing == "" {
			return incoming
		}
		return existing
	}
	return joinNotes(existing, incoming)
}

func joinNotes(first, second string) string {
	if first == "" {
		return second
	}
	if second == "" {
		return first
	}
	return first + "\n\n" + second
}

// EstimateIntensity maps an average heart rate onto the platform's 1-10
// effort scale. Bands are coarse on purpose: without the athlete's max HR
// this is an estimate for display, not training science.
func EstimateIntensity(avgHeartRate float64) int {
	switch {
	case avgHeartRate <= 0:
		return 0
	case avgHeartRate < 120:
		return 2
	case avgHeartRate < 140:
		return 4
	case avgHeartRate < 155:
		return 6
	case avgHeartRate < 170:
		return 8
	default:
		return 10
	}
}
