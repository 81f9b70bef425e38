package core

// NumericConflictTolerance is the relative tolerance under which a planned
// and an actual numeric value are treated as agreeing. Measured distance and
// duration naturally drift a little; categorical fields do not, so strings
// must match exactly.
const NumericConflictTolerance = 0.10

// DetectConflict reports whether a planned and an actual value disagree
// beyond tolerance. An absent value on either side means there is nothing to
// reconcile. The function is pure and total: it has no error path.
func DetectConflict(field string, planned, actual any) bool {
	if isAbsent(planned) || isAbsent(actual) {
		return false
	}
	plannedNum, plannedOK := toFloat(planned)
	actualNum, actualOK := toFloat(actual)
	if plannedOK && actualOK {
		return RelativeDifference(plannedNum, actualNum) > NumericConflictTolerance
	}
	return asString(planned) != asString(actual)
}

// isAbsent treats nil and nil typed pointers as missing values. Zero values
// are present: a planned distance of 0 is data, not absence.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case *float64:
		return t == nil
	case *int:
		return t == nil
	case *int64:
		return t == nil
	case *string:
		return t == nil
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case *float64:
		if t == nil {
			return 0, false
		}
		return *t, true
	case *int:
		if t == nil {
			return 0, false
		}
		return float64(*t), true
	case *int64:
		if t == nil {
			return 0, false
		}
		return float64(*t), true
	}
	return 0, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	}
	return ""
}
