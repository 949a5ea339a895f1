package rag

// AllValues is the sentinel filter value meaning "no restriction"
const AllValues = "All"

// ActiveFilters drops filter entries that do not restrict anything:
// nil values, empty strings and the "All" sentinel.
func ActiveFilters(filters map[string]any) map[string]any {
	active := make(map[string]any, len(filters))
	for k, v := range filters {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && (s == "" || s == AllValues) {
			continue
		}
		active[k] = v
	}
	return active
}

// MatchesFilters reports whether metadata equals every active filter value.
// Values of different kinds never match, so a malformed filter selects nothing.
func MatchesFilters(metadata map[string]any, filters map[string]any) bool {
	for key, want := range ActiveFilters(filters) {
		got, ok := metadata[key]
		if !ok || !sameValue(got, want) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
