package extractor

// IsErrorOutcome decides whether an extraction result counts as an
// error: no result at all, a truthy error/Error field, or
// success=false.
func IsErrorOutcome(result map[string]any) bool {
	if result == nil {
		return true
	}
	if truthy(result["error"]) || truthy(result["Error"]) {
		return true
	}
	if success, ok := result["success"]; ok {
		if b, isBool := success.(bool); isBool && !b {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		return true
	}
}
