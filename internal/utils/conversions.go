package utils

func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// StringSliceClaim reads a claim that may be a JSON array of strings or a single space separated string
func StringSliceClaim(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		return ToStringSlice(val)
	case string:
		if val == "" {
			return nil
		}
		return splitFields(val)
	default:
		return nil
	}
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == ',' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
