package policy

import "fmt"

// checkConditions runs the fixed condition set against params in the
// mandated order (max_amount, then currencies, then folder_prefix) and
// returns the reason for the first violation, or "" if none fire.
func checkConditions(c ConditionSet, params map[string]any) string {
	if c.MaxAmount != nil {
		if reason, checked := checkMaxAmount(*c.MaxAmount, params); checked {
			return reason
		}
	}
	if len(c.Currencies) > 0 {
		if reason, checked := checkCurrencies(c.Currencies, params); checked {
			return reason
		}
	}
	if c.FolderPrefix != "" {
		if reason, checked := checkFolderPrefix(c.FolderPrefix, params); checked {
			return reason
		}
	}
	return ""
}

func checkMaxAmount(max float64, params map[string]any) (reason string, violated bool) {
	amount, ok := numericParam(params, "amount")
	if !ok {
		return fmt.Sprintf("condition max_amount requires numeric params.amount"), true
	}
	if amount > max {
		return fmt.Sprintf("Amount %.2f exceeds max_amount=%.2f", amount, max), true
	}
	return "", false
}

func checkCurrencies(allowed []string, params map[string]any) (reason string, violated bool) {
	currency, ok := params["currency"].(string)
	if !ok || currency == "" {
		return "condition currencies requires params.currency", true
	}
	for _, c := range allowed {
		if c == currency {
			return "", false
		}
	}
	return fmt.Sprintf("Currency %q not in allowed list: %v", currency, allowed), true
}

func checkFolderPrefix(prefix string, params map[string]any) (reason string, violated bool) {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return "condition folder_prefix requires params.path", true
	}
	if len(path) < len(prefix) || path[:len(prefix)] != prefix {
		return fmt.Sprintf("Path %q does not match folder_prefix=%q", path, prefix), true
	}
	return "", false
}

// numericParam extracts a float64 from a map[string]any value that may
// have arrived as float64 (JSON), float32, int or int64. Any other type,
// including the other integer types, is reported as non-numeric.
func numericParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
