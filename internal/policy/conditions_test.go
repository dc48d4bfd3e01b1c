package policy

import "testing"

func TestCheckConditions_Order(t *testing.T) {
	max := 100.0
	cs := ConditionSet{MaxAmount: &max, Currencies: []string{"USD"}, FolderPrefix: "/x"}

	// amount violates max_amount -- this must win even though currency
	// is also wrong, because max_amount is checked first.
	reason := checkConditions(cs, map[string]any{"amount": 500.0, "currency": "EUR", "path": "/y"})
	if !contains(reason, "max_amount") {
		t.Errorf("expected max_amount violation first, got: %s", reason)
	}
}

func TestCheckConditions_CurrencyThenFolder(t *testing.T) {
	cs := ConditionSet{Currencies: []string{"USD"}, FolderPrefix: "/x"}
	reason := checkConditions(cs, map[string]any{"currency": "EUR", "path": "/y"})
	if !contains(reason, "Currency") {
		t.Errorf("expected currency violation, got: %s", reason)
	}
}

func TestCheckConditions_FolderPrefix(t *testing.T) {
	cs := ConditionSet{FolderPrefix: "/hr-docs"}
	if reason := checkConditions(cs, map[string]any{"path": "/hr-docs/handbook.txt"}); reason != "" {
		t.Errorf("expected no violation, got: %s", reason)
	}
	if reason := checkConditions(cs, map[string]any{"path": "/legal/contract.docx"}); reason == "" {
		t.Error("expected violation for mismatched prefix")
	}
}

func TestCheckConditions_NoConditionsNoViolation(t *testing.T) {
	if reason := checkConditions(ConditionSet{}, map[string]any{}); reason != "" {
		t.Errorf("expected no violation for empty condition set, got: %s", reason)
	}
}

func TestCheckConditions_UnknownKeysIgnored(t *testing.T) {
	// Params carrying extra keys the conditions don't examine must not
	// affect the result.
	max := 1000.0
	cs := ConditionSet{MaxAmount: &max}
	reason := checkConditions(cs, map[string]any{"amount": 1.0, "unrelated": "ignored"})
	if reason != "" {
		t.Errorf("expected no violation, got: %s", reason)
	}
}
