package audit

import "testing"

// Property: hash stability under key reordering.
func TestParamsHash_StableUnderKeyReordering(t *testing.T) {
	a := map[string]any{"amount": 500.0, "currency": "USD", "vendor_id": "v1"}
	b := map[string]any{"vendor_id": "v1", "amount": 500.0, "currency": "USD"}

	if ParamsHash(a) != ParamsHash(b) {
		t.Fatal("hash must be invariant under map key order")
	}
}

func TestParamsHash_DifferentValuesDifferentHash(t *testing.T) {
	a := map[string]any{"amount": 500.0}
	b := map[string]any{"amount": 501.0}
	if ParamsHash(a) == ParamsHash(b) {
		t.Fatal("expected different hashes for different values")
	}
}

func TestParamsHash_Empty(t *testing.T) {
	if ParamsHash(map[string]any{}) == "" {
		t.Fatal("expected a hash even for empty params")
	}
}

func TestParamsHash_NestedMapsStable(t *testing.T) {
	a := map[string]any{"outer": map[string]any{"a": 1, "b": 2}}
	b := map[string]any{"outer": map[string]any{"b": 2, "a": 1}}
	if ParamsHash(a) != ParamsHash(b) {
		t.Fatal("nested map key order must not affect the hash")
	}
}
