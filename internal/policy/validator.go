package policy

import "fmt"

// Validate checks the structural invariants of a PolicyFile, reporting
// the first failure encountered. A file that fails validation is
// rejected whole by the Store; its prior version (if any) stays live.
func Validate(f *PolicyFile) error {
	if f.Version <= 0 {
		return fmt.Errorf("version must be > 0, got %d", f.Version)
	}
	if len(f.Agents) == 0 {
		return fmt.Errorf("policy file has no agents")
	}

	seen := make(map[string]bool, len(f.Agents))
	for _, a := range f.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent has empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true

		if len(a.Allow) == 0 {
			return fmt.Errorf("agent %q has no allow entries", a.ID)
		}
		for i, p := range a.Allow {
			if p.Tool == "" {
				return fmt.Errorf("agent %q: allow[%d] has empty tool", a.ID, i)
			}
			if len(p.Actions) == 0 {
				return fmt.Errorf("agent %q: allow[%d] (tool %q) has no actions", a.ID, i, p.Tool)
			}
		}
	}
	return nil
}
