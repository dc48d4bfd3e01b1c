package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Snapshot is an immutable, atomically-published set of currently
// loaded policy files, ordered path-sorted ascending for deterministic
// multi-file resolution.
type Snapshot struct {
	Files []*PolicyFile
}

// Stats summarizes a Snapshot for health reporting.
type Stats struct {
	PolicyFiles int `json:"policy_files"`
	TotalAgents int `json:"total_agents"`
}

func (s *Snapshot) Stats() Stats {
	st := Stats{PolicyFiles: len(s.Files)}
	for _, f := range s.Files {
		st.TotalAgents += len(f.Agents)
	}
	return st
}

// Store holds the current policy Snapshot behind an atomic pointer so
// reads never block on a writer and never observe a torn mix of old
// and new files. This is the classical read-copy-update pattern: the
// writer builds a whole new Snapshot and swaps the pointer; readers
// that grabbed the old pointer keep evaluating against it until they
// finish, even across an in-flight reload.
type Store struct {
	dir      string
	snapshot atomic.Pointer[Snapshot]
	logger   *slog.Logger
}

// NewStore creates a Store rooted at dir. Call Load to populate the
// initial snapshot.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("component", "policy.Store")}
}

// Current returns the currently published Snapshot. Safe to call
// concurrently with Load; never returns nil once Load has succeeded at
// least once (an empty Snapshot is valid and denies everything).
func (s *Store) Current() *Snapshot {
	snap := s.snapshot.Load()
	if snap == nil {
		return &Snapshot{}
	}
	return snap
}

// Load enumerates *.yaml and *.yml files in the store's directory,
// parses and validates each, and atomically publishes a new snapshot
// containing every file that succeeded. If every file fails (and the
// directory was non-empty), the previous snapshot is retained rather
// than replaced with an empty one — availability over correctness
// during a bad edit.
func (s *Store) Load() error {
	paths, err := policyFilePaths(s.dir)
	if err != nil {
		return fmt.Errorf("enumerate policy directory %s: %w", s.dir, err)
	}

	var loaded []*PolicyFile
	var failures int
	for _, path := range paths {
		pf, err := loadOne(path)
		if err != nil {
			failures++
			s.logger.Error("skipping invalid policy file", "path", path, "error", err)
			continue
		}
		loaded = append(loaded, pf)
	}

	if len(loaded) == 0 && failures > 0 {
		s.logger.Error("all policy files failed to load, retaining previous snapshot",
			"dir", s.dir, "failures", failures)
		return nil
	}

	s.snapshot.Store(&Snapshot{Files: loaded})
	s.logger.Info("policy snapshot published", "files", len(loaded), "failures", failures)
	return nil
}

func loadOne(path string) (*PolicyFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf PolicyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(&pf); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	pf.Path = path
	return &pf, nil
}

func policyFilePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Evaluate resolves ctx across every file in the snapshot, in
// path-sorted order. The first file whose Decision has Allow=true or
// RequireApproval=true wins outright; if no file produces either, the
// Decision from the last consulted file is returned so the caller
// always sees a concrete reason. An empty snapshot denies with
// NoPoliciesLoaded.
func (snap *Snapshot) Evaluate(ctx EvaluationContext) Decision {
	if len(snap.Files) == 0 {
		return Decision{Allow: false, Reason: "No policies loaded", Version: 0}
	}

	var last Decision
	for _, f := range snap.Files {
		d := Evaluate(f, ctx)
		if d.Allow || d.RequireApproval {
			return d
		}
		last = d
	}
	return last
}
