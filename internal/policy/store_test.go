package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePolicyFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const allowFilesRead = `
version: 1
agents:
  - id: reader
    allow:
      - tool: files
        actions: [read]
`

const denyFilesRead = `
version: 1
agents:
  - id: reader
    allow:
      - tool: files
        actions: [write]
`

// S6 — bad file isolation.
func TestStore_Load_BadFileIsolation(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "good.yaml", allowFilesRead)
	writePolicyFile(t, dir, "bad.yaml", "not: [valid, yaml: {{{")

	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	snap := s.Current()
	if len(snap.Files) != 1 {
		t.Fatalf("expected 1 successfully loaded file, got %d", len(snap.Files))
	}

	d := snap.Evaluate(EvaluationContext{AgentID: "reader", Tool: "files", Action: "read"})
	if !d.Allow {
		t.Fatalf("expected good.yaml's policy to still be evaluated: %s", d.Reason)
	}
}

func TestStore_Load_AllFilesFailRetainsPrevious(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "good.yaml", allowFilesRead)

	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	if len(s.Current().Files) != 1 {
		t.Fatal("expected initial snapshot to have 1 file")
	}

	// Now corrupt the only file.
	writePolicyFile(t, dir, "good.yaml", "{{{not yaml")
	if err := s.Load(); err != nil {
		t.Fatalf("reload returned error: %v", err)
	}

	if len(s.Current().Files) != 1 {
		t.Fatal("expected previous snapshot to be retained when every file fails")
	}
}

// Multi-file resolution: path-sorted ascending, first allow/require_approval wins.
func TestSnapshot_Evaluate_MultiFileResolution(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "a-deny.yaml", denyFilesRead)
	writePolicyFile(t, dir, "b-allow.yaml", allowFilesRead)

	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	d := s.Current().Evaluate(EvaluationContext{AgentID: "reader", Tool: "files", Action: "read"})
	if !d.Allow {
		t.Fatalf("expected second file's allow to win, got: %s", d.Reason)
	}
}

func TestSnapshot_Evaluate_NoFileAllows_ReturnsLast(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "a-deny.yaml", denyFilesRead)
	writePolicyFile(t, dir, "b-deny.yaml", denyFilesRead)

	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	d := s.Current().Evaluate(EvaluationContext{AgentID: "reader", Tool: "files", Action: "read"})
	if d.Allow {
		t.Fatal("expected deny when no file allows")
	}
}

func TestSnapshot_Evaluate_EmptySnapshotDeniesWithNoPoliciesLoaded(t *testing.T) {
	snap := &Snapshot{}
	d := snap.Evaluate(EvaluationContext{AgentID: "anyone", Tool: "x", Action: "y"})
	if d.Allow {
		t.Fatal("expected deny")
	}
	if d.Reason != "No policies loaded" {
		t.Errorf("unexpected reason: %s", d.Reason)
	}
}

// S5 — hot reload via Watcher, observed within 1s of the file change.
func TestWatcher_HotReload(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "policy.yaml", denyFilesRead)

	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(s, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	d := s.Current().Evaluate(EvaluationContext{AgentID: "reader", Tool: "files", Action: "read"})
	if d.Allow {
		t.Fatal("expected initial policy to deny files.read")
	}

	writePolicyFile(t, dir, "policy.yaml", allowFilesRead)

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		d = s.Current().Evaluate(EvaluationContext{AgentID: "reader", Tool: "files", Action: "read"})
		if d.Allow {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !d.Allow {
		t.Fatal("expected hot-reloaded policy to allow files.read within 1s")
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	writePolicyFile(t, dir, "a.yaml", allowFilesRead)
	s := NewStore(dir, nil)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	stats := s.Current().Stats()
	if stats.PolicyFiles != 1 || stats.TotalAgents != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
