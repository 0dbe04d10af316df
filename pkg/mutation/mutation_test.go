package mutation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// writeFakeTool writes a shell script playing the role of the mutation
// tool's child process: it echoes one canned JSON response line per
// request line read from stdin, then exits.
func writeFakeTool(t *testing.T, dir, name string, responses ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)

	body := "#!/bin/sh\n"
	for range responses {
		body += "read -r line\n"
	}
	for _, r := range responses {
		body += "printf '%s\\n' '" + r + "'\n"
	}

	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("writing fake tool %s: %v", name, err)
	}
	return path
}

func TestNonEmptySubsetsExcludesEmptySetAndOrdersBySize(t *testing.T) {
	subsets := nonEmptySubsets([]string{"insert", "replace"})
	if len(subsets) != 3 {
		t.Fatalf("nonEmptySubsets() returned %d subsets, want 3", len(subsets))
	}
	for _, s := range subsets {
		if len(s) == 0 {
			t.Fatalf("nonEmptySubsets() returned the empty set")
		}
	}
	if len(subsets[0]) != 1 || len(subsets[len(subsets)-1]) != 2 {
		t.Errorf("nonEmptySubsets() = %v, want ascending by size", subsets)
	}
}

func TestSessionNextReturnsPatchAndEndsOnExit(t *testing.T) {
	dir := t.TempDir()
	response := `{"Result":"Ok","NewMutationSequences":[[["insert","1"]]],"PatchedFilePaths":["/tmp/patch1.sol"],"ModifiedLocations":[null]}`
	tool := writeFakeTool(t, dir, "fake-sm.sh", response)

	e := New(Config{BinPath: tool, MutationTypes: []string{"insert"}})

	source := filepath.Join(dir, "subject.sol")
	if err := os.WriteFile(source, []byte("contract C {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	session, err := e.Open(context.Background(), source, nil, 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	patches, ok, err := session.Next(context.Background(), nil)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok {
		t.Fatalf("Next() ok = false on first call, want true")
	}
	if len(patches) != 1 || patches[0].PatchedFile != "/tmp/patch1.sol" {
		t.Fatalf("Next() patches = %+v, want one patch for /tmp/patch1.sol", patches)
	}

	// The fake tool's stdin loop ends after one line, so the subprocess
	// exits; the next call must observe session exhaustion.
	if _, ok, err := session.Next(context.Background(), nil); err != nil || ok {
		t.Fatalf("Next() after subprocess exit = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestSessionNextRotatesOutExhaustedSpace(t *testing.T) {
	dir := t.TempDir()
	response := `{"Result":"AllSpaceExhasuted","NewMutationSequences":[],"PatchedFilePaths":[],"ModifiedLocations":[]}`
	tool := writeFakeTool(t, dir, "fake-sm.sh", response)

	e := New(Config{BinPath: tool, MutationTypes: []string{"insert"}})

	source := filepath.Join(dir, "subject.sol")
	if err := os.WriteFile(source, []byte("contract C {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	session, err := e.Open(context.Background(), source, nil, 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	patches, ok, err := session.Next(context.Background(), nil)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok || len(patches) != 0 {
		t.Fatalf("Next() = (patches=%+v, ok=%v), want (nil, true) for a single exhausted space", patches, ok)
	}

	// The exhausted space must have been rotated out of the running set:
	// a further call must observe the session as exhausted rather than
	// attempt to write to the now-dead subprocess's stdin.
	if _, ok, err := session.Next(context.Background(), nil); err != nil || ok {
		t.Fatalf("Next() after exhaustion = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestRequestMarshalingMatchesWireFormat(t *testing.T) {
	req := NewRandomRequest(5)
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"type":"random","num_mutations":5}`
	if string(data) != want {
		t.Errorf("marshal = %s, want %s", data, want)
	}
}
