package testrunner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// writeScript writes an executable shell script and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing script %s: %v", name, err)
	}
	return path
}

func newFixture(t *testing.T, txToolBody string) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()

	tcDir := filepath.Join(dir, "testcases")
	if err := os.Mkdir(tcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"tc_one.json", "tc_two.json"} {
		if err := os.WriteFile(filepath.Join(tcDir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	compileScript := writeScript(t, dir, "compile.sh", `printf '0xdeadbeef'`)
	txTool := writeScript(t, dir, "txtool.sh", txToolBody)

	source := filepath.Join(dir, "subject.sol")
	if err := os.WriteFile(source, []byte("contract C {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := New(Config{
		TestCaseDir: tcDir,
		CompileCmd:  compileScript,
		TxToolPath:  txTool,
		TestEthCmd:  "testeth",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, source
}

func TestDetectRequiresContractName(t *testing.T) {
	r, source := newFixture(t, `echo '[true, true]'`)
	if _, err := r.Detect(context.Background(), source, "", nil, false); err == nil {
		t.Fatal("Detect() error = nil, want error when targetContractName is empty")
	}
}

func TestDetectAllPassing(t *testing.T) {
	r, source := newFixture(t, `echo '[true, true]'`)

	result, err := r.Detect(context.Background(), source, "C", nil, false)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Detect() returned %d results, want 2", len(result))
	}
	for _, v := range result {
		if v.Detected {
			t.Errorf("vulnerability %+v Detected = true, want false (test case passed)", v)
		}
	}
}

func TestDetectMixedResultsAndNotRelevant(t *testing.T) {
	r, source := newFixture(t, `echo '[false, "NotRelevant"]'`)

	result, err := r.Detect(context.Background(), source, "C", nil, false)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Detect() returned %d results, want 1 (NotRelevant case dropped)", len(result))
	}
	if !result[0].Detected {
		t.Errorf("Detected = false, want true (test case failed)")
	}
}

func TestDetectFastFailReturnsSentinelOnFirstFailure(t *testing.T) {
	r, source := newFixture(t, `echo '[false, true]'`)

	result, err := r.Detect(context.Background(), source, "C", nil, true)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(result) != 1 || result[0].Name != failedTestCaseName {
		t.Fatalf("Detect() with fastFail on first failure = %+v, want single %s sentinel", result, failedTestCaseName)
	}
}

func TestDetectFastFailPassesThroughWhenFirstPasses(t *testing.T) {
	r, source := newFixture(t, `echo '[true, false]'`)

	result, err := r.Detect(context.Background(), source, "C", nil, true)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Detect() = %+v, want full breakdown when first test case passes", result)
	}
}
