// Package testrunner implements the Dynamic Test Runner Adapter: it
// compiles a candidate contract and replays a fixed battery of
// Ethereum test cases against it via an external transaction-execution
// tool, normalizing pass/fail into model.AnalyzerResult. Grounded on
// `_examples/original_source/CR/ETC.py`'s `ETC.detect`/`execTCs`.
package testrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"

	"github.com/repaircore/repaircore/pkg/model"
)

// failedTestCaseName is the synthetic sentinel returned in place of the
// full per-test-case breakdown when fastFail is set and the first test
// case failed. Every test case is still run; only the reported result
// changes.
const failedTestCaseName = "EthereumTestCase_StateTest"

// Config configures one Runner instance.
type Config struct {
	// TestCaseDir holds one file per Ethereum test case to replay.
	TestCaseDir string
	// CompileCmd is a shell command that reads the candidate source from
	// the R environment variable and the target contract name from C, and
	// writes compiled bytecode to stdout.
	CompileCmd string
	// TxToolPath is the path to the external transaction-execution binary.
	TxToolPath string
	// TestEthCmd is the underlying `testeth`-equivalent command forwarded
	// to the transaction tool via --CMD.
	TestEthCmd string
	// ContractAddr is the address the candidate contract is deployed to
	// for replay purposes.
	ContractAddr string
	// ConcurrentLimit bounds how many test cases the transaction tool
	// executes in parallel; 0 lets the tool pick its own default.
	ConcurrentLimit int
}

// Runner replays test cases against a compiled candidate contract.
type Runner struct {
	testCasePaths []string
	compileCmd    string
	contractAddr  string
	baseArgs      []string

	// execLock serializes calls into the underlying transaction tool,
	// mirroring ETC.py's `ctxManagerExecTC` — the tool is not safe to
	// invoke concurrently from multiple Runner callers.
	execLock sync.Mutex
}

// New builds a Runner from cfg, enumerating cfg.TestCaseDir's entries as
// the fixed battery of test cases to replay on every Detect call.
func New(cfg Config) (*Runner, error) {
	entries, err := os.ReadDir(cfg.TestCaseDir)
	if err != nil {
		return nil, fmt.Errorf("testrunner: reading test case directory: %w", err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(cfg.TestCaseDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("testrunner: resolving test case path: %w", err)
		}
		paths = append(paths, abs)
	}
	sort.Strings(paths)

	baseArgs := []string{
		fmt.Sprintf("--CMD=%s", cfg.TestEthCmd),
	}
	if cfg.ConcurrentLimit > 0 {
		baseArgs = append(baseArgs, fmt.Sprintf("--con=%d", cfg.ConcurrentLimit))
	}

	return &Runner{
		testCasePaths: paths,
		compileCmd:    cfg.CompileCmd,
		contractAddr:  cfg.ContractAddr,
		baseArgs:      append([]string{cfg.TxToolPath}, baseArgs...),
	}, nil
}

// Detect compiles sourcePath against targetContractName and replays every
// configured test case. targetContractName is mandatory.
func (r *Runner) Detect(ctx context.Context, sourcePath, targetContractName string, targetLocations []model.CodeRange, fastFail bool) (model.AnalyzerResult, error) {
	if targetContractName == "" {
		return nil, fmt.Errorf("testrunner: targetContractName must be provided")
	}

	bytecode, err := r.compile(ctx, sourcePath, targetContractName)
	if err != nil {
		return nil, err
	}
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("testrunner: compiled bytecode is empty")
	}

	args := append([]string{}, r.baseArgs...)
	args = append(args, fmt.Sprintf("--bin=%s", bytecode))
	if r.contractAddr != "" {
		args = append(args, fmt.Sprintf("--addr=%s", r.contractAddr))
	}
	for _, p := range r.testCasePaths {
		args = append(args, fmt.Sprintf("--path=%s", p))
	}
	if targetLocations != nil {
		locJSON, err := json.Marshal(targetLocations)
		if err != nil {
			return nil, fmt.Errorf("testrunner: encoding target locations: %w", err)
		}
		args = append(args, fmt.Sprintf("--LOCSTR=%s", locJSON))
	}

	r.execLock.Lock()
	results, err := r.execTestCases(ctx, args)
	r.execLock.Unlock()
	if err != nil {
		return nil, err
	}

	if fastFail && len(results) > 0 {
		if passed, ok := results[0].(bool); ok && !passed {
			return model.AnalyzerResult{model.NewDetectedVulnerability(failedTestCaseName, nil)}, nil
		}
	}

	out := make(model.AnalyzerResult, 0, len(results))
	for i, rst := range results {
		if i >= len(r.testCasePaths) {
			break
		}
		name := r.testCasePaths[i]
		switch v := rst.(type) {
		case bool:
			if v {
				out = append(out, model.NewNonDetectedVulnerability(name))
			} else {
				out = append(out, model.NewDetectedVulnerability(name, nil))
			}
		case string:
			if v != "NotRelevant" {
				out = append(out, model.NewDetectedVulnerability(name, nil))
			}
		}
	}
	return out, nil
}

// compile invokes CompileCmd through a shell, exposing sourcePath's
// contents as R and targetContractName as C, matching ETC.py's
// `os.environ['R']`/`os.environ['C']` convention.
func (r *Runner) compile(ctx context.Context, sourcePath, targetContractName string) (string, error) {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("testrunner: reading candidate source: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", r.compileCmd)
	cmd.Env = append(os.Environ(), "R="+string(source), "C="+targetContractName)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("testrunner: compile command failed: %w (stderr: %s)", err, stderr.String())
	}
	return stdout.String(), nil
}

// execTestCases runs the transaction tool once against every configured
// test case path and parses its JSON array of per-case results (each
// either a bool or the string "NotRelevant").
func (r *Runner) execTestCases(ctx context.Context, args []string) ([]any, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("testrunner: transaction tool failed: %w", err)
	}

	var results []any
	if err := json.Unmarshal(stdout.Bytes(), &results); err != nil {
		return nil, fmt.Errorf("testrunner: malformed transaction tool output: %w", err)
	}
	return results, nil
}
