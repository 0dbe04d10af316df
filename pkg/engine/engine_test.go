package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/repaircore/repaircore/pkg/evaluator"
	"github.com/repaircore/repaircore/pkg/model"
	"github.com/repaircore/repaircore/pkg/mutation"
)

// fixedDetector reports sourcePath as vulnerable unless it equals
// fixedPath, simulating an analyzer that clears once the mutation engine
// hands back a specific patched file.
type fixedDetector struct {
	fixedPath string
}

func (d *fixedDetector) Detect(ctx context.Context, sourcePath, targetContractName string, targetedVul []string, targetedLoc []model.CodeRange, fastFail bool) (model.AnalyzerResult, error) {
	if sourcePath == d.fixedPath {
		return model.AnalyzerResult{model.NewNonDetectedVulnerability("reentrancy")}, nil
	}
	return model.AnalyzerResult{model.NewDetectedVulnerability("reentrancy", nil)}, nil
}

// partialDetector reports two targeted detections against any path except
// fixedPath, which reports one — simulating a mutation that silences one of
// two findings rather than clearing them all.
type partialDetector struct {
	fixedPath string
}

func (d *partialDetector) Detect(ctx context.Context, sourcePath, targetContractName string, targetedVul []string, targetedLoc []model.CodeRange, fastFail bool) (model.AnalyzerResult, error) {
	if sourcePath == d.fixedPath {
		return model.AnalyzerResult{model.NewDetectedVulnerability("reentrancy", nil)}, nil
	}
	return model.AnalyzerResult{
		model.NewDetectedVulnerability("reentrancy", nil),
		model.NewDetectedVulnerability("reentrancy", nil),
	}, nil
}

func newTestEvaluator(fixedPath string) *evaluator.Evaluator {
	return evaluator.New(evaluator.Config{
		Detectors:    map[string]evaluator.Detector{"static": &fixedDetector{fixedPath: fixedPath}},
		NotSkippable: map[string]bool{"static": true},
	})
}

func writeFakeMutationTool(t *testing.T, dir, name string, responses ...string) string {
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
		t.Fatalf("writing fake mutation tool: %v", err)
	}
	return path
}

func TestRunReturnsImmediatelyWhenOriginalHasNoTargetedVulnerabilities(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "subject.sol")
	if err := os.WriteFile(source, []byte("contract C {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	eval := newTestEvaluator(source) // original IS the fixed path: nothing to repair
	mutator := mutation.New(mutation.Config{BinPath: "/bin/false", MutationTypes: []string{"insert"}})

	cfg := Config{
		SourcePath:         source,
		TargetContractName: "C",
		DetectorOrder:      []string{"static"},
		TargetedNames:      []string{"reentrancy"},
		RepairTarget:       model.RepairTarget{},
		PCrossover:         0,
		InitPopulationSize: 1,
		MaxPopulationSize:  4,
		Seed:               1,
	}
	e := New(cfg, eval, mutator, zerolog.Nop())

	patches, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(patches) != 1 || patches[0].PatchedFile != source {
		t.Fatalf("Run() = %+v, want a single plausible patch for the original file", patches)
	}
	if e.NumEvaluated() != 0 {
		t.Errorf("NumEvaluated() = %d, want 0 for the immediate short-circuit", e.NumEvaluated())
	}
}

func TestRunFindsPlausiblePatchFromSeedIndividual(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "subject.sol")
	if err := os.WriteFile(source, []byte("contract C {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	fixedPath := filepath.Join(dir, "fixed.sol")

	response := `{"Result":"Ok","NewMutationSequences":[[["guard","1"]]],"PatchedFilePaths":["` + fixedPath + `"],"ModifiedLocations":[null]}`
	tool := writeFakeMutationTool(t, dir, "fake-sm.sh", response)

	eval := newTestEvaluator(fixedPath)
	mutator := mutation.New(mutation.Config{BinPath: tool, MutationTypes: []string{"insert"}})

	cfg := Config{
		SourcePath:         source,
		TargetContractName: "C",
		DetectorOrder:      []string{"static"},
		TargetedNames:      []string{"reentrancy"},
		RepairTarget:       model.RepairTarget{},
		PCrossover:         0,
		InitPopulationSize: 1,
		MaxPopulationSize:  4,
		Seed:               1,
	}
	e := New(cfg, eval, mutator, zerolog.Nop())

	patches, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(patches) != 1 || patches[0].PatchedFile != fixedPath {
		t.Fatalf("Run() = %+v, want the seeded individual's patched file", patches)
	}
	if e.NumEvaluated() != 2 {
		t.Errorf("NumEvaluated() = %d, want 2 (the seed individual and the original, both evaluated at generation 0)", e.NumEvaluated())
	}
	if len(e.Archive().Members()) == 0 {
		t.Errorf("Archive() is empty, want the plausible individual recorded")
	}
}

func TestRunResolvesRepairTargetSpecAgainstOriginalCount(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "subject.sol")
	if err := os.WriteFile(source, []byte("contract C {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	fixedPath := filepath.Join(dir, "fixed.sol")

	response := `{"Result":"Ok","NewMutationSequences":[[["guard","1"]]],"PatchedFilePaths":["` + fixedPath + `"],"ModifiedLocations":[null]}`
	tool := writeFakeMutationTool(t, dir, "fake-sm.sh", response)

	detector := &partialDetector{fixedPath: fixedPath}
	eval := evaluator.New(evaluator.Config{
		Detectors:    map[string]evaluator.Detector{"static": detector},
		NotSkippable: map[string]bool{"static": true},
	})
	mutator := mutation.New(mutation.Config{BinPath: tool, MutationTypes: []string{"insert"}})

	cfg := Config{
		SourcePath:         source,
		TargetContractName: "C",
		DetectorOrder:      []string{"static"},
		TargetedNames:      []string{"reentrancy"},
		RepairTargetSpecs:  []model.RepairTargetSpec{{Detector: "static", Repaired: true, Value: 1}},
		PCrossover:         0,
		InitPopulationSize: 1,
		MaxPopulationSize:  4,
		Seed:               1,
	}
	e := New(cfg, eval, mutator, zerolog.Nop())

	patches, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(patches) != 1 || patches[0].PatchedFile != fixedPath {
		t.Fatalf("Run() = %+v, want the partially-repaired individual to satisfy REPAIRED:1 resolved against an original count of 2", patches)
	}
}
