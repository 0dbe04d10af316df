package evaluator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/repaircore/repaircore/pkg/model"
)

type fakeDetector struct {
	result   model.AnalyzerResult
	delay    time.Duration
	canceled *int32
}

func (f *fakeDetector) Detect(ctx context.Context, sourcePath, targetContractName string, targetedVul []string, targetedLoc []model.CodeRange, fastFail bool) (model.AnalyzerResult, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		if f.canceled != nil {
			atomic.AddInt32(f.canceled, 1)
		}
		return nil, ctx.Err()
	}
	return f.result, nil
}

type fakeGasRanker struct {
	mean float64
}

func (f *fakeGasRanker) RankGas(ctx context.Context, sourcePath, contractName string) (float64, error) {
	return f.mean, nil
}

func TestDetectPatchMergesNonSkippableAndSkippable(t *testing.T) {
	e := New(Config{
		Detectors: map[string]Detector{
			"static":  &fakeDetector{result: model.AnalyzerResult{model.NewNonDetectedVulnerability("reentrancy")}},
			"dynamic": &fakeDetector{result: model.AnalyzerResult{model.NewNonDetectedVulnerability("reentrancy")}},
		},
		NotSkippable: map[string]bool{"dynamic": true},
	})

	results, err := e.DetectPatch(context.Background(), model.PatchInfo{PatchedFile: "/tmp/patch.sol"}, "C", nil, nil, false)
	if err != nil {
		t.Fatalf("DetectPatch() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("DetectPatch() returned %d analyzer entries, want 2", len(results))
	}
}

func TestDetectPatchFastFailCancelsSiblingsAndCollapsesToSentinel(t *testing.T) {
	canceled := int32(0)
	e := New(Config{
		Detectors: map[string]Detector{
			"fast-hit": &fakeDetector{result: model.AnalyzerResult{model.NewDetectedVulnerability("reentrancy", nil)}},
			"slow":     &fakeDetector{result: model.AnalyzerResult{model.NewNonDetectedVulnerability("reentrancy")}, delay: 200 * time.Millisecond, canceled: &canceled},
			"dynamic":  &fakeDetector{result: model.AnalyzerResult{model.NewNonDetectedVulnerability("unchecked_call")}},
		},
		NotSkippable: map[string]bool{"dynamic": true},
	})

	results, err := e.DetectPatch(context.Background(), model.PatchInfo{PatchedFile: "/tmp/patch.sol"}, "C", nil, nil, true)
	if err != nil {
		t.Fatalf("DetectPatch() error = %v", err)
	}

	if _, ok := results["fastfail"]; !ok {
		t.Fatalf("DetectPatch() results = %+v, want a fastfail sentinel entry", results)
	}
	if _, ok := results["fast-hit"]; ok {
		t.Errorf("DetectPatch() kept the skippable detector's own entry, want it collapsed into the sentinel")
	}
	if _, ok := results["slow"]; ok {
		t.Errorf("DetectPatch() kept the cancelled sibling's entry, want it discarded")
	}
	if _, ok := results["dynamic"]; !ok {
		t.Errorf("DetectPatch() dropped the non-skippable detector's result, want it preserved")
	}
}

func TestDetectPatchPropagatesDetectorError(t *testing.T) {
	e := New(Config{
		Detectors: map[string]Detector{
			"broken": &erroringDetector{},
		},
		NotSkippable: map[string]bool{"broken": true},
	})

	if _, err := e.DetectPatch(context.Background(), model.PatchInfo{PatchedFile: "/tmp/patch.sol"}, "C", nil, nil, false); err == nil {
		t.Fatal("DetectPatch() error = nil, want propagated detector error")
	}
}

type erroringDetector struct{}

func (erroringDetector) Detect(ctx context.Context, sourcePath, targetContractName string, targetedVul []string, targetedLoc []model.CodeRange, fastFail bool) (model.AnalyzerResult, error) {
	return nil, errors.New("boom")
}

func TestCalculateFitnessAssemblesHardValuesAndGas(t *testing.T) {
	e := New(Config{
		Detectors: map[string]Detector{
			"static": &fakeDetector{result: model.AnalyzerResult{
				model.NewDetectedVulnerability("reentrancy", nil),
				model.NewNonDetectedVulnerability("unchecked_call"),
			}},
		},
		GasRanker: &fakeGasRanker{mean: 41000},
	})

	patch := model.PatchInfo{PatchedFile: "/tmp/patch.sol", MutationSeq: model.MutationSequence{{"insert", "1"}}}
	fitness, vulnerability, err := e.CalculateFitness(context.Background(), patch, "C", []string{"static", "absent"}, nil, nil)
	if err != nil {
		t.Fatalf("CalculateFitness() error = %v", err)
	}

	if got, want := fitness.Hard, []int{-1, 0}; !equalInts(got, want) {
		t.Errorf("Hard = %v, want %v", got, want)
	}
	if got, want := fitness.Soft, []int{-1}; !equalInts(got, want) {
		t.Errorf("Soft = %v, want %v", got, want)
	}
	if fitness.GasMap["C"] != 41000 {
		t.Errorf("GasMap[%q] = %d, want 41000", "C", fitness.GasMap["C"])
	}
	if len(vulnerability["static"]) != 2 {
		t.Errorf("vulnerability[%q] has %d entries, want both the detected and non-detected entry preserved (WithoutEmpty only drops empty-slice keys)", "static", len(vulnerability["static"]))
	}
	if _, ok := vulnerability["absent"]; ok {
		t.Errorf("vulnerability retained a key with no detector results, want it dropped by WithoutEmpty")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
