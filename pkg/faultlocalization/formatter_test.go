package faultlocalization

import (
	"testing"

	"github.com/repaircore/repaircore/pkg/model"
)

func TestFormatEmptyInput(t *testing.T) {
	if got := Format(model.AnalyzerResults{}, nil, nil); got != "" {
		t.Errorf("Format of empty results = %q, want empty string", got)
	}
}

func TestFormatFlattensDedupesAndSorts(t *testing.T) {
	rangeA := model.FaultElementCodeRange{CodeRange: model.NewCodeRange(model.NewLocation(4, 0), model.NewLocation(4, 3))}
	nodeType := model.FaultElementNodeType{NodeType: "reentrancy"}

	results := model.AnalyzerResults{
		"slither-like": model.AnalyzerResult{
			model.NewDetectedVulnerability("reentrancy", []model.FaultElement{rangeA, nodeType}),
		},
		"second-pass": model.AnalyzerResult{
			// duplicate fault element from a second analyzer must be deduped
			model.NewDetectedVulnerability("reentrancy", []model.FaultElement{rangeA}),
			// non-detected vulnerabilities never contribute fault info
			model.NewNonDetectedVulnerability("unchecked_call"),
		},
	}

	got := Format(results, nil, nil)
	want := "LOC:4,0-4,3;TYPE:reentrancy"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormatRespectsTargeting(t *testing.T) {
	el := model.FaultElementNodeType{NodeType: "reentrancy"}
	results := model.AnalyzerResults{
		"a": model.AnalyzerResult{
			model.NewDetectedVulnerability("reentrancy", []model.FaultElement{el}),
			model.NewDetectedVulnerability("unchecked_call", []model.FaultElement{el}),
		},
	}

	got := Format(results, []string{"reentrancy"}, nil)
	want := "TYPE:reentrancy"
	if got != want {
		t.Errorf("Format() with targetedNames = %q, want %q", got, want)
	}
}

func TestFromIndividualNilWhenEmpty(t *testing.T) {
	if spec := FromIndividual(model.AnalyzerResults{}, nil, nil); spec != nil {
		t.Errorf("FromIndividual() = %v, want nil", spec)
	}
}
