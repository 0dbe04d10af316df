// Package analyzer implements the Static Analyzer Adapter:
// it runs a graph-based static analyzer against a candidate source file
// inside a sandboxed container and normalizes its findings into
// model.AnalyzerResult. Grounded on
// `_examples/original_source/Slither.py`'s `Slither.detect`/`__processOutput`.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/repaircore/repaircore/pkg/metrics"
	"github.com/repaircore/repaircore/pkg/model"
	"github.com/repaircore/repaircore/pkg/sandbox"
)

// checkAliases maps a raw detector check name to the canonical
// vulnerability name used throughout the rest of the system. Unlisted
// checks pass through unchanged. Grounded on Slither.py's `titleVulDict`;
// integer over/underflow checks are intentionally left unaliased, since
// modern compiler versions make them unreachable in practice.
var checkAliases = map[string]string{
	"reentrancy-eth":     "reentrancy",
	"reentrancy-no-eth":  "reentrancy",
	"unused-return":      "unchecked_call",
	"unchecked-lowlevel": "unchecked_call",
	"unchecked-send":     "unchecked_call",
}

// Analyzer runs a graph-based static analyzer inside a sandbox and
// normalizes its JSON report.
type Analyzer struct {
	name    string
	image   string
	pool    *sandbox.Pool
	run     func(ctx context.Context, spec sandbox.Spec) (string, error)
	metrics *metrics.Sandbox
}

// New builds an Analyzer identified by name (the key it will be recorded
// under in an AnalyzerResults map) that launches image inside sandboxed
// containers bounded by pool.
func New(name string, runner *sandbox.Runner, pool *sandbox.Pool, image string) *Analyzer {
	return &Analyzer{name: name, image: image, pool: pool, run: runner.Run}
}

// SetMetrics attaches call-duration/outcome instrumentation to every
// subsequent Detect call. Passing nil (the default) disables it.
func (a *Analyzer) SetMetrics(m *metrics.Sandbox) {
	a.metrics = m
}

// Name returns the analyzer's identifying name.
func (a *Analyzer) Name() string { return a.name }

type rawReport struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Results struct {
		Detectors []rawDetector `json:"detectors"`
	} `json:"results"`
}

type rawDetector struct {
	Check    string       `json:"check"`
	Elements []rawElement `json:"elements"`
}

type rawElement struct {
	Type               string        `json:"type"`
	Name               string        `json:"name"`
	SourceMapping      rawSourceMap  `json:"source_mapping"`
	TypeSpecificFields rawTypeFields `json:"type_specific_fields"`
}

type rawTypeFields struct {
	Parent rawParent `json:"parent"`
}

type rawParent struct {
	Name string `json:"name"`
}

type rawSourceMap struct {
	Lines          []int `json:"lines"`
	StartingColumn int   `json:"starting_column"`
	EndingColumn   int   `json:"ending_column"`
}

// Detect runs the analyzer against sourcePath and normalizes its findings
// into the uniform AnalyzerResult shape. The underlying tool always runs
// to completion. When fastFail is true and any finding is targeted under
// (targetedNames, targetedRanges), Detect returns a single FastFail
// sentinel in place of the findings; otherwise it returns every finding.
func (a *Analyzer) Detect(ctx context.Context, sourcePath string, targetedNames []string, targetedRanges []model.CodeRange, fastFail bool) (model.AnalyzerResult, error) {
	if err := a.pool.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("analyzer: waiting for sandbox slot: %w", err)
	}
	defer a.pool.Release()

	start := time.Now()
	output, err := a.run(ctx, sandbox.Spec{
		Image: a.image,
		Cmd:   []string{"/bin/bash", "-c", "slither /tmp/subject.sol --json -"},
		Mounts: []sandbox.Mount{
			{HostPath: sourcePath, ContainerPath: "/tmp/subject.sol"},
		},
	})
	if a.metrics != nil {
		a.metrics.ObserveCall(a.name, start, err)
	}
	if err != nil {
		return nil, fmt.Errorf("analyzer %s: sandbox run failed: %w", a.name, err)
	}

	result, err := a.processOutput(output)
	if err != nil {
		return nil, err
	}

	if !fastFail {
		return result, nil
	}
	for _, v := range result {
		if v.IsTargeted(targetedNames, targetedRanges) {
			return model.AnalyzerResult{model.FastFailVulnerability()}, nil
		}
	}
	return result, nil
}

func (a *Analyzer) processOutput(output string) (model.AnalyzerResult, error) {
	var rst rawReport
	if err := json.Unmarshal([]byte(output), &rst); err != nil {
		return nil, fmt.Errorf("analyzer %s: malformed output: %w", a.name, err)
	}
	if !rst.Success {
		return nil, fmt.Errorf("analyzer %s: tool reported failure: %s", a.name, rst.Error)
	}

	result := make(model.AnalyzerResult, 0, len(rst.Results.Detectors))
	for _, issue := range rst.Results.Detectors {
		faultInfo, err := a.faultLocalizationInfo(issue)
		if err != nil {
			return nil, fmt.Errorf("analyzer %s: %w", a.name, err)
		}
		name := issue.Check
		if alias, ok := checkAliases[name]; ok {
			name = alias
		}
		result = append(result, model.NewDetectedVulnerability(name, faultInfo))
	}
	return result, nil
}

// faultLocalizationInfo reconstructs the FaultElement set for one detector
// finding: a TYPE element per distinct (contract, function) the finding
// touches, plus a LOC element per distinct source range among its "node"
// elements, sorted per Slither.py's `__processOutput`.
func (a *Analyzer) faultLocalizationInfo(issue rawDetector) ([]model.FaultElement, error) {
	var ranges []model.CodeRange
	for _, e := range issue.Elements {
		if e.Type != "node" {
			continue
		}
		cr, err := codeRangeFromSourceMap(e.SourceMapping)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, cr)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start.Less(ranges[j].Start) })
	ranges = dedupeRanges(ranges)

	type funcKey struct{ contract, fn string }
	seen := map[funcKey]bool{}
	var functions []rawElement
	for _, e := range issue.Elements {
		if e.Type != "function" {
			continue
		}
		k := funcKey{e.TypeSpecificFields.Parent.Name, e.Name}
		if seen[k] {
			continue
		}
		seen[k] = true
		functions = append(functions, e)
	}
	sort.Slice(functions, func(i, j int) bool {
		a, b := functions[i], functions[j]
		if a.TypeSpecificFields.Parent.Name != b.TypeSpecificFields.Parent.Name {
			return a.TypeSpecificFields.Parent.Name < b.TypeSpecificFields.Parent.Name
		}
		return a.Name < b.Name
	})

	elements := make([]model.FaultElement, 0, len(functions)+len(ranges))
	for _, fn := range functions {
		el, err := model.NewFaultElementNodeType("Block", fn.TypeSpecificFields.Parent.Name, fn.Name, nil)
		if err != nil {
			continue
		}
		elements = append(elements, el)
	}
	for _, r := range ranges {
		elements = append(elements, model.FaultElementCodeRange{CodeRange: r})
	}
	return elements, nil
}

func codeRangeFromSourceMap(m rawSourceMap) (model.CodeRange, error) {
	if len(m.Lines) == 0 {
		return model.CodeRange{}, fmt.Errorf("source mapping has no lines")
	}
	minLine, maxLine := m.Lines[0], m.Lines[0]
	for _, l := range m.Lines {
		if l < minLine {
			minLine = l
		}
		if l > maxLine {
			maxLine = l
		}
	}
	// Slither reports 1-based lines and 1-based columns; fault ranges use
	// 0-based columns, hence the -1 adjustment on each side.
	start := model.NewLocation(minLine, m.StartingColumn-1)
	end := model.NewLocation(maxLine, m.EndingColumn-1)
	return model.NewCodeRange(start, end), nil
}

func dedupeRanges(ranges []model.CodeRange) []model.CodeRange {
	out := ranges[:0]
	var prev *model.CodeRange
	for _, r := range ranges {
		r := r
		if prev != nil && prev.Start.Compare(r.Start) == 0 && prev.End.Compare(r.End) == 0 {
			continue
		}
		out = append(out, r)
		prev = &r
	}
	return out
}
