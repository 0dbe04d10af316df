package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TargetCondition decides whether one analyzer's detections satisfy a
// repair target, in one of two equivalent shapes: Remaining and
// Repaired; both are represented here as a RemainingCount since Repaired is
// defined purely in terms of it.
type TargetCondition struct {
	// RemainingCount is the maximum number of targeted detections under the
	// associated analyzer that is still acceptable. math.Inf(1) is treated
	// as "anything is acceptable" — never fulfilled-by-default but never
	// blocking either, since no finite count exceeds it.
	RemainingCount float64
}

// Remaining builds a Remaining(n) target condition.
func Remaining(n int) TargetCondition {
	return TargetCondition{RemainingCount: float64(n)}
}

// Repaired builds a Repaired(originalCount, numRepaired) target condition,
// reduced to the equivalent Remaining(originalCount - numRepaired) — or
// Remaining(0) when numRepaired is unbounded.
func Repaired(originalCount int, numRepaired float64) TargetCondition {
	if math.IsInf(numRepaired, 1) {
		return Remaining(0)
	}
	return TargetCondition{RemainingCount: float64(originalCount) - numRepaired}
}

// defaultTarget is the Remaining(0) condition assigned to any
// analyzer not explicitly named in a RepairTarget.
var defaultTarget = Remaining(0)

// IsFulfilled reports whether rst's targeted-detection count satisfies this
// condition.
func (c TargetCondition) IsFulfilled(rst AnalyzerResult, targetedNames []string, targetedRanges []CodeRange) bool {
	return c.RemainingCount >= float64(rst.TargetedCount(targetedNames, targetedRanges))
}

// RepairTarget maps an analyzer name to the TargetCondition it must satisfy
// for a patch to be considered plausible. Analyzers with no explicit entry
// default to Remaining(0), mirroring the Python DefaultDict in `IN.py`.
type RepairTarget map[string]TargetCondition

// Get returns the configured condition for name, or the default
// Remaining(0) when none was set.
func (rt RepairTarget) Get(name string) TargetCondition {
	if c, ok := rt[name]; ok {
		return c
	}
	return defaultTarget
}

// IsFulfilled reports whether every analyzer present in rsts, plus every
// analyzer named explicitly in rt (even one with zero current detections,
// and so absent from rsts), satisfies its (possibly default) target
// condition. The explicit-key pass matters for a negative-RemainingCount
// condition (an over-ambitious Repaired target): without it, a detector
// that dropped to zero detections — exactly the case such a condition is
// meant to reject — would never be checked at all.
func (rt RepairTarget) IsFulfilled(rsts AnalyzerResults, targetedNames []string, targetedRanges []CodeRange) bool {
	checked := make(map[string]bool, len(rsts)+len(rt))
	for detector, vuls := range rsts {
		checked[detector] = true
		if !rt.Get(detector).IsFulfilled(vuls, targetedNames, targetedRanges) {
			return false
		}
	}
	for detector := range rt {
		if checked[detector] {
			continue
		}
		if !rt.Get(detector).IsFulfilled(nil, targetedNames, targetedRanges) {
			return false
		}
	}
	return true
}

// RepairTargetSpec is a parsed, not-yet-resolved `--repair_target` entry.
// REPAIRED specs cannot become a TargetCondition until the original
// individual's targeted-detection count for Detector is known, so parsing
// and resolution are separate steps.
type RepairTargetSpec struct {
	Detector string
	Repaired bool // false => Remaining, true => Repaired
	Value    int  // Remaining's num_remaining, or Repaired's num_repaired
}

// Resolve turns a spec into a concrete TargetCondition given the original
// individual's targeted-detection count for this detector (ignored for
// Remaining specs).
func (s RepairTargetSpec) Resolve(originalTargetedCount int) TargetCondition {
	if s.Repaired {
		return Repaired(originalTargetedCount, float64(s.Value))
	}
	return Remaining(s.Value)
}

// ParseRepairTargetFlag parses one `--repair_target` flag value of the form
// `DETECTOR=REMAINING:N` or `DETECTOR=REPAIRED:N`, the grammar recovered
// from the original CLI's argparse key-value action (`CLI.py`,
// `StoreKeyValuePairAction.py`).
func ParseRepairTargetFlag(flag string) (RepairTargetSpec, error) {
	detector, rest, ok := strings.Cut(flag, "=")
	if !ok {
		return RepairTargetSpec{}, fmt.Errorf("model: --repair_target %q missing '='", flag)
	}

	kind, value, ok := strings.Cut(rest, ":")
	if !ok {
		return RepairTargetSpec{}, fmt.Errorf("model: --repair_target %q missing ':'", flag)
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return RepairTargetSpec{}, fmt.Errorf("model: --repair_target %q has non-integer count: %w", flag, err)
	}

	switch kind {
	case "REMAINING":
		return RepairTargetSpec{Detector: detector, Value: n}, nil
	case "REPAIRED":
		return RepairTargetSpec{Detector: detector, Repaired: true, Value: n}, nil
	default:
		return RepairTargetSpec{}, fmt.Errorf("model: --repair_target %q has unknown kind %q (want REMAINING or REPAIRED)", flag, kind)
	}
}

// PlausiblePatch is the reduced, externally-returned form of a plausible
// Individual: just the path to its patched file.
type PlausiblePatch struct {
	PatchedFile string
}
