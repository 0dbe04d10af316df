package model

import "testing"

func TestCodeRangeIntersects(t *testing.T) {
	a := NewCodeRange(NewLocation(1, 0), NewLocation(5, 0))
	b := NewCodeRange(NewLocation(5, 0), NewLocation(9, 0))
	c := NewCodeRange(NewLocation(6, 0), NewLocation(9, 0))

	if !a.Intersects(a) {
		t.Error("CodeRange must intersect itself")
	}
	if !a.Intersects(b) || !b.Intersects(a) {
		t.Error("touching-at-endpoint ranges must intersect, symmetrically")
	}
	if a.Intersects(c) || c.Intersects(a) {
		t.Error("disjoint ranges must not intersect")
	}
}

func TestFaultLocalizationSpecifierStringDedupAndSort(t *testing.T) {
	w2 := 2
	loc := FaultLocalization{Elements: []FaultElement{
		FaultElementNodeType{NodeType: "Block", ContractName: "Vault", FunctionName: "withdraw", Weight: &w2},
		FaultElementCodeRange{CodeRange: NewCodeRange(NewLocation(3, 1), NewLocation(3, 9))},
		FaultElementCodeRange{CodeRange: NewCodeRange(NewLocation(3, 1), NewLocation(3, 9))},
	}}

	got := loc.SpecifierString()
	want := "LOC:3,1-3,9;TYPE:Vault.withdraw-Block((2))"
	if got != want {
		t.Errorf("SpecifierString() = %q, want %q", got, want)
	}
}

func TestFaultLocalizationSpecifierStringIdempotent(t *testing.T) {
	loc := FaultLocalization{Elements: []FaultElement{
		FaultElementNodeType{NodeType: "reentrancy"},
		FaultElementCodeRange{CodeRange: NewCodeRange(NewLocation(1, 0), NewLocation(2, 0))},
	}}

	first := loc.SpecifierString()
	second := FaultLocalization{Elements: loc.Elements}.SpecifierString()
	if first != second {
		t.Errorf("SpecifierString is not idempotent: %q != %q", first, second)
	}
}

func TestFaultLocalizationSpecifierStringRoundTrip(t *testing.T) {
	w2 := 2
	original := FaultLocalization{Elements: []FaultElement{
		FaultElementNodeType{NodeType: "Block", ContractName: "Vault", FunctionName: "withdraw", Weight: &w2},
		FaultElementNodeType{NodeType: "Block", ContractName: "Vault"},
		FaultElementNodeType{NodeType: "reentrancy"},
		FaultElementCodeRange{CodeRange: NewCodeRange(NewLocation(3, 1), NewLocation(3, 9))},
		FaultElementCodeRange{CodeRange: NewCodeRange(NewLineLocation(1), NewLineLocation(2))},
	}}

	specifier := original.SpecifierString()

	parsed, err := ParseFaultLocalization(specifier)
	if err != nil {
		t.Fatalf("ParseFaultLocalization(%q) error = %v", specifier, err)
	}

	reserialized := parsed.SpecifierString()
	if reserialized != specifier {
		t.Errorf("round trip = %q, want %q", reserialized, specifier)
	}
}

func TestParseFaultLocalizationEmptySpecifier(t *testing.T) {
	parsed, err := ParseFaultLocalization("")
	if err != nil {
		t.Fatalf("ParseFaultLocalization(\"\") error = %v", err)
	}
	if len(parsed.Elements) != 0 {
		t.Errorf("ParseFaultLocalization(\"\") = %+v, want no elements", parsed.Elements)
	}
}

func TestParseFaultLocalizationRejectsMalformedToken(t *testing.T) {
	if _, err := ParseFaultLocalization("BOGUS:nope"); err == nil {
		t.Fatal("ParseFaultLocalization() error = nil, want non-nil for an unrecognized specifier tag")
	}
}

func TestVulnerabilityInfoIsTargeted(t *testing.T) {
	detected := NewDetectedVulnerability("reentrancy", nil)
	if !detected.IsTargeted(nil, nil) {
		t.Error("a detected vulnerability with no targeting constraints should be targeted")
	}

	nonDetected := NewNonDetectedVulnerability("reentrancy")
	if nonDetected.IsTargeted(nil, nil) {
		t.Error("a non-detected vulnerability should not be targeted when targetedNames is unset")
	}
	if !nonDetected.IsTargeted([]string{"reentrancy"}, nil) {
		t.Error("targetedNames membership should override detected=false")
	}

	if !FastFailVulnerability().IsTargeted([]string{"unrelated"}, nil) {
		t.Error("FastFail must always be targeted")
	}
}

func TestVulnerabilityInfoIsTargetedRangesVacuousWithoutFaultInfo(t *testing.T) {
	v := NewDetectedVulnerability("reentrancy", nil)
	ranges := []CodeRange{NewCodeRange(NewLocation(10, 0), NewLocation(12, 0))}
	if !v.IsTargeted(nil, ranges) {
		t.Error("missing fault info must vacuously satisfy the targetedRanges clause")
	}
}

func TestVulnerabilityInfoIsTargetedRangesIntersection(t *testing.T) {
	inRange := FaultElementCodeRange{CodeRange: NewCodeRange(NewLocation(11, 0), NewLocation(11, 5))}
	v := NewDetectedVulnerability("reentrancy", []FaultElement{inRange})

	hit := []CodeRange{NewCodeRange(NewLocation(10, 0), NewLocation(12, 0))}
	if !v.IsTargeted(nil, hit) {
		t.Error("overlapping fault location should be targeted")
	}

	miss := []CodeRange{NewCodeRange(NewLocation(100, 0), NewLocation(101, 0))}
	if v.IsTargeted(nil, miss) {
		t.Error("non-overlapping fault location should not be targeted")
	}
}

func TestDominatesHardTier(t *testing.T) {
	a := Fitness{Hard: []int{-1, 0}, Soft: []int{-3}}
	b := Fitness{Hard: []int{-2, 0}, Soft: []int{-1}}

	if !Dominates(a, b) {
		t.Error("fewer targeted vulnerabilities under one analyzer should dominate regardless of soft tier")
	}
	if Dominates(b, a) {
		t.Error("dominance must not be symmetric here")
	}
}

func TestDominatesFallsThroughToGasTier(t *testing.T) {
	a := Fitness{Hard: []int{0}, Soft: []int{-2}, GasMap: map[string]int{"p0": 100, "p1": 50}}
	b := Fitness{Hard: []int{0}, Soft: []int{-2}, GasMap: map[string]int{"p0": 100, "p1": 80}}

	if !Dominates(a, b) {
		t.Error("equal hard/soft tiers should fall through to gas map comparison")
	}
}

func TestGasDominatesRequiresIdenticalKeySets(t *testing.T) {
	a := Fitness{Hard: []int{0}, Soft: []int{0}, GasMap: map[string]int{"p0": 10}}
	b := Fitness{Hard: []int{0}, Soft: []int{0}, GasMap: map[string]int{"p1": 20}}

	if Dominates(a, b) || Dominates(b, a) {
		t.Error("disjoint gas map key sets must be incomparable")
	}
}

func TestRepairTargetDefaultsToRemainingZero(t *testing.T) {
	rt := RepairTarget{}
	result := AnalyzerResult{NewDetectedVulnerability("reentrancy", nil)}
	if rt.Get("unlisted-analyzer").IsFulfilled(result, nil, nil) {
		t.Error("an analyzer with one targeted detection should not satisfy the default Remaining(0)")
	}
}

func TestIsFulfilledChecksExplicitTargetsAbsentFromResults(t *testing.T) {
	// An over-ambitious Repaired target resolves to a negative RemainingCount.
	// The analyzer it names has since dropped to zero detections, so it is
	// absent from rsts entirely — it must still be evaluated and fail.
	rt := RepairTarget{"reentrancy": Repaired(2, 5)}

	if rt.IsFulfilled(AnalyzerResults{}, nil, nil) {
		t.Error("a negative-RemainingCount target absent from rsts must not be silently skipped")
	}

	rt = RepairTarget{"unchecked_call": Remaining(0)}
	if !rt.IsFulfilled(AnalyzerResults{}, nil, nil) {
		t.Error("a Remaining(0) target with zero detections should be fulfilled")
	}
}

func TestParseRepairTargetFlag(t *testing.T) {
	spec, err := ParseRepairTargetFlag("reentrancy=REMAINING:2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Detector != "reentrancy" || spec.Repaired || spec.Value != 2 {
		t.Errorf("got %+v, want Detector=reentrancy Repaired=false Value=2", spec)
	}

	cond := spec.Resolve(0)
	if cond.RemainingCount != 2 {
		t.Errorf("Remaining spec should resolve to RemainingCount=2, got %v", cond.RemainingCount)
	}

	repairedSpec, err := ParseRepairTargetFlag("reentrancy=REPAIRED:3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolved := repairedSpec.Resolve(5)
	if resolved.RemainingCount != 2 {
		t.Errorf("Repaired(original=5, repaired=3) should resolve to RemainingCount=2, got %v", resolved.RemainingCount)
	}

	if _, err := ParseRepairTargetFlag("malformed"); err == nil {
		t.Error("expected an error for a flag with no '='")
	}
}
