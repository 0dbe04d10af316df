package model

// VulnerabilityInfo is one reported fact about a candidate source file: a
// named check that either did or did not detect a problem, optionally
// anchored to source locations. It collapses the Python predecessor's
// VulnerabilityInfo/DetectedVulnerability/NonDetectedVulnerability/
// DetectedVulnerability_FastFail class hierarchy (`IN.py`) into one plain
// value type — dominance and targeting become free functions over the
// fields rather than virtual dispatch.
type VulnerabilityInfo struct {
	Name                  string
	Detected              bool
	AdditionalInfo        any
	FaultLocalizationInfo []FaultElement

	// FastFail marks the sentinel produced when a skippable analyzer is
	// cancelled after another skippable analyzer already found a targeted
	// vulnerability. A FastFail vulnerability is always
	// targeted regardless of targetedNames/targetedRanges.
	FastFail bool
}

// NewDetectedVulnerability builds a detected VulnerabilityInfo, optionally
// carrying fault localization info.
func NewDetectedVulnerability(name string, faultInfo []FaultElement) VulnerabilityInfo {
	return VulnerabilityInfo{Name: name, Detected: true, FaultLocalizationInfo: faultInfo}
}

// NewNonDetectedVulnerability builds a non-detected VulnerabilityInfo.
func NewNonDetectedVulnerability(name string) VulnerabilityInfo {
	return VulnerabilityInfo{Name: name, Detected: false}
}

// FastFailVulnerability builds the sentinel used to short-circuit evaluation
// of the remaining skippable analyzers for an individual.
func FastFailVulnerability() VulnerabilityInfo {
	return VulnerabilityInfo{Name: "FastFail", Detected: true, FastFail: true}
}

// IsTargeted reports whether v counts as a targeted vulnerability under
// (targetedNames, targetedRanges).
func (v VulnerabilityInfo) IsTargeted(targetedNames []string, targetedRanges []CodeRange) bool {
	if v.FastFail {
		return true
	}

	var named bool
	if targetedNames != nil {
		named = containsString(targetedNames, v.Name)
	} else {
		named = v.Detected
	}
	if !named {
		return false
	}

	if targetedRanges == nil || v.FaultLocalizationInfo == nil {
		return true
	}

	for _, el := range v.FaultLocalizationInfo {
		occ, ok := el.(FaultElementCodeRange)
		if !ok {
			continue
		}
		for _, target := range targetedRanges {
			if occ.CodeRange.Intersects(target) {
				return true
			}
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// AnalyzerResult is the ordered output of a single analyzer run.
type AnalyzerResult []VulnerabilityInfo

// AnalyzerResults maps an analyzer's name to its result. Key order is
// irrelevant.
type AnalyzerResults map[string]AnalyzerResult

// TargetedCount returns the number of detected vulnerabilities in r that
// are targeted under (targetedNames, targetedRanges). This is the shared
// helper used wherever a targeted count needs computing, mirroring the
// original `targetedVulnerabilityCount`.
func (r AnalyzerResult) TargetedCount(targetedNames []string, targetedRanges []CodeRange) int {
	n := 0
	for _, v := range r {
		if v.Detected && v.IsTargeted(targetedNames, targetedRanges) {
			n++
		}
	}
	return n
}

// AnyTargeted reports whether any vulnerability across all analyzers in rs
// is targeted.
func (rs AnalyzerResults) AnyTargeted(targetedNames []string, targetedRanges []CodeRange) bool {
	for _, r := range rs {
		if r.TargetedCount(targetedNames, targetedRanges) > 0 {
			return true
		}
	}
	return false
}

// WithoutEmpty returns a copy of rs with entries that carry no
// vulnerabilities dropped, matching the Individual.vulnerability invariant
// invariant that an individual's vulnerability map carries no empty
// entries.
func (rs AnalyzerResults) WithoutEmpty() AnalyzerResults {
	out := make(AnalyzerResults, len(rs))
	for k, v := range rs {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}
