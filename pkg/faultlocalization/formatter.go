// Package faultlocalization implements the Fault Localization Formatter:
// it turns a batch of analyzer results into the textual fault-space
// specifier the mutation engine consumes, grounded on
// `_examples/original_source/CR/IN.py`'s
// `faultLocalizationFromDetectionResults` and `CR/Utils.py`'s
// `FaultLocalization.toSpecifierStr`.
package faultlocalization

import "github.com/repaircore/repaircore/pkg/model"

// Format flattens every faultLocalizationInfo element carried by a
// detected-and-targeted vulnerability across all analyzers in results,
// deduplicates and canonically sorts them, and joins them into the single
// specifier string fed back to the mutation engine. An empty or
// all-untargeted input yields the empty string, which the Mutation Engine
// Client treats as "no specifier".
func Format(results model.AnalyzerResults, targetedNames []string, targetedRanges []model.CodeRange) string {
	var elements []model.FaultElement

	for _, result := range results {
		for _, vul := range result {
			if !vul.Detected || vul.FaultLocalizationInfo == nil {
				continue
			}
			if !vul.IsTargeted(targetedNames, targetedRanges) {
				continue
			}
			elements = append(elements, vul.FaultLocalizationInfo...)
		}
	}

	if len(elements) == 0 {
		return ""
	}

	return model.FaultLocalization{Elements: elements}.SpecifierString()
}

// FromIndividual is a convenience wrapper computing a fault specifier for
// one individual's own vulnerability set — used by the MOGA Engine's mutate
// step to recompute a per-parent fault specifier.
func FromIndividual(vulnerability model.AnalyzerResults, targetedNames []string, targetedRanges []model.CodeRange) *string {
	s := Format(vulnerability, targetedNames, targetedRanges)
	if s == "" {
		return nil
	}
	return &s
}
