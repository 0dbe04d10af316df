package reporting

import "github.com/repaircore/repaircore/pkg/engine"

// ConvertGenerationRecords converts the engine's per-generation statistics
// into the dependency-free shape RunReport stores and the formatter prints.
func ConvertGenerationRecords(records []engine.GenerationRecord) []GenerationSummary {
	out := make([]GenerationSummary, len(records))
	for i, r := range records {
		out[i] = GenerationSummary{
			Generation:                 r.Generation,
			Operator:                   r.Operator,
			Evaluated:                  r.Evaluated,
			MinHard:                    append([]int{}, r.MinHard...),
			MaxHard:                    append([]int{}, r.MaxHard...),
			MinTargetedVulnerabilities: r.MinTargetedVulnerabilities,
			MaxTargetedVulnerabilities: r.MaxTargetedVulnerabilities,
		}
	}
	return out
}
