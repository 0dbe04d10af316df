package engine

import "github.com/repaircore/repaircore/pkg/model"

// GenerationRecord summarizes one generation's newly-evaluated candidates,
// mirroring the min/max fitness and vulnerability-count columns
// `CR.py`'s DEAP `Logbook`/`MultiStatistics` tracked.
type GenerationRecord struct {
	Generation int
	Operator   string
	Evaluated  int

	MinHard []int
	MaxHard []int

	MinTargetedVulnerabilities int
	MaxTargetedVulnerabilities int
}

// Recorder accumulates GenerationRecords across a repair run.
type Recorder struct {
	Records []GenerationRecord
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record summarizes candidates (the batch newly evaluated this
// generation) and appends the result. An empty batch is skipped, matching
// `CR.py`'s own "don't record for generations without new individuals"
// guard.
func (r *Recorder) Record(generation int, operator string, candidates []*model.Individual, targetedNames []string, targetedRanges []model.CodeRange) {
	if len(candidates) == 0 {
		return
	}

	rec := GenerationRecord{Generation: generation, Operator: operator, Evaluated: len(candidates)}
	rec.MinHard = append([]int{}, candidates[0].Fitness.Hard...)
	rec.MaxHard = append([]int{}, candidates[0].Fitness.Hard...)

	for i, c := range candidates {
		for k, v := range c.Fitness.Hard {
			if v < rec.MinHard[k] {
				rec.MinHard[k] = v
			}
			if v > rec.MaxHard[k] {
				rec.MaxHard[k] = v
			}
		}

		targeted := 0
		for _, result := range c.Vulnerability {
			targeted += result.TargetedCount(targetedNames, targetedRanges)
		}
		if i == 0 || targeted < rec.MinTargetedVulnerabilities {
			rec.MinTargetedVulnerabilities = targeted
		}
		if i == 0 || targeted > rec.MaxTargetedVulnerabilities {
			rec.MaxTargetedVulnerabilities = targeted
		}
	}

	r.Records = append(r.Records, rec)
}
