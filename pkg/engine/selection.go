// Package engine implements the MOGA Engine: the generational loop
// driving fault localization, mutation/crossover, and evaluation toward a
// set of plausible patches. Grounded on
// `_examples/original_source/CR/CR.py`'s `repair` generation loop and its
// DEAP-based NSGA-II selection, reimplemented here without a framework
// dependency since no Go equivalent of DEAP exists in the example corpus.
package engine

import (
	"math"
	"sort"

	"github.com/repaircore/repaircore/pkg/model"
)

var posInf = math.Inf(1)

// fastNonDominatedSort partitions population into dominance fronts (front
// 0 is non-dominated by anything in population) and writes each
// individual's front index into its Rank field.
func fastNonDominatedSort(population []*model.Individual) [][]*model.Individual {
	n := len(population)
	dominatedBy := make([][]int, n)
	dominationCount := make([]int, n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if model.Dominates(population[i].Fitness, population[j].Fitness) {
				dominatedBy[i] = append(dominatedBy[i], j)
			} else if model.Dominates(population[j].Fitness, population[i].Fitness) {
				dominationCount[i]++
			}
		}
	}

	var fronts [][]*model.Individual
	var currentFrontIdx []int
	for i := 0; i < n; i++ {
		if dominationCount[i] == 0 {
			currentFrontIdx = append(currentFrontIdx, i)
		}
	}

	rank := 0
	for len(currentFrontIdx) > 0 {
		var front []*model.Individual
		var nextFrontIdx []int
		for _, i := range currentFrontIdx {
			population[i].Rank = rank
			front = append(front, population[i])
			for _, j := range dominatedBy[i] {
				dominationCount[j]--
				if dominationCount[j] == 0 {
					nextFrontIdx = append(nextFrontIdx, j)
				}
			}
		}
		fronts = append(fronts, front)
		currentFrontIdx = nextFrontIdx
		rank++
	}
	return fronts
}

// assignCrowdingDistance sets CrowdingDistance on every individual in
// front, computed over the concatenation of Hard and Soft fitness values
// (the gas map is excluded: it is not a fixed-dimension numeric vector
// and the dominance relation already treats it as a last-resort
// tiebreaker, not a primary selection axis).
func assignCrowdingDistance(front []*model.Individual) {
	n := len(front)
	if n == 0 {
		return
	}
	for _, ind := range front {
		ind.CrowdingDistance = 0
	}
	if n <= 2 {
		for _, ind := range front {
			ind.CrowdingDistance = posInf
		}
		return
	}

	numObjectives := len(front[0].Fitness.Hard) + len(front[0].Fitness.Soft)
	for o := 0; o < numObjectives; o++ {
		value := func(ind *model.Individual) int {
			if o < len(ind.Fitness.Hard) {
				return ind.Fitness.Hard[o]
			}
			return ind.Fitness.Soft[o-len(ind.Fitness.Hard)]
		}

		sorted := append([]*model.Individual{}, front...)
		sort.Slice(sorted, func(i, j int) bool { return value(sorted[i]) < value(sorted[j]) })

		lo, hi := value(sorted[0]), value(sorted[n-1])
		if hi == lo {
			// Every individual shares this objective's value: it
			// contributes nothing to crowding, and must not mark
			// arbitrary individuals as boundary-infinite.
			continue
		}

		sorted[0].CrowdingDistance = posInf
		sorted[n-1].CrowdingDistance = posInf
		for k := 1; k < n-1; k++ {
			if sorted[k].CrowdingDistance == posInf {
				continue
			}
			spread := float64(value(sorted[k+1])-value(sorted[k-1])) / float64(hi-lo)
			sorted[k].CrowdingDistance += spread
		}
	}
}

// selectNSGA2 reduces population to at most targetSize individuals,
// preferring lower-rank fronts and, within the last included front,
// higher crowding distance (NSGA-II's environmental selection).
func selectNSGA2(population []*model.Individual, targetSize int) []*model.Individual {
	if len(population) <= targetSize {
		fronts := fastNonDominatedSort(population)
		for _, f := range fronts {
			assignCrowdingDistance(f)
		}
		return population
	}

	fronts := fastNonDominatedSort(population)
	for _, f := range fronts {
		assignCrowdingDistance(f)
	}

	selected := make([]*model.Individual, 0, targetSize)
	for _, front := range fronts {
		if len(selected)+len(front) <= targetSize {
			selected = append(selected, front...)
			continue
		}
		remaining := targetSize - len(selected)
		sort.Slice(front, func(i, j int) bool { return front[i].CrowdingDistance > front[j].CrowdingDistance })
		selected = append(selected, front[:remaining]...)
		break
	}
	return selected
}

// selectBest returns the n individuals from population ranked best by
// (Rank ascending, CrowdingDistance descending) — the parent selection
// used by both the mutate and crossover steps. Assumes Rank/
// CrowdingDistance are already populated by a prior selectNSGA2 call.
func selectBest(population []*model.Individual, n int) []*model.Individual {
	sorted := append([]*model.Individual{}, population...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].CrowdingDistance > sorted[j].CrowdingDistance
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
