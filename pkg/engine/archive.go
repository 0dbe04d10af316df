package engine

import "github.com/repaircore/repaircore/pkg/model"

// Archive maintains the Pareto front over every individual ever scored:
// an anti-chain under model.Dominates.
type Archive struct {
	members []*model.Individual
}

// NewArchive returns an empty Archive.
func NewArchive() *Archive {
	return &Archive{}
}

// Members returns the archive's current contents. The returned slice must
// not be mutated by the caller.
func (a *Archive) Members() []*model.Individual {
	return a.members
}

// Update folds candidates into the archive: a candidate is kept only if
// no current (or sibling candidate) member dominates it, and any
// existing member it dominates is evicted.
func (a *Archive) Update(candidates []*model.Individual) {
	for _, c := range candidates {
		a.insert(c)
	}
}

func (a *Archive) insert(c *model.Individual) {
	for _, m := range a.members {
		if model.Dominates(m.Fitness, c.Fitness) {
			return
		}
	}

	kept := a.members[:0:0]
	for _, m := range a.members {
		if !model.Dominates(c.Fitness, m.Fitness) {
			kept = append(kept, m)
		}
	}
	a.members = append(kept, c)
}
