package model

// Mutation is one opaque mutation token: a tuple of strings whose semantics
// belong entirely to the mutation engine.
type Mutation []string

// MutationSequence is an ordered sequence of Mutations describing how a
// patch was derived from the original source.
type MutationSequence []Mutation

// Clone returns a copy of the outer slice so callers may safely append
// without aliasing the receiver's backing array; the Mutation tokens
// themselves are shared, not copied.
func (m MutationSequence) Clone() MutationSequence {
	out := make(MutationSequence, len(m))
	copy(out, m)
	return out
}

// PatchInfo describes one candidate source file produced by the mutation
// engine: the mutation sequence that produced it, the path to the patched
// file, and, when known, the source ranges it touched.
type PatchInfo struct {
	MutationSeq       MutationSequence
	PatchedFile       string
	ModifiedLocations []CodeRange // nil when unknown
}

// Individual is one member of the MOGA population: a PatchInfo plus the
// fitness and vulnerability set the Evaluator assigned to it. Individuals
// are created by the MOGA Engine, mutated only by the Evaluator (fitness,
// vulnerability) and by selection bookkeeping (Rank, CrowdingDistance), and
// discarded outright when evicted — there are no back-references from a
// PatchInfo to the Individual that owns it, avoiding the cyclic
// fitness/individual/population relation.
type Individual struct {
	PatchInfo

	Fitness       Fitness
	Vulnerability AnalyzerResults

	// Rank and CrowdingDistance are selection bookkeeping populated by
	// NSGA-II style selection; they carry no meaning before the individual
	// has gone through a selection pass.
	Rank             int
	CrowdingDistance float64
}

// NewIndividual builds an unevaluated Individual directly from a PatchInfo.
func NewIndividual(patch PatchInfo) *Individual {
	return &Individual{PatchInfo: patch}
}
