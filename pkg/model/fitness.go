package model

// Fitness is the three-tier, lexicographically-compared value the
// Evaluator assigns to every evaluated Individual. All three tiers are
// maximized in the sense that "dominates" below prefers larger hard/soft
// values and smaller gas costs.
type Fitness struct {
	// Hard holds one entry per configured analyzer: the negated count of
	// targeted detected vulnerabilities under that analyzer.
	Hard []int

	// Soft currently holds exactly one entry: the negated length of the
	// individual's mutation sequence.
	Soft []int

	// GasMap maps a key to an integer gas cost. The Evaluator fills it with
	// one entry: the ranked contract's name ("mean" when none is given)
	// mapped to the Gas Ranker's mean cost, rounded to an integer.
	GasMap map[string]int
}

// NewFitness assembles a Fitness from the targeted-detection counts per
// analyzer, the mutation sequence length, and the gas ranker's result — the
// exact construction the Evaluator performs.
func NewFitness(hardCounts []int, mutationSeqLen int, gasMap map[string]int) Fitness {
	hard := make([]int, len(hardCounts))
	for i, c := range hardCounts {
		hard[i] = -c
	}
	return Fitness{
		Hard:   hard,
		Soft:   []int{-mutationSeqLen},
		GasMap: gasMap,
	}
}

// Dominates implements the dominance relation: hard values
// strictly win first; ties fall through to soft values; ties there fall
// through to the gas map.
func Dominates(a, b Fitness) bool {
	switch vectorCompare(a.Hard, b.Hard) {
	case cmpGreater:
		return true
	case cmpEqual:
		// fall through to soft tier
	default:
		return false
	}

	switch vectorCompare(a.Soft, b.Soft) {
	case cmpGreater:
		return true
	case cmpEqual:
		// fall through to gas tier
	default:
		return false
	}

	return gasDominates(a.GasMap, b.GasMap)
}

type vectorCmp int

const (
	cmpIncomparable vectorCmp = iota
	cmpEqual
	cmpGreater
	cmpLess
)

// vectorCompare compares two equal-length integer vectors elementwise.
// cmpGreater means a >= b everywhere with at least one a[i] > b[i];
// cmpLess is the mirror image; cmpEqual means identical; otherwise neither
// vector elementwise-dominates the other (cmpIncomparable), which Dominates
// treats as "neither dominates" without consulting the later tiers.
func vectorCompare(a, b []int) vectorCmp {
	if len(a) != len(b) {
		return cmpIncomparable
	}
	geAll, leAll := true, true
	strictGreater, strictLess := false, false
	for i := range a {
		switch {
		case a[i] > b[i]:
			leAll = false
			strictGreater = true
		case a[i] < b[i]:
			geAll = false
			strictLess = true
		}
	}
	switch {
	case geAll && leAll:
		return cmpEqual
	case geAll && strictGreater:
		return cmpGreater
	case leAll && strictLess:
		return cmpLess
	default:
		return cmpIncomparable
	}
}

// gasDominates reports whether gas map a dominates b: identical key sets,
// a[k] <= b[k] for every key, with at least one strict <. Non-identical key
// sets mean neither gas-dominates the other.
func gasDominates(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	strict := false
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		switch {
		case av > bv:
			return false
		case av < bv:
			strict = true
		}
	}
	return strict
}
