package mutation

import "github.com/repaircore/repaircore/pkg/model"

// Request is one of the three shapes the mutation engine's child process
// accepts on stdin, one JSON object per line. Grounded on
// `_examples/original_source/CR/SolidityM.py`'s
// `RequestObject_Random`/`RequestObject_Mutate`/`RequestObject_Crossover_OnePoint`
// — field names are wire format and must match the external tool exactly.
type Request interface {
	isRequest()
}

// RandomRequest asks for num_mutations freshly generated patches.
type RandomRequest struct {
	Type         string `json:"type"`
	NumMutations int    `json:"num_mutations"`
}

func NewRandomRequest(numMutations int) RandomRequest {
	return RandomRequest{Type: "random", NumMutations: numMutations}
}

func (RandomRequest) isRequest() {}

// MutateRequest asks for a single-step mutation of an existing sequence,
// optionally narrowed to a different fault-space specifier than the one
// the session was opened with.
type MutateRequest struct {
	Type                          string                 `json:"type"`
	BaseMutationSequence          model.MutationSequence `json:"baseMutationSequence"`
	OverriddenFaultSpaceSpecifier *string                `json:"overridenFaultSpaceSpecifier"`
}

func NewMutateRequest(base model.MutationSequence, overriddenFaultSpaceSpecifier *string) MutateRequest {
	return MutateRequest{Type: "mutate", BaseMutationSequence: base, OverriddenFaultSpaceSpecifier: overriddenFaultSpaceSpecifier}
}

func (MutateRequest) isRequest() {}

// CrossoverOnePointRequest asks for a one-point crossover of two mutation
// sequences at the given cross points.
type CrossoverOnePointRequest struct {
	Type             string                 `json:"type"`
	MutationSequence1 model.MutationSequence `json:"MutationSequence1"`
	CrossPoint1       int                    `json:"CrossPoint1"`
	MutationSequence2 model.MutationSequence `json:"MutationSequence2"`
	CrossPoint2       int                    `json:"CrossPoint2"`
}

func NewCrossoverOnePointRequest(seq1 model.MutationSequence, crossPoint1 int, seq2 model.MutationSequence, crossPoint2 int) CrossoverOnePointRequest {
	return CrossoverOnePointRequest{
		Type:              "crossover-onepoint",
		MutationSequence1: seq1,
		CrossPoint1:       crossPoint1,
		MutationSequence2: seq2,
		CrossPoint2:       crossPoint2,
	}
}

func (CrossoverOnePointRequest) isRequest() {}
