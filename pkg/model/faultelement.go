package model

import "fmt"

// FaultElement is one item of a FaultLocalization: either a source code
// range or a syntactic node-type specifier, each with an optional integer
// weight.
type FaultElement interface {
	// SpecifierString renders the canonical wire token for this element,
	// e.g. "LOC:12,3-12,9" or "TYPE:Vault.withdraw-Block((2))".
	SpecifierString() string

	// sortKey returns (variantTag, canonicalFields) used to dedupe and sort
	// a FaultLocalization's elements deterministically.
	sortKey() (string, string)
}

// FaultElementCodeRange is a FaultElement anchored to a source code range.
type FaultElementCodeRange struct {
	CodeRange CodeRange
	Weight    *int
}

func (e FaultElementCodeRange) SpecifierString() string {
	return fmt.Sprintf("LOC:%s%s", e.CodeRange, weightSuffix(e.Weight))
}

func (e FaultElementCodeRange) sortKey() (string, string) {
	return "FaultElementCodeRange", e.SpecifierString()
}

// FaultElementNodeType is a FaultElement naming a syntactic node class,
// optionally scoped to a contract and, within it, a function. FunctionName
// must be empty when ContractName is empty.
type FaultElementNodeType struct {
	NodeType     string
	ContractName string
	FunctionName string
	Weight       *int
}

// NewFaultElementNodeType validates the ContractName/FunctionName
// dependency that must hold before constructing the element.
func NewFaultElementNodeType(nodeType, contractName, functionName string, weight *int) (FaultElementNodeType, error) {
	if functionName != "" && contractName == "" {
		return FaultElementNodeType{}, fmt.Errorf("model: functionName %q requires a contractName", functionName)
	}
	return FaultElementNodeType{
		NodeType:     nodeType,
		ContractName: contractName,
		FunctionName: functionName,
		Weight:       weight,
	}, nil
}

func (e FaultElementNodeType) SpecifierString() string {
	var body string
	switch {
	case e.ContractName != "" && e.FunctionName != "":
		body = fmt.Sprintf("%s.%s-%s", e.ContractName, e.FunctionName, e.NodeType)
	case e.ContractName != "":
		body = fmt.Sprintf("%s-%s", e.ContractName, e.NodeType)
	default:
		body = e.NodeType
	}
	return fmt.Sprintf("TYPE:%s%s", body, weightSuffix(e.Weight))
}

func (e FaultElementNodeType) sortKey() (string, string) {
	return "FaultElementNodeType", e.SpecifierString()
}

func weightSuffix(w *int) string {
	if w == nil {
		return ""
	}
	return fmt.Sprintf("((%d))", *w)
}
