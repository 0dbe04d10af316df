package model

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FaultLocalization is an unordered, deduplicated set of FaultElements. Its
// SpecifierString is the canonical wire format handed back to the mutation
// engine.
type FaultLocalization struct {
	Elements []FaultElement
}

// SpecifierString renders the deduplicated, canonically-sorted, ';'-joined
// specifier string. Sorting is by (variant tag, canonical field string) so
// the result is stable regardless of insertion order, matching
// `Utils.FaultLocalization.toSpecifierStr`'s `sorted(frozenset(...), key=...)`.
func (fl FaultLocalization) SpecifierString() string {
	seen := make(map[string]FaultElement)
	order := make([]string, 0, len(fl.Elements))
	for _, el := range fl.Elements {
		tag, canon := el.sortKey()
		key := tag + "\x00" + canon
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = el
		order = append(order, key)
	}

	sort.Strings(order)

	parts := make([]string, 0, len(order))
	for _, key := range order {
		parts = append(parts, seen[key].SpecifierString())
	}
	return strings.Join(parts, ";")
}

var (
	weightSuffixRE = regexp.MustCompile(`^(.*)\(\((-?\d+)\)\)$`)
	locBodyRE      = regexp.MustCompile(`^(-?\d+)(?:,(-?\d+))?-(-?\d+)(?:,(-?\d+))?$`)
	typeBodyRE     = regexp.MustCompile(`^(?:([^.\-]+)(?:\.([^.\-]+))?-)?(.+)$`)
)

// ParseFaultLocalization parses specifier, the ';'-joined wire format
// SpecifierString produces, back into a FaultLocalization. An empty
// specifier parses to an empty FaultLocalization.
func ParseFaultLocalization(specifier string) (FaultLocalization, error) {
	if specifier == "" {
		return FaultLocalization{}, nil
	}
	tokens := strings.Split(specifier, ";")
	elements := make([]FaultElement, 0, len(tokens))
	for _, tok := range tokens {
		el, err := parseFaultElement(tok)
		if err != nil {
			return FaultLocalization{}, err
		}
		elements = append(elements, el)
	}
	return FaultLocalization{Elements: elements}, nil
}

func parseFaultElement(tok string) (FaultElement, error) {
	body := tok
	var weight *int
	if m := weightSuffixRE.FindStringSubmatch(tok); m != nil {
		body = m[1]
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("model: parsing weight in %q: %w", tok, err)
		}
		weight = &n
	}

	switch {
	case strings.HasPrefix(body, "LOC:"):
		return parseLocBody(strings.TrimPrefix(body, "LOC:"), weight)
	case strings.HasPrefix(body, "TYPE:"):
		return parseTypeBody(strings.TrimPrefix(body, "TYPE:"), weight)
	default:
		return nil, fmt.Errorf("model: unrecognized fault element specifier %q", tok)
	}
}

func parseLocBody(body string, weight *int) (FaultElement, error) {
	m := locBodyRE.FindStringSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("model: malformed LOC specifier %q", body)
	}
	start, err := parseLocationParts(m[1], m[2])
	if err != nil {
		return nil, err
	}
	end, err := parseLocationParts(m[3], m[4])
	if err != nil {
		return nil, err
	}
	return FaultElementCodeRange{CodeRange: NewCodeRange(start, end), Weight: weight}, nil
}

func parseLocationParts(line, column string) (Location, error) {
	l, err := strconv.Atoi(line)
	if err != nil {
		return Location{}, fmt.Errorf("model: parsing line %q: %w", line, err)
	}
	if column == "" {
		return NewLineLocation(l), nil
	}
	c, err := strconv.Atoi(column)
	if err != nil {
		return Location{}, fmt.Errorf("model: parsing column %q: %w", column, err)
	}
	return NewLocation(l, c), nil
}

func parseTypeBody(body string, weight *int) (FaultElement, error) {
	m := typeBodyRE.FindStringSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("model: malformed TYPE specifier %q", body)
	}
	contract, function, nodeType := m[1], m[2], m[3]
	el, err := NewFaultElementNodeType(nodeType, contract, function, weight)
	if err != nil {
		return nil, err
	}
	return el, nil
}
