// Package model holds the data types shared by every repair component: source
// locations, fault descriptions, vulnerability records, patches, individuals,
// and their multi-dimensional fitness.
package model

import "fmt"

// Location is a source position: a 1-based line and an optional 0-based
// column. Locations are totally ordered lexicographically by (Line, Column),
// with a Location that omits its column sorting before one that has the same
// Line and a column.
type Location struct {
	Line   int
	Column *int
}

// NewLocation builds a Location with a known column.
func NewLocation(line, column int) Location {
	return Location{Line: line, Column: &column}
}

// NewLineLocation builds a Location with no column information.
func NewLineLocation(line int) Location {
	return Location{Line: line}
}

// Compare returns -1, 0 or 1 following the total lexicographic order over
// (Line, Column), treating a missing column as less than any present column.
func (l Location) Compare(other Location) int {
	if l.Line != other.Line {
		if l.Line < other.Line {
			return -1
		}
		return 1
	}
	switch {
	case l.Column == nil && other.Column == nil:
		return 0
	case l.Column == nil:
		return -1
	case other.Column == nil:
		return 1
	case *l.Column != *other.Column:
		if *l.Column < *other.Column {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Less reports whether l sorts before other.
func (l Location) Less(other Location) bool {
	return l.Compare(other) < 0
}

// LessEq reports whether l sorts before or equal to other.
func (l Location) LessEq(other Location) bool {
	return l.Compare(other) <= 0
}

func (l Location) String() string {
	if l.Column == nil {
		return fmt.Sprintf("%d", l.Line)
	}
	return fmt.Sprintf("%d,%d", l.Line, *l.Column)
}

// CodeRange is a closed interval [Start, End] over Locations, with
// Start <= End.
type CodeRange struct {
	Start Location
	End   Location
}

// NewCodeRange builds a CodeRange, panicking if start sorts after end — the
// invariant every CodeRange must satisfy.
func NewCodeRange(start, end Location) CodeRange {
	if start.Compare(end) > 0 {
		panic(fmt.Sprintf("model: CodeRange start %s after end %s", start, end))
	}
	return CodeRange{Start: start, End: end}
}

// Intersects reports whether the two closed intervals overlap. It is
// symmetric and reflexive, and ranges that only touch at an endpoint
// intersect.
func (c CodeRange) Intersects(other CodeRange) bool {
	return c.Start.LessEq(other.End) && other.Start.LessEq(c.End)
}

func (c CodeRange) String() string {
	return fmt.Sprintf("%s-%s", c.Start, c.End)
}
