package cascade

import (
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
)

// Specificity is (ids, non-id names, tests), compared lexicographically.
type Specificity [3]int

func (s Specificity) Compare(other Specificity) int {
	for i := range s {
		if s[i] != other[i] {
			if s[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (s Specificity) Less(other Specificity) bool {
	return s.Compare(other) < 0
}

// SortKey orders declarations in the cascade. Declarations with a higher key win.
type SortKey struct {
	Importance     int
	Specificity    Specificity
	SourcePosition int
}

func (k SortKey) Compare(other SortKey) int {
	switch {
	case k.Importance < other.Importance:
		return -1
	case k.Importance > other.Importance:
		return 1
	}

	c := k.Specificity.Compare(other.Specificity)
	if c != 0 {
		return c
	}

	switch {
	case k.SourcePosition < other.SourcePosition:
		return -1
	case k.SourcePosition > other.SourcePosition:
		return 1
	}
	return 0
}

type Declaration struct {
	Selector Selector
	Property string
	Value    Value
	SortKey  SortKey
	// Line is the stylesheet line the declaration came from, for error messages. Zero if unknown.
	Line int
}

// NewDeclaration builds a declaration with its sort key derived from the selector.
func NewDeclaration(selector Selector, property string, value Value, important bool, sourcePosition int) Declaration {
	importance := 0
	if important {
		importance = 1
	}

	return Declaration{
		Selector: selector,
		Property: property,
		Value:    value,
		SortKey:  SortKey{importance, selector.Specificity(), sourcePosition},
	}
}

// SortDeclarations sorts declarations into cascade order. Equal keys keep their relative order.
func SortDeclarations(declarations []Declaration) {
	sort.SliceStable(declarations, func(i, j int) bool {
		return declarations[i].SortKey.Compare(declarations[j].SortKey) < 0
	})
}

// CheckSorted rejects declaration lists that are not in ascending cascade order,
// or whose sort keys disagree with their selectors.
func CheckSorted(declarations []Declaration) errorsx.Error {
	for i, declaration := range declarations {
		if declaration.SortKey.Specificity != declaration.Selector.Specificity() {
			return errorsx.Wrap(
				ErrUnsortedDeclarations,
				"index", i,
				"line", declaration.Line,
				"selector", declaration.Selector.String(),
				"reason", "sort key specificity does not match selector",
			)
		}

		if i > 0 && declarations[i-1].SortKey.Compare(declaration.SortKey) > 0 {
			return errorsx.Wrap(
				ErrUnsortedDeclarations,
				"index", i,
				"line", declaration.Line,
				"selector", declaration.Selector.String(),
			)
		}
	}

	return nil
}
