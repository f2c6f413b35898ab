package cascade

import (
	"sort"
	"strings"
)

// AttributeLookup returns the raw value of a feature attribute and whether it is set.
type AttributeLookup func(property string) (string, bool)

// Filter is an immutable conjunction of tests, kept in a canonical order.
type Filter struct {
	tests []Test
}

func NewFilter(tests ...Test) Filter {
	sorted := make([]Test, len(tests))
	for i, test := range tests {
		sorted[i] = test.normalized()
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return compareTests(sorted[i], sorted[j]) < 0
	})

	var deduped []Test
	for _, test := range sorted {
		if len(deduped) > 0 && testsEqual(deduped[len(deduped)-1], test) {
			continue
		}
		deduped = append(deduped, test)
	}

	return Filter{deduped}
}

func (f Filter) Tests() []Test {
	tests := make([]Test, len(f.tests))
	copy(tests, f.tests)
	return tests
}

func (f Filter) Len() int {
	return len(f.tests)
}

// With returns a new filter holding the receiver's tests and the given ones.
func (f Filter) With(tests ...Test) Filter {
	combined := make([]Test, 0, len(f.tests)+len(tests))
	combined = append(combined, f.tests...)
	combined = append(combined, tests...)
	return NewFilter(combined...)
}

type propertyConstraints struct {
	equals    []Value
	notEquals []Value

	hasLower       bool
	lower          float64
	lowerInclusive bool

	hasUpper       bool
	upper          float64
	upperInclusive bool

	nonNumericBound bool
}

func (pc *propertyConstraints) add(test Test) {
	switch test.Op {
	case OperatorEquals:
		pc.equals = append(pc.equals, test.Value)
		return
	case OperatorNotEquals:
		pc.notEquals = append(pc.notEquals, test.Value)
		return
	}

	number, ok := test.Value.(NumberValue)
	if !ok {
		pc.nonNumericBound = true
		return
	}

	edge := float64(number)
	switch test.Op {
	case OperatorGreaterThan, OperatorGreaterThanOrEqualTo:
		inclusive := test.Op == OperatorGreaterThanOrEqualTo
		if !pc.hasLower || edge > pc.lower || (edge == pc.lower && !inclusive) {
			pc.hasLower, pc.lower, pc.lowerInclusive = true, edge, inclusive
		}
	case OperatorLessThan, OperatorLessThanOrEqualTo:
		inclusive := test.Op == OperatorLessThanOrEqualTo
		if !pc.hasUpper || edge < pc.upper || (edge == pc.upper && !inclusive) {
			pc.hasUpper, pc.upper, pc.upperInclusive = true, edge, inclusive
		}
	}
}

func (pc *propertyConstraints) excluded(value Value) bool {
	for _, ne := range pc.notEquals {
		if ValuesEqual(ne, value) {
			return true
		}
	}
	return false
}

func (pc *propertyConstraints) inBounds(value Value) bool {
	if !pc.hasLower && !pc.hasUpper {
		return true
	}

	number, ok := value.(NumberValue)
	if !ok {
		return false
	}

	n := float64(number)
	if pc.hasLower && (n < pc.lower || (n == pc.lower && !pc.lowerInclusive)) {
		return false
	}
	if pc.hasUpper && (n > pc.upper || (n == pc.upper && !pc.upperInclusive)) {
		return false
	}
	return true
}

func (pc *propertyConstraints) satisfiable() bool {
	if pc.nonNumericBound {
		return false
	}

	if len(pc.equals) > 0 {
		value := pc.equals[0]
		for _, other := range pc.equals[1:] {
			if !ValuesEqual(value, other) {
				return false
			}
		}
		return !pc.excluded(value) && pc.inBounds(value)
	}

	if pc.hasLower && pc.hasUpper {
		if pc.lower > pc.upper {
			return false
		}
		if pc.lower == pc.upper {
			if !pc.lowerInclusive || !pc.upperInclusive {
				return false
			}
			return !pc.excluded(NumberValue(pc.lower))
		}
	}

	return true
}

// IsOpen reports whether some assignment of attribute values satisfies every test.
func (f Filter) IsOpen() bool {
	byProperty := make(map[string]*propertyConstraints)
	for _, test := range f.tests {
		pc, ok := byProperty[test.Property]
		if !ok {
			pc = new(propertyConstraints)
			byProperty[test.Property] = pc
		}
		pc.add(test)
	}

	for _, pc := range byProperty {
		if !pc.satisfiable() {
			return false
		}
	}

	return true
}

// MinusExtras drops [p!=B] tests made redundant by a [p=A] test in the same filter.
func (f Filter) MinusExtras() Filter {
	equalities := make(map[string]Value)
	for _, test := range f.tests {
		if test.Op == OperatorEquals {
			equalities[test.Property] = test.Value
		}
	}

	var kept []Test
	for _, test := range f.tests {
		if test.Op == OperatorNotEquals {
			eq, ok := equalities[test.Property]
			if ok && !ValuesEqual(eq, test.Value) {
				continue
			}
		}
		kept = append(kept, test)
	}

	return Filter{kept}
}

// Compare gives filters a total order for deterministic output.
func (f Filter) Compare(other Filter) int {
	for i := 0; i < len(f.tests) && i < len(other.tests); i++ {
		c := compareTests(f.tests[i], other.tests[i])
		if c != 0 {
			return c
		}
	}

	switch {
	case len(f.tests) < len(other.tests):
		return -1
	case len(f.tests) > len(other.tests):
		return 1
	}
	return 0
}

func (f Filter) Equal(other Filter) bool {
	return f.Compare(other) == 0
}

func (f Filter) String() string {
	var sb strings.Builder
	for _, test := range f.tests {
		sb.WriteString(test.String())
	}
	return sb.String()
}

// Matches evaluates every test against the attributes returned by lookup.
func (f Filter) Matches(lookup AttributeLookup) bool {
	for _, test := range f.tests {
		raw, present := lookup(test.Property)
		if !test.Matches(raw, present) {
			return false
		}
	}
	return true
}

func filterWithout(f Filter, property string) Filter {
	var kept []Test
	for _, test := range f.tests {
		if test.Property != property {
			kept = append(kept, test)
		}
	}
	return Filter{kept}
}
