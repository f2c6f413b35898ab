package cascade

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/jamesrr39/goutil/errorsx"
)

// Range is a numeric interval over one property. An empty operator marks an unbounded side.
// LeftOp is one of "", ">" or ">="; RightOp is one of "", "<" or "<=".
type Range struct {
	LeftOp    Operator
	LeftEdge  float64
	RightOp   Operator
	RightEdge float64
}

func (r Range) hasLeft() bool {
	return r.LeftOp != ""
}

func (r Range) hasRight() bool {
	return r.RightOp != ""
}

// IsOpen reports whether any value lies inside the range.
func (r Range) IsOpen() bool {
	if !r.hasLeft() || !r.hasRight() {
		return true
	}

	if r.LeftEdge < r.RightEdge {
		return true
	}

	if r.LeftEdge == r.RightEdge {
		return r.LeftOp == OperatorGreaterThanOrEqualTo && r.RightOp == OperatorLessThanOrEqualTo
	}

	return false
}

func (r Range) Contains(value float64) bool {
	if r.hasLeft() && !compareWithOperator(value, r.LeftOp, r.LeftEdge) {
		return false
	}
	if r.hasRight() && !compareWithOperator(value, r.RightOp, r.RightEdge) {
		return false
	}
	return true
}

// Midpoint returns a value strictly inside an open range.
func (r Range) Midpoint() float64 {
	switch {
	case r.hasLeft() && r.hasRight():
		return (r.LeftEdge + r.RightEdge) / 2
	case r.hasLeft():
		return r.LeftEdge + 1
	case r.hasRight():
		return r.RightEdge - 1
	}
	return 0
}

// ToFilter converts the range back into tests on property. A single-point
// range becomes one equality test.
func (r Range) ToFilter(property string) Filter {
	if r.hasLeft() && r.hasRight() && r.LeftEdge == r.RightEdge &&
		r.LeftOp == OperatorGreaterThanOrEqualTo && r.RightOp == OperatorLessThanOrEqualTo {
		return NewFilter(Test{property, OperatorEquals, NumberValue(r.LeftEdge)})
	}

	var tests []Test
	if r.hasLeft() {
		tests = append(tests, Test{property, r.LeftOp, NumberValue(r.LeftEdge)})
	}
	if r.hasRight() {
		tests = append(tests, Test{property, r.RightOp, NumberValue(r.RightEdge)})
	}
	return NewFilter(tests...)
}

func (r Range) String() string {
	left, right := "(-inf", "+inf)"
	if r.hasLeft() {
		bracket := "("
		if r.LeftOp == OperatorGreaterThanOrEqualTo {
			bracket = "["
		}
		left = bracket + strconv.FormatFloat(r.LeftEdge, 'f', -1, 64)
	}
	if r.hasRight() {
		bracket := ")"
		if r.RightOp == OperatorLessThanOrEqualTo {
			bracket = "]"
		}
		right = strconv.FormatFloat(r.RightEdge, 'f', -1, 64) + bracket
	}
	return fmt.Sprintf("%s,%s", left, right)
}

// cut is a point on the number line where a partition boundary lies,
// either immediately before or immediately after edge.
type cut struct {
	edge  float64
	after bool
}

func cutsForTest(test Test, edge float64) []cut {
	switch test.Op {
	case OperatorLessThan, OperatorGreaterThanOrEqualTo:
		return []cut{{edge, false}}
	case OperatorLessThanOrEqualTo, OperatorGreaterThan:
		return []cut{{edge, true}}
	default:
		return []cut{{edge, false}, {edge, true}}
	}
}

// RangesFromTests partitions the number line into disjoint ranges such that
// every test is either wholly true or wholly false inside each range.
// All tests must be numeric.
func RangesFromTests(tests []Test) ([]Range, errorsx.Error) {
	var cuts []cut
	for _, test := range tests {
		number, ok := test.Value.(NumberValue)
		if !ok {
			return nil, errorsx.Wrap(ErrMalformedTest, "test", test.String(), "reason", "ranged property tested against a non-numeric value")
		}
		cuts = append(cuts, cutsForTest(test, float64(number))...)
	}

	if len(cuts) == 0 {
		return []Range{{}}, nil
	}

	sort.Slice(cuts, func(i, j int) bool {
		if cuts[i].edge != cuts[j].edge {
			return cuts[i].edge < cuts[j].edge
		}
		return !cuts[i].after && cuts[j].after
	})

	deduped := cuts[:1]
	for _, c := range cuts[1:] {
		if c != deduped[len(deduped)-1] {
			deduped = append(deduped, c)
		}
	}
	cuts = deduped

	rightSide := func(c cut) (Operator, float64) {
		if c.after {
			return OperatorLessThanOrEqualTo, c.edge
		}
		return OperatorLessThan, c.edge
	}
	leftSide := func(c cut) (Operator, float64) {
		if c.after {
			return OperatorGreaterThan, c.edge
		}
		return OperatorGreaterThanOrEqualTo, c.edge
	}

	var candidates []Range

	first := Range{}
	first.RightOp, first.RightEdge = rightSide(cuts[0])
	candidates = append(candidates, first)

	for i := 0; i < len(cuts)-1; i++ {
		r := Range{}
		r.LeftOp, r.LeftEdge = leftSide(cuts[i])
		r.RightOp, r.RightEdge = rightSide(cuts[i+1])
		candidates = append(candidates, r)
	}

	last := Range{}
	last.LeftOp, last.LeftEdge = leftSide(cuts[len(cuts)-1])
	candidates = append(candidates, last)

	var ranges []Range
	for _, r := range candidates {
		if r.IsOpen() {
			ranges = append(ranges, r)
		}
	}

	return ranges, nil
}
