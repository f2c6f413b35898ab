package cascade

import (
	"fmt"
	"strconv"

	"github.com/jamesrr39/goutil/errorsx"
)

type Operator string

const (
	OperatorLessThan             Operator = "<"
	OperatorLessThanOrEqualTo    Operator = "<="
	OperatorEquals               Operator = "="
	OperatorNotEquals            Operator = "!="
	OperatorGreaterThanOrEqualTo Operator = ">="
	OperatorGreaterThan          Operator = ">"
)

func ParseOperator(s string) (Operator, errorsx.Error) {
	op := Operator(s)
	switch op {
	case OperatorLessThan, OperatorLessThanOrEqualTo, OperatorEquals,
		OperatorNotEquals, OperatorGreaterThanOrEqualTo, OperatorGreaterThan:
		return op, nil
	}

	return "", errorsx.Wrap(ErrMalformedTest, "operator", s)
}

func (op Operator) IsRanged() bool {
	switch op {
	case OperatorLessThan, OperatorLessThanOrEqualTo, OperatorGreaterThanOrEqualTo, OperatorGreaterThan:
		return true
	}
	return false
}

// Test is a single predicate over one attribute, e.g. [highway=primary] or [zoom>10].
type Test struct {
	Property string
	Op       Operator
	Value    Value
}

func NewTest(property string, op Operator, value Value) (Test, errorsx.Error) {
	test := Test{property, op, value}.normalized()
	err := test.Validate()
	if err != nil {
		return Test{}, err
	}

	return test, nil
}

func (t Test) Validate() errorsx.Error {
	if t.Property == "" {
		return errorsx.Wrap(ErrMalformedTest, "reason", "empty property name")
	}

	_, err := ParseOperator(string(t.Op))
	if err != nil {
		return errorsx.Wrap(err, "property", t.Property)
	}

	if t.Value == nil {
		return errorsx.Wrap(ErrMalformedTest, "property", t.Property, "reason", "missing value")
	}

	switch t.Value.(type) {
	case NumberValue:
	case StringValue:
		if t.Op.IsRanged() {
			return errorsx.Wrap(ErrMalformedTest, "test", t.String(), "reason", "ranged operator requires a numeric value")
		}
	default:
		return errorsx.Wrap(ErrMalformedTest, "test", t.String(), "reason", fmt.Sprintf("%s values cannot be tested", t.Value.Kind()))
	}

	return nil
}

// normalized stores a numeric-looking string value as a number, so [x=1] and
// [x='1'] are the same test everywhere filters are compared.
func (t Test) normalized() Test {
	if s, ok := t.Value.(StringValue); ok {
		if f, isNumber := parseNumericString(string(s)); isNumber {
			t.Value = NumberValue(f)
		}
	}
	return t
}

func (t Test) IsSimple() bool {
	return t.Op == OperatorEquals || t.Op == OperatorNotEquals
}

func (t Test) IsRanged() bool {
	return t.Op.IsRanged()
}

func (t Test) IsNumeric() bool {
	_, ok := t.Value.(NumberValue)
	return ok
}

// Inverse is only defined for simple tests.
func (t Test) Inverse() (Test, errorsx.Error) {
	switch t.Op {
	case OperatorEquals:
		return Test{t.Property, OperatorNotEquals, t.Value}, nil
	case OperatorNotEquals:
		return Test{t.Property, OperatorEquals, t.Value}, nil
	}

	return Test{}, errorsx.Wrap(ErrMalformedTest, "test", t.String(), "reason", "only simple tests have an inverse")
}

func (t Test) String() string {
	var value string
	if t.Value != nil {
		value = t.Value.String()
	}
	return fmt.Sprintf("[%s%s%s]", t.Property, t.Op, value)
}

// Matches evaluates the test against a raw attribute value.
func (t Test) Matches(raw string, present bool) bool {
	if !present {
		return t.Op == OperatorNotEquals
	}

	switch v := t.Value.(type) {
	case NumberValue:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return t.Op == OperatorNotEquals
		}
		return compareWithOperator(f, t.Op, float64(v))
	case StringValue:
		switch t.Op {
		case OperatorEquals:
			return raw == string(v)
		case OperatorNotEquals:
			return raw != string(v)
		}
	}

	return false
}

func compareWithOperator(a float64, op Operator, b float64) bool {
	switch op {
	case OperatorLessThan:
		return a < b
	case OperatorLessThanOrEqualTo:
		return a <= b
	case OperatorEquals:
		return a == b
	case OperatorNotEquals:
		return a != b
	case OperatorGreaterThanOrEqualTo:
		return a >= b
	case OperatorGreaterThan:
		return a > b
	}
	return false
}

func compareTests(a, b Test) int {
	aScale, bScale := a.Property == ScaleDenominatorProperty, b.Property == ScaleDenominatorProperty
	if aScale != bScale {
		if aScale {
			return -1
		}
		return 1
	}

	if a.Property != b.Property {
		if a.Property < b.Property {
			return -1
		}
		return 1
	}

	if a.Op != b.Op {
		if a.Op < b.Op {
			return -1
		}
		return 1
	}

	return CompareValues(a.Value, b.Value)
}

func testsEqual(a, b Test) bool {
	return compareTests(a, b) == 0
}
