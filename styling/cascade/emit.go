package cascade

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Rule is one flat, cascade-free rendering rule: scale bounds, a boolean
// filter over feature attributes, and the exact properties to apply.
type Rule struct {
	Family string
	// Label is the attribute rendered by labelled families (text, shield).
	Label            string
	MinScale         *int
	MaxScale         *int
	Filter           Filter
	FilterExpression string
	Properties       map[string]Value
}

// EmitRule builds a rule from a resolved filter and property bundle.
// Scale-denominator tests become integer scale bounds; the remaining tests
// are rendered as the filter expression.
func EmitRule(filter Filter, properties map[string]Value) Rule {
	rule := Rule{
		Filter:     filter,
		Properties: properties,
	}

	var conjuncts []string
	for _, test := range filter.tests {
		if test.Property != ScaleDenominatorProperty {
			conjuncts = append(conjuncts, testExpression(test))
			continue
		}

		number, ok := test.Value.(NumberValue)
		if !ok {
			continue
		}
		edge := float64(number)

		switch test.Op {
		case OperatorGreaterThan:
			rule.MinScale = tighterMin(rule.MinScale, scaleBound(math.Floor(edge)+1))
		case OperatorGreaterThanOrEqualTo:
			rule.MinScale = tighterMin(rule.MinScale, scaleBound(math.Ceil(edge)))
		case OperatorLessThan:
			rule.MaxScale = tighterMax(rule.MaxScale, scaleBound(math.Ceil(edge)-1))
		case OperatorLessThanOrEqualTo:
			rule.MaxScale = tighterMax(rule.MaxScale, scaleBound(math.Floor(edge)))
		case OperatorEquals:
			rule.MinScale = tighterMin(rule.MinScale, scaleBound(math.Ceil(edge)))
			rule.MaxScale = tighterMax(rule.MaxScale, scaleBound(math.Floor(edge)))
		case OperatorNotEquals:
			conjuncts = append(conjuncts, testExpression(test))
		}
	}

	rule.FilterExpression = strings.Join(conjuncts, " and ")

	return rule
}

// scaleBound converts an integral edge to a bound, saturating at the int32 range.
func scaleBound(edge float64) int {
	switch {
	case edge >= math.MaxInt32:
		return math.MaxInt32
	case edge <= math.MinInt32:
		return math.MinInt32
	}
	return int(edge)
}

// HasEmptyScaleRange reports whether the integer scale bounds exclude every
// scale, which happens when a narrow real interval has no integer inside it.
func (r Rule) HasEmptyScaleRange() bool {
	return r.MinScale != nil && r.MaxScale != nil && *r.MinScale > *r.MaxScale
}

func tighterMin(current *int, candidate int) *int {
	if current != nil && *current >= candidate {
		return current
	}
	return &candidate
}

func tighterMax(current *int, candidate int) *int {
	if current != nil && *current <= candidate {
		return current
	}
	return &candidate
}

func testExpression(test Test) string {
	var value string
	switch v := test.Value.(type) {
	case StringValue:
		value = "'" + strings.ReplaceAll(string(v), "'", `\'`) + "'"
	default:
		value = test.Value.String()
	}

	if test.Op == OperatorNotEquals {
		return fmt.Sprintf("not [%s] = %s", test.Property, value)
	}
	return fmt.Sprintf("[%s] %s %s", test.Property, test.Op, value)
}

// Matches reports whether a feature with the given attributes, drawn at the
// given scale denominator, is selected by the rule.
func (r Rule) Matches(lookup AttributeLookup, scaleDenominator float64) bool {
	if r.MinScale != nil && scaleDenominator < float64(*r.MinScale) {
		return false
	}
	if r.MaxScale != nil && scaleDenominator > float64(*r.MaxScale) {
		return false
	}

	return filterWithout(r.Filter, ScaleDenominatorProperty).Matches(lookup)
}

func (r Rule) sortedPropertyNames() []string {
	var names []string
	for name := range r.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r Rule) String() string {
	family := r.Family
	if r.Label != "" {
		family += "/" + r.Label
	}

	formatBound := func(bound *int) string {
		if bound == nil {
			return "-"
		}
		return strconv.Itoa(*bound)
	}

	filter := r.FilterExpression
	if filter == "" {
		filter = "*"
	}

	var props []string
	for _, name := range r.sortedPropertyNames() {
		props = append(props, fmt.Sprintf("%s: %s", name, r.Properties[name]))
	}

	return fmt.Sprintf(
		"%s scale=[%s,%s] filter=(%s) {%s}",
		family,
		formatBound(r.MinScale),
		formatBound(r.MaxScale),
		filter,
		strings.Join(props, "; "),
	)
}

type ruleDocument struct {
	Family   string                 `json:"family" yaml:"family"`
	Label    string                 `json:"label,omitempty" yaml:"label,omitempty"`
	MinScale *int                   `json:"minScale,omitempty" yaml:"minScale,omitempty"`
	MaxScale *int                   `json:"maxScale,omitempty" yaml:"maxScale,omitempty"`
	Filter   string                 `json:"filter,omitempty" yaml:"filter,omitempty"`
	Props    map[string]interface{} `json:"properties" yaml:"properties"`
}

func (r Rule) document() ruleDocument {
	props := make(map[string]interface{}, len(r.Properties))
	for name, value := range r.Properties {
		props[name] = plainValue(value)
	}

	return ruleDocument{
		Family:   r.Family,
		Label:    r.Label,
		MinScale: r.MinScale,
		MaxScale: r.MaxScale,
		Filter:   r.FilterExpression,
		Props:    props,
	}
}

func plainValue(value Value) interface{} {
	switch v := value.(type) {
	case NumberValue:
		return float64(v)
	case StringValue:
		return string(v)
	case ColorValue:
		return v.String()
	case BooleanValue:
		return bool(v)
	case ListValue:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = plainValue(item)
		}
		return items
	default:
		panic(fmt.Sprintf("unhandled value type: %T", value))
	}
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.document())
}

func (r Rule) MarshalYAML() (interface{}, error) {
	return r.document(), nil
}
