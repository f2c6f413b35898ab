package cascade

import (
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
)

const (
	DefaultMaxPropertyTests      = 256
	DefaultMaxFilterCombinations = 65536
)

// Limits guards the combination engine against pathological stylesheets.
type Limits struct {
	// MaxPropertyTests is the maximum number of distinct tests on one property.
	MaxPropertyTests int `yaml:"maxPropertyTests" json:"maxPropertyTests"`
	// MaxFilterCombinations caps both the number of pending partial filters
	// while combining one property, and the size of the cross-property product.
	MaxFilterCombinations int `yaml:"maxFilterCombinations" json:"maxFilterCombinations"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxPropertyTests:      DefaultMaxPropertyTests,
		MaxFilterCombinations: DefaultMaxFilterCombinations,
	}
}

func resourceLimitError(property string, testCount int, limit string) errorsx.Error {
	return errorsx.Wrap(ErrResourceLimit, "property", property, "tests", testCount, "limit", limit)
}

type partialFilter struct {
	filter   Filter
	nextTest int
}

// CombinationsFromTests splits the space of one property into disjoint filters,
// one per feasible combination of its simple tests holding or not holding.
// Each returned filter extends base.
func CombinationsFromTests(tests []Test, base Filter, limits Limits) ([]Filter, errorsx.Error) {
	var property string
	for _, test := range tests {
		if !test.IsSimple() {
			return nil, errorsx.Wrap(ErrMalformedTest, "test", test.String(), "reason", "only = and != tests can be combined categorically")
		}
		property = test.Property
	}

	if limits.MaxPropertyTests > 0 && len(tests) > limits.MaxPropertyTests {
		return nil, resourceLimitError(property, len(tests), "maxPropertyTests")
	}

	var filters []Filter

	stack := []partialFilter{{base, 0}}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current.nextTest == len(tests) {
			filter := current.filter.MinusExtras()
			if !containsFilter(filters, filter) {
				filters = append(filters, filter)
			}
			continue
		}

		test := tests[current.nextTest].normalized()
		inverse, err := test.Inverse()
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		// the inverse branch is pushed first so the branch where the test holds is explored first
		for _, branchTest := range []Test{inverse, test} {
			branch := current.filter.With(branchTest)
			if !branch.IsOpen() {
				continue
			}
			stack = append(stack, partialFilter{branch, current.nextTest + 1})
		}

		if limits.MaxFilterCombinations > 0 && len(stack)+len(filters) > limits.MaxFilterCombinations {
			return nil, resourceLimitError(property, len(tests), "maxFilterCombinations")
		}
	}

	return filters, nil
}

func containsFilter(filters []Filter, filter Filter) bool {
	for _, existing := range filters {
		if existing.Equal(filter) {
			return true
		}
	}
	return false
}

type propertyGroup struct {
	property string
	tests    []Test
}

func groupTestsByProperty(tests []Test) []propertyGroup {
	groupsMap := make(map[string][]Test)
	for _, test := range tests {
		test = test.normalized()
		group := groupsMap[test.Property]
		duplicate := false
		for _, existing := range group {
			if testsEqual(existing, test) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			groupsMap[test.Property] = append(group, test)
		}
	}

	var groups []propertyGroup
	for property, groupTests := range groupsMap {
		groups = append(groups, propertyGroup{property, groupTests})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].property < groups[j].property
	})

	return groups
}

func (g propertyGroup) isRanged() bool {
	if g.property == ScaleDenominatorProperty {
		return true
	}
	for _, test := range g.tests {
		if test.IsRanged() {
			return true
		}
	}
	return false
}

// fragments returns the disjoint partition of this property's value space, each
// fragment as the tests that select it.
func (g propertyGroup) fragments(limits Limits) ([][]Test, errorsx.Error) {
	if limits.MaxPropertyTests > 0 && len(g.tests) > limits.MaxPropertyTests {
		return nil, resourceLimitError(g.property, len(g.tests), "maxPropertyTests")
	}

	var fragments [][]Test
	if g.isRanged() {
		for _, test := range g.tests {
			if !test.IsNumeric() {
				return nil, errorsx.Wrap(ErrMalformedTest, "test", test.String(), "reason", "property is compared with ranged operators and strings")
			}
		}

		ranges, err := RangesFromTests(g.tests)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		for _, r := range ranges {
			fragments = append(fragments, r.ToFilter(g.property).Tests())
		}
		return fragments, nil
	}

	filters, err := CombinationsFromTests(g.tests, NewFilter(), limits)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	for _, filter := range filters {
		fragments = append(fragments, filter.Tests())
	}
	return fragments, nil
}

// AllFilterCombinations partitions the joint space of every property tested
// into disjoint filters, returned in deterministic order.
func AllFilterCombinations(tests []Test, limits Limits) ([]Filter, errorsx.Error) {
	groups := groupTestsByProperty(tests)
	if len(groups) == 0 {
		return []Filter{NewFilter()}, nil
	}

	partitions := make([][][]Test, len(groups))
	total := 1
	for i, group := range groups {
		fragments, err := group.fragments(limits)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		partitions[i] = fragments

		total *= len(fragments)
		if limits.MaxFilterCombinations > 0 && total > limits.MaxFilterCombinations {
			return nil, resourceLimitError(group.property, len(group.tests), "maxFilterCombinations")
		}
	}

	filters := make([]Filter, 0, total)

	// mixed-radix counter over the partitions
	indexes := make([]int, len(partitions))
	for n := 0; n < total; n++ {
		var combined []Test
		for i, idx := range indexes {
			combined = append(combined, partitions[i][idx]...)
		}
		filters = append(filters, NewFilter(combined...))

		for i := len(indexes) - 1; i >= 0; i-- {
			indexes[i]++
			if indexes[i] < len(partitions[i]) {
				break
			}
			indexes[i] = 0
		}
	}

	sort.SliceStable(filters, func(i, j int) bool {
		return filters[i].Compare(filters[j]) < 0
	})

	return filters, nil
}
