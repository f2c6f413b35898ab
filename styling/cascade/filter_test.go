package cascade

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_IsOpen(t *testing.T) {
	tests := []struct {
		name  string
		tests []Test
		want  bool
	}{
		{"empty", nil, true},
		{"two equalities", []Test{strTest("x", OperatorEquals, "a"), strTest("x", OperatorEquals, "b")}, false},
		{"same equality twice", []Test{strTest("x", OperatorEquals, "a"), strTest("x", OperatorEquals, "a")}, true},
		{"equality and its negation", []Test{strTest("x", OperatorEquals, "a"), strTest("x", OperatorNotEquals, "a")}, false},
		{"equality and other negation", []Test{strTest("x", OperatorEquals, "a"), strTest("x", OperatorNotEquals, "b")}, true},
		{"different properties", []Test{strTest("x", OperatorEquals, "a"), strTest("y", OperatorEquals, "b")}, true},
		{"crossed bounds", []Test{numTest("x", OperatorGreaterThan, 5), numTest("x", OperatorLessThan, 2)}, false},
		{"touching exclusive bounds", []Test{numTest("x", OperatorGreaterThan, 5), numTest("x", OperatorLessThanOrEqualTo, 5)}, false},
		{"touching inclusive bounds", []Test{numTest("x", OperatorGreaterThanOrEqualTo, 5), numTest("x", OperatorLessThanOrEqualTo, 5)}, true},
		{"single point excluded", []Test{numTest("x", OperatorGreaterThanOrEqualTo, 5), numTest("x", OperatorLessThanOrEqualTo, 5), numTest("x", OperatorNotEquals, 5)}, false},
		{"equality outside bounds", []Test{numTest("x", OperatorEquals, 7), numTest("x", OperatorLessThan, 5)}, false},
		{"equality inside bounds", []Test{numTest("x", OperatorEquals, 3), numTest("x", OperatorLessThan, 5)}, true},
		{"string equality with bounds", []Test{strTest("x", OperatorEquals, "a"), numTest("x", OperatorLessThan, 5)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFilter(tt.tests...).IsOpen())
		})
	}
}

func TestFilter_MinusExtras(t *testing.T) {
	filter := NewFilter(
		strTest("x", OperatorEquals, "a"),
		strTest("x", OperatorNotEquals, "b"),
		strTest("x", OperatorNotEquals, "c"),
		strTest("y", OperatorNotEquals, "d"),
	)

	once := filter.MinusExtras()
	assert.Equal(t, "[x=a][y!=d]", once.String())
	assert.True(t, once.Equal(once.MinusExtras()))
}

func TestFilter_MinusExtras_idempotent(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	values := []string{"a", "b", "c"}
	properties := []string{"x", "y"}

	for i := 0; i < 200; i++ {
		var tests []Test
		for j := rnd.Intn(6); j > 0; j-- {
			op := OperatorEquals
			if rnd.Intn(2) == 0 {
				op = OperatorNotEquals
			}
			tests = append(tests, strTest(properties[rnd.Intn(len(properties))], op, values[rnd.Intn(len(values))]))
		}

		once := NewFilter(tests...).MinusExtras()
		assert.Equal(t, once.String(), once.MinusExtras().String())
	}
}

func TestFilter_canonicalOrder(t *testing.T) {
	filter := NewFilter(
		strTest("highway", OperatorEquals, "primary"),
		numTest(ScaleDenominatorProperty, OperatorLessThan, 400000),
		numTest("foo", OperatorGreaterThan, 1),
		numTest("foo", OperatorLessThan, 2),
	)

	assert.Equal(t, "[scale-denominator<400000][foo<2][foo>1][highway=primary]", filter.String())
}

func TestFilter_Compare(t *testing.T) {
	a := NewFilter(strTest("x", OperatorNotEquals, "a"))
	b := NewFilter(strTest("x", OperatorEquals, "a"))
	c := NewFilter(numTest(ScaleDenominatorProperty, OperatorLessThan, 5), strTest("x", OperatorEquals, "a"))

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, -1, c.Compare(a))
	assert.Equal(t, 0, a.Compare(NewFilter(strTest("x", OperatorNotEquals, "a"))))
}

func TestFilter_With_doesNotModifyReceiver(t *testing.T) {
	base := NewFilter(strTest("x", OperatorEquals, "a"))
	extended := base.With(strTest("y", OperatorEquals, "b"))

	assert.Equal(t, "[x=a]", base.String())
	assert.Equal(t, "[x=a][y=b]", extended.String())
}

func TestFilter_Matches(t *testing.T) {
	filter := NewFilter(
		strTest("highway", OperatorEquals, "primary"),
		numTest("lanes", OperatorGreaterThanOrEqualTo, 2),
		strTest("access", OperatorNotEquals, "private"),
	)

	attrs := func(m map[string]string) AttributeLookup {
		return func(property string) (string, bool) {
			v, ok := m[property]
			return v, ok
		}
	}

	assert.True(t, filter.Matches(attrs(map[string]string{"highway": "primary", "lanes": "3"})))
	assert.False(t, filter.Matches(attrs(map[string]string{"highway": "primary", "lanes": "1"})))
	assert.False(t, filter.Matches(attrs(map[string]string{"highway": "primary", "lanes": "3", "access": "private"})))
	assert.False(t, filter.Matches(attrs(map[string]string{"highway": "primary"})))
	assert.False(t, filter.Matches(attrs(map[string]string{"highway": "primary", "lanes": "many"})))
}
