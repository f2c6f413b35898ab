package cascade

import (
	"os"
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompiler() *Compiler {
	return NewCompiler(logpkg.NewLogger(os.Stderr, logpkg.LogLevelWarn), DefaultOptions())
}

type declarationBuilder struct {
	t            *testing.T
	declarations []Declaration
}

func (b *declarationBuilder) add(selector Selector, property string, value Value) *declarationBuilder {
	declaration := NewDeclaration(selector, property, value, false, len(b.declarations))
	declaration.Line = len(b.declarations) + 1
	b.declarations = append(b.declarations, declaration)
	return b
}

func (b *declarationBuilder) sorted() []Declaration {
	SortDeclarations(b.declarations)
	return b.declarations
}

func rulesStrings(rules []Rule) []string {
	var s []string
	for _, rule := range rules {
		s = append(s, rule.String())
	}
	return s
}

func TestCompile_cascade(t *testing.T) {
	b := &declarationBuilder{t: t}
	b.add(mustSelector(t, Element{Names: []string{"*"}}), "polygon-fill", ColorValue{0xff, 0x99, 0x00, 0xff})
	b.add(mustSelector(t, Element{Tests: []Test{numTest("a", OperatorEquals, 1)}}), "polygon-fill", ColorValue{0, 0, 0, 0xff})

	rules, err := newTestCompiler().Compile(b.sorted())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"polygon scale=[-,-] filter=(not [a] = 1) {polygon-fill: #ff9900}",
		"polygon scale=[-,-] filter=([a] = 1) {polygon-fill: #000000}",
	}, rulesStrings(rules))
}

func TestCompile_specificityBeatsSourceOrder(t *testing.T) {
	b := &declarationBuilder{t: t}
	b.add(mustSelector(t, Element{Names: []string{"#water"}}), "polygon-fill", ColorValue{0, 0, 0xff, 0xff})
	b.add(mustSelector(t, Element{Names: []string{"Layer"}}), "polygon-fill", ColorValue{0xff, 0, 0, 0xff})

	rules, err := newTestCompiler().Compile(b.sorted())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, ColorValue{0, 0, 0xff, 0xff}, rules[0].Properties["polygon-fill"])
}

func TestCompile_displayNone(t *testing.T) {
	b := &declarationBuilder{t: t}
	b.add(mustSelector(t, Element{Tests: []Test{numTest("a", OperatorEquals, 1)}}), DisplayProperty, StringValue(DisplayNone))
	b.add(mustSelector(t, Element{Names: []string{"*"}}), "polygon-fill", ColorValue{0xff, 0x99, 0x00, 0xff})
	b.add(mustSelector(t, Element{Names: []string{"*"}}), "line-width", NumberValue(1))

	rules, err := newTestCompiler().Compile(b.sorted())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"polygon scale=[-,-] filter=(not [a] = 1) {polygon-fill: #ff9900}",
		"line scale=[-,-] filter=(not [a] = 1) {line-width: 1}",
	}, rulesStrings(rules))
}

func TestCompile_zoomLevels(t *testing.T) {
	b := &declarationBuilder{t: t}
	b.add(mustSelector(t, Element{Names: []string{"#roads"}}), "line-width", NumberValue(1))
	b.add(mustSelector(t, Element{Names: []string{"#roads"}, Tests: []Test{numTest(ZoomProperty, OperatorLessThan, 5)}}), "line-width", NumberValue(0.5))

	rules, err := newTestCompiler().Compile(b.sorted())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"line scale=[-,24999999] filter=(*) {line-width: 1}",
		"line scale=[25000000,-] filter=(*) {line-width: 0.5}",
	}, rulesStrings(rules))

	options := DefaultOptions()
	options.SRS = "+proj=latlong +datum=WGS84"
	_, err = NewCompiler(logpkg.NewLogger(os.Stderr, logpkg.LogLevelWarn), options).Compile(b.sorted())
	require.Error(t, err)
	assert.Equal(t, ErrUnsupportedProjection, errorsx.Cause(err))
	assert.Contains(t, err.Error(), "#roads[zoom<5]")
}

func TestCompile_skipsScaleRangesWithoutWholeNumbers(t *testing.T) {
	b := &declarationBuilder{t: t}
	b.add(mustSelector(t, Element{Names: []string{"#roads"}}), "line-width", NumberValue(1))
	b.add(mustSelector(t, Element{Names: []string{"#roads"}, Tests: []Test{
		numTest(ScaleDenominatorProperty, OperatorGreaterThan, 1),
		numTest(ScaleDenominatorProperty, OperatorLessThan, 2),
	}}), "line-width", NumberValue(2))

	rules, err := newTestCompiler().Compile(b.sorted())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"line scale=[-,1] filter=(*) {line-width: 1}",
		"line scale=[2,-] filter=(*) {line-width: 1}",
	}, rulesStrings(rules))
}

func TestCompile_labelledFamilies(t *testing.T) {
	label := func(tests ...Test) Selector {
		return mustSelector(t, Element{Names: []string{"#roads"}, Tests: tests}, Element{Names: []string{"name"}})
	}

	b := &declarationBuilder{t: t}
	b.add(label(), "text-size", NumberValue(10))
	b.add(label(strTest("highway", OperatorEquals, "motorway")), "text-size", NumberValue(12))
	b.add(mustSelector(t, Element{Names: []string{"#roads"}, Tests: []Test{strTest("highway", OperatorEquals, "motorway")}}, Element{Names: []string{"ref"}}), "shield-file", StringValue("shield.png"))
	// no label field
	b.add(mustSelector(t, Element{Names: []string{"#roads"}}), "text-fill", ColorValue{0, 0, 0, 0xff})

	rules, err := newTestCompiler().Compile(b.sorted())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"text/name scale=[-,-] filter=(not [highway] = 'motorway') {text-size: 10}",
		"text/name scale=[-,-] filter=([highway] = 'motorway') {text-size: 12}",
		"shield/ref scale=[-,-] filter=([highway] = 'motorway') {shield-file: shield.png}",
	}, rulesStrings(rules))
}

func TestCompile_deterministic(t *testing.T) {
	b := &declarationBuilder{t: t}
	b.add(mustSelector(t, Element{Names: []string{"*"}}), "line-color", ColorValue{0x10, 0x20, 0x30, 0xff})
	b.add(mustSelector(t, Element{Tests: []Test{strTest("highway", OperatorEquals, "primary")}}), "line-width", NumberValue(3))
	b.add(mustSelector(t, Element{Tests: []Test{strTest("highway", OperatorEquals, "secondary")}}), "line-width", NumberValue(2))
	b.add(mustSelector(t, Element{Tests: []Test{numTest("lanes", OperatorGreaterThan, 2)}}), "line-width", NumberValue(4))
	b.add(mustSelector(t, Element{Tests: []Test{numTest(ZoomProperty, OperatorGreaterThanOrEqualTo, 12)}}), "line-cap", StringValue("round"))
	declarations := b.sorted()

	compiler := newTestCompiler()
	first, err := compiler.Compile(declarations)
	require.NoError(t, err)
	second, err := compiler.Compile(declarations)
	require.NoError(t, err)

	assert.Equal(t, rulesStrings(first), rulesStrings(second))
	// 3 highway partitions x 2 lanes partitions x 2 scale partitions
	assert.Len(t, first, 12)

	// resolution against the same filter is stable too
	for _, rule := range first {
		props1, ok1 := ResolvePropertiesForFilter(declarations, rule.Filter)
		props2, ok2 := ResolvePropertiesForFilter(declarations, rule.Filter)
		assert.Equal(t, ok1, ok2)
		assert.Equal(t, props1, props2)
	}
}

func TestCompile_errors(t *testing.T) {
	star := mustSelector(t, Element{Names: []string{"*"}})
	id := mustSelector(t, Element{Names: []string{"#id"}})

	t.Run("unsorted", func(t *testing.T) {
		declarations := []Declaration{
			NewDeclaration(id, "line-width", NumberValue(1), false, 0),
			NewDeclaration(star, "line-width", NumberValue(2), false, 1),
		}
		_, err := newTestCompiler().Compile(declarations)
		require.Error(t, err)
		assert.Equal(t, ErrUnsortedDeclarations, errorsx.Cause(err))
	})

	t.Run("inconsistent sort key", func(t *testing.T) {
		declaration := NewDeclaration(id, "line-width", NumberValue(1), false, 0)
		declaration.SortKey.Specificity = Specificity{}
		_, err := newTestCompiler().Compile([]Declaration{declaration})
		require.Error(t, err)
		assert.Equal(t, ErrUnsortedDeclarations, errorsx.Cause(err))
	})

	t.Run("unknown property", func(t *testing.T) {
		_, err := newTestCompiler().Compile([]Declaration{NewDeclaration(star, "line-wobble", NumberValue(1), false, 0)})
		require.Error(t, err)
		assert.Equal(t, ErrUnknownProperty, errorsx.Cause(err))
	})

	t.Run("wrong value kind", func(t *testing.T) {
		_, err := newTestCompiler().Compile([]Declaration{NewDeclaration(star, "line-width", StringValue("wide"), false, 0)})
		require.Error(t, err)
		assert.Equal(t, ErrMalformedValue, errorsx.Cause(err))
	})

	t.Run("bad keyword", func(t *testing.T) {
		_, err := newTestCompiler().Compile([]Declaration{NewDeclaration(star, "line-cap", StringValue("pointy"), false, 0)})
		require.Error(t, err)
		assert.Equal(t, ErrMalformedValue, errorsx.Cause(err))
	})

	t.Run("too many combinations", func(t *testing.T) {
		b := &declarationBuilder{t: t}
		for _, property := range []string{"a", "b", "c", "d", "e"} {
			b.add(mustSelector(t, Element{Tests: []Test{strTest(property, OperatorEquals, "yes")}}), "line-width", NumberValue(1))
		}

		options := DefaultOptions()
		options.MaxFilterCombinations = 16
		_, err := NewCompiler(logpkg.NewLogger(os.Stderr, logpkg.LogLevelWarn), options).Compile(b.sorted())
		require.Error(t, err)
		assert.Equal(t, ErrResourceLimit, errorsx.Cause(err))
		assert.Contains(t, err.Error(), `property="e"`)
	})
}

func TestCompileLayer(t *testing.T) {
	b := &declarationBuilder{t: t}
	b.add(mustSelector(t, Element{Names: []string{"#roads"}}), "line-width", NumberValue(1))
	b.add(mustSelector(t, Element{Names: []string{"#water"}}), "polygon-fill", ColorValue{0, 0, 0xff, 0xff})
	b.add(mustSelector(t, Element{Names: []string{"#roads", ".minor"}}), "line-width", NumberValue(0.5))
	b.add(mustSelector(t, Element{Names: []string{"#roads", ".major"}}), "line-width", NumberValue(5))

	rules, err := newTestCompiler().CompileLayer(b.sorted(), Layer{ID: "roads", Classes: []string{"minor"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"line scale=[-,-] filter=(*) {line-width: 0.5}"}, rulesStrings(rules))
}
