package cascade

import (
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
)

type Options struct {
	// SRS is the map projection. Zoom level tests are only allowed in spherical mercator.
	SRS    string `yaml:"srs" json:"srs"`
	Limits `yaml:",inline"`
}

func DefaultOptions() Options {
	return Options{
		SRS:    WebMercatorSRS,
		Limits: DefaultLimits(),
	}
}

// Compiler turns cascade-sorted declarations into flat, mutually exclusive rules.
type Compiler struct {
	logger  *logpkg.Logger
	options Options
}

func NewCompiler(logger *logpkg.Logger, options Options) *Compiler {
	return &Compiler{logger, options}
}

func (c *Compiler) Options() Options {
	return c.options
}

// Compile is deterministic: the same declarations always produce the same rules, in the same order.
// The declarations must already be sorted by SortKey; they are not modified.
func (c *Compiler) Compile(declarations []Declaration) ([]Rule, errorsx.Error) {
	err := CheckSorted(declarations)
	if err != nil {
		return nil, err
	}

	prepared, err := c.prepare(declarations)
	if err != nil {
		return nil, err
	}

	var rules []Rule
	for _, family := range Families {
		familyRules, err := c.compileFamily(family, prepared)
		if err != nil {
			return nil, errorsx.Wrap(err, "family", family)
		}
		rules = append(rules, familyRules...)
	}

	c.logger.Debug("compiled %d declarations into %d rules", len(declarations), len(rules))

	return rules, nil
}

// CompileLayer compiles only the declarations whose selectors apply to layer.
func (c *Compiler) CompileLayer(declarations []Declaration, layer Layer) ([]Rule, errorsx.Error) {
	var matching []Declaration
	for _, declaration := range declarations {
		if declaration.Selector.MatchesLayer(layer) {
			matching = append(matching, declaration)
		}
	}

	c.logger.Debug("layer %q: %d of %d declarations apply", layer.ID, len(matching), len(declarations))

	return c.Compile(matching)
}

// prepared declarations have known properties, valid values and zoom tests
// rewritten into scale-denominator tests.
type preparedDeclaration struct {
	Declaration
	family string
}

func (c *Compiler) prepare(declarations []Declaration) ([]preparedDeclaration, errorsx.Error) {
	isWebMercator := IsWebMercator(c.options.SRS)

	prepared := make([]preparedDeclaration, 0, len(declarations))
	for _, declaration := range declarations {
		def, ok := LookupProperty(declaration.Property)
		if !ok {
			return nil, errorsx.Wrap(ErrUnknownProperty, "property", declaration.Property, "line", declaration.Line)
		}

		err := def.ValidateValue(declaration.Value)
		if err != nil {
			return nil, errorsx.Wrap(err, "line", declaration.Line)
		}

		selector, err := declaration.Selector.ConvertZoomTests(isWebMercator)
		if err != nil {
			return nil, errorsx.Wrap(err, "line", declaration.Line)
		}

		converted := declaration
		converted.Selector = selector
		prepared = append(prepared, preparedDeclaration{converted, def.Family})
	}

	return prepared, nil
}

func (c *Compiler) compileFamily(family string, prepared []preparedDeclaration) ([]Rule, errorsx.Error) {
	var familyDecls, displayDecls []preparedDeclaration
	for _, declaration := range prepared {
		switch declaration.family {
		case family:
			familyDecls = append(familyDecls, declaration)
		case "":
			displayDecls = append(displayDecls, declaration)
		}
	}

	if len(familyDecls) == 0 {
		return nil, nil
	}

	if !IsLabelledFamily(family) {
		return c.compileGroup(family, "", familyDecls, displayDecls)
	}

	labelled := make(map[string][]preparedDeclaration)
	for _, declaration := range familyDecls {
		label := declaration.Selector.Label()
		if label == "" {
			c.logger.Warn("ignoring %q on line %d: %s properties need a label field, e.g. %q",
				declaration.Property, declaration.Line, family, declaration.Selector.String()+" name")
			continue
		}
		labelled[label] = append(labelled[label], declaration)
	}

	var labels []string
	for label := range labelled {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var rules []Rule
	for _, label := range labels {
		labelRules, err := c.compileGroup(family, label, labelled[label], displayDecls)
		if err != nil {
			return nil, errorsx.Wrap(err, "label", label)
		}
		rules = append(rules, labelRules...)
	}

	return rules, nil
}

func (c *Compiler) compileGroup(family, label string, familyDecls, displayDecls []preparedDeclaration) ([]Rule, errorsx.Error) {
	// merge back into cascade order; both inputs are already sorted
	declarations := make([]Declaration, 0, len(familyDecls)+len(displayDecls))
	for _, declaration := range familyDecls {
		declarations = append(declarations, declaration.Declaration)
	}
	for _, declaration := range displayDecls {
		declarations = append(declarations, declaration.Declaration)
	}
	SortDeclarations(declarations)

	var tests []Test
	for _, declaration := range declarations {
		tests = append(tests, declaration.Selector.Tests()...)
	}

	filters, err := AllFilterCombinations(tests, c.options.Limits)
	if err != nil {
		return nil, err
	}

	var rules []Rule
	for _, filter := range filters {
		properties, ok := ResolvePropertiesForFilter(declarations, filter)
		if !ok {
			continue
		}

		rule := EmitRule(filter, properties)
		if rule.HasEmptyScaleRange() {
			c.logger.Debug("%s %q: skipping %s, no whole scale denominator inside it", family, label, filter)
			continue
		}
		rule.Family = family
		rule.Label = label
		rules = append(rules, rule)
	}

	c.logger.Debug("%s %q: %d filters, %d rules", family, label, len(filters), len(rules))

	return rules, nil
}
