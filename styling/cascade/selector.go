package cascade

import (
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

const (
	WildcardName = "*"
	LayerTagName = "Layer"
	MapTagName   = "Map"
)

// Element is one step of a selector: tag, #id and .class names plus attribute tests.
type Element struct {
	Names []string
	Tests []Test
}

func (e Element) hasIDOrClass() bool {
	for _, name := range e.Names {
		if strings.HasPrefix(name, "#") || strings.HasPrefix(name, ".") {
			return true
		}
	}
	return false
}

func (e Element) String() string {
	var sb strings.Builder
	for _, name := range e.Names {
		sb.WriteString(name)
	}
	for _, test := range e.Tests {
		sb.WriteString(test.String())
	}
	return sb.String()
}

// Selector is an element path of at most two elements. Only the first element
// may carry ids, classes or tests; a second element names a label field.
type Selector struct {
	Elements []Element
}

func NewSelector(elements ...Element) (Selector, errorsx.Error) {
	selector := Selector{elements}

	if len(elements) == 0 {
		return Selector{}, errorsx.Wrap(ErrMalformedSelector, "reason", "no elements")
	}

	if len(elements) > 2 {
		return Selector{}, errorsx.Wrap(ErrMalformedSelector, "selector", selector.String(), "reason", "more than two elements")
	}

	for _, element := range elements {
		if len(element.Names) == 0 && len(element.Tests) == 0 {
			return Selector{}, errorsx.Wrap(ErrMalformedSelector, "selector", selector.String(), "reason", "empty element")
		}
		for _, name := range element.Names {
			if name == "" || name == "#" || name == "." {
				return Selector{}, errorsx.Wrap(ErrMalformedSelector, "selector", selector.String(), "reason", "empty name")
			}
		}
		for _, test := range element.Tests {
			err := test.Validate()
			if err != nil {
				return Selector{}, errorsx.Wrap(err, "selector", selector.String())
			}
		}
	}

	if len(elements) == 2 {
		label := elements[1]
		if len(label.Tests) > 0 || label.hasIDOrClass() || len(label.Names) != 1 {
			return Selector{}, errorsx.Wrap(ErrMalformedSelector, "selector", selector.String(), "reason", "only the first element may carry ids, classes or tests")
		}
	}

	return selector, nil
}

func (s Selector) String() string {
	var parts []string
	for _, element := range s.Elements {
		parts = append(parts, element.String())
	}
	return strings.Join(parts, " ")
}

// Tests returns the tests attached to the first element.
func (s Selector) Tests() []Test {
	if len(s.Elements) == 0 {
		return nil
	}
	return s.Elements[0].Tests
}

// Label returns the field named by the second element, or an empty string.
func (s Selector) Label() string {
	if len(s.Elements) < 2 {
		return ""
	}
	return s.Elements[1].Names[0]
}

// Specificity counts (ids, other names, tests) across all elements. The
// wildcard name does not count.
func (s Selector) Specificity() Specificity {
	var specificity Specificity
	for _, element := range s.Elements {
		for _, name := range element.Names {
			switch {
			case strings.HasPrefix(name, "#"):
				specificity[0]++
			case name != WildcardName:
				specificity[1]++
			}
		}
		specificity[2] += len(element.Tests)
	}
	return specificity
}

// ConvertZoomTests rewrites zoom level tests into scale-denominator tests.
// Zoom levels only map onto scale denominators in spherical mercator.
func (s Selector) ConvertZoomTests(isWebMercator bool) (Selector, errorsx.Error) {
	converted := Selector{make([]Element, len(s.Elements))}
	for i, element := range s.Elements {
		newElement := Element{Names: element.Names}
		for _, test := range element.Tests {
			if test.Property != ZoomProperty {
				newElement.Tests = append(newElement.Tests, test)
				continue
			}

			if !isWebMercator {
				return Selector{}, errorsx.Wrap(ErrUnsupportedProjection, "selector", s.String())
			}

			scaleTests, err := convertZoomTest(test)
			if err != nil {
				return Selector{}, errorsx.Wrap(err, "selector", s.String())
			}
			newElement.Tests = append(newElement.Tests, scaleTests...)
		}
		converted.Elements[i] = newElement
	}

	return converted, nil
}

// Layer identifies a datasource layer that selectors are matched against.
type Layer struct {
	ID      string
	Classes []string
}

// MatchesLayer reports whether the first element's names all apply to the layer.
func (s Selector) MatchesLayer(layer Layer) bool {
	if len(s.Elements) == 0 {
		return false
	}

	for _, name := range s.Elements[0].Names {
		switch {
		case name == WildcardName, name == LayerTagName:
			continue
		case strings.HasPrefix(name, "#"):
			if name[1:] != layer.ID {
				return false
			}
		case strings.HasPrefix(name, "."):
			if !hasClass(layer.Classes, name[1:]) {
				return false
			}
		default:
			return false
		}
	}

	return true
}

func hasClass(classes []string, class string) bool {
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}

// SelectorCompatibleWithFilter reports whether no test on the selector's first
// element contradicts any test in the filter. Tests on properties the filter
// does not mention are always compatible.
func SelectorCompatibleWithFilter(selector Selector, filter Filter) bool {
	for _, selectorTest := range selector.Tests() {
		for _, filterTest := range filter.tests {
			if !testsCompatible(selectorTest, filterTest) {
				return false
			}
		}
	}
	return true
}

func testsCompatible(a, b Test) bool {
	if a.Property != b.Property {
		return true
	}
	return NewFilter(a, b).IsOpen()
}
