package cartocss

import (
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"github.com/tdewolff/parse/v2/css"
)

// parseSelectorGroup parses a comma separated selector list. Inside a nested
// block each selector is combined with each parent selector.
func (s *parseState) parseSelectorGroup(statement []token, parents []cascade.Selector) ([]cascade.Selector, errorsx.Error) {
	var selectors []cascade.Selector
	for _, part := range splitOnCommas(statement) {
		selector, err := s.parseSelector(trimWhitespace(part))
		if err != nil {
			return nil, err
		}

		if parents == nil {
			selectors = append(selectors, selector)
			continue
		}

		for _, parent := range parents {
			nested, err := nestSelector(parent, selector)
			if err != nil {
				return nil, err
			}
			selectors = append(selectors, nested)
		}
	}

	return selectors, nil
}

func splitOnCommas(tokens []token) [][]token {
	var parts [][]token
	var current []token
	depth := 0
	for _, t := range tokens {
		switch t.Type {
		case css.LeftBracketToken, css.LeftParenthesisToken, css.FunctionToken:
			depth++
		case css.RightBracketToken, css.RightParenthesisToken:
			depth--
		case css.CommaToken:
			if depth == 0 {
				parts = append(parts, current)
				current = nil
				continue
			}
		}
		current = append(current, t)
	}
	return append(parts, current)
}

func (s *parseState) parseSelector(tokens []token) (cascade.Selector, errorsx.Error) {
	if len(tokens) == 0 {
		return cascade.Selector{}, errorsx.Wrap(cascade.ErrMalformedSelector, "reason", "empty selector")
	}

	var elements []cascade.Element
	var current cascade.Element
	sawAttachment := false
	startNewElement := func() {
		if len(current.Names) > 0 || len(current.Tests) > 0 {
			elements = append(elements, current)
		}
		current = cascade.Element{}
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch {
		case t.Type == css.WhitespaceToken:
			startNewElement()
		case t.Type == css.IdentToken:
			current.Names = append(current.Names, t.Data)
		case t.Type == css.HashToken:
			current.Names = append(current.Names, t.Data)
		case t.is(css.DelimToken, "*"):
			current.Names = append(current.Names, cascade.WildcardName)
		case t.is(css.DelimToken, "."):
			if i+1 >= len(tokens) || tokens[i+1].Type != css.IdentToken {
				return cascade.Selector{}, errorsx.Wrap(cascade.ErrMalformedSelector, "selector", joinTokens(tokens), "reason", "expected a class name after '.'")
			}
			i++
			current.Names = append(current.Names, "."+tokens[i].Data)
		case t.Type == css.LeftBracketToken:
			end := i + 1
			for end < len(tokens) && tokens[end].Type != css.RightBracketToken {
				end++
			}
			if end == len(tokens) {
				return cascade.Selector{}, errorsx.Wrap(cascade.ErrMalformedSelector, "selector", joinTokens(tokens), "reason", "unclosed '['")
			}
			test, err := parseAttributeTest(tokens[i+1 : end])
			if err != nil {
				return cascade.Selector{}, errorsx.Wrap(err, "selector", joinTokens(tokens))
			}
			current.Tests = append(current.Tests, test)
			i = end
		case t.Type == css.ColonToken:
			// attachments (::outline) only order symbolizers, which the cascade does not model
			j := i + 1
			if j < len(tokens) && tokens[j].Type == css.ColonToken {
				j++
			}
			if j >= len(tokens) || tokens[j].Type != css.IdentToken {
				return cascade.Selector{}, errorsx.Wrap(cascade.ErrMalformedSelector, "selector", joinTokens(tokens), "reason", "expected an attachment name")
			}
			s.logger.Debug("ignoring attachment %q on line %d", tokens[j].Data, t.Line)
			sawAttachment = true
			i = j
		default:
			return cascade.Selector{}, errorsx.Wrap(cascade.ErrMalformedSelector, "selector", joinTokens(tokens), "unexpected", t.Data)
		}
	}
	startNewElement()

	if len(elements) == 0 && sawAttachment {
		// a bare attachment applies to everything its parent matches
		elements = append(elements, cascade.Element{Names: []string{cascade.WildcardName}})
	}

	return cascade.NewSelector(elements...)
}

// parseAttributeTest parses the inside of [property op value].
func parseAttributeTest(tokens []token) (cascade.Test, errorsx.Error) {
	var significant []token
	for _, t := range tokens {
		if t.Type != css.WhitespaceToken {
			significant = append(significant, t)
		}
	}

	if len(significant) < 3 {
		return cascade.Test{}, errorsx.Wrap(cascade.ErrMalformedTest, "test", "["+joinTokens(tokens)+"]")
	}

	var property string
	switch significant[0].Type {
	case css.IdentToken:
		property = significant[0].Data
	case css.StringToken:
		property = cascade.ParseTestValue(significant[0].Data).String()
	default:
		return cascade.Test{}, errorsx.Wrap(cascade.ErrMalformedTest, "test", "["+joinTokens(tokens)+"]", "reason", "expected a property name")
	}

	var opText string
	idx := 1
	for idx < len(significant) && significant[idx].Type == css.DelimToken {
		opText += significant[idx].Data
		idx++
	}

	op, err := cascade.ParseOperator(opText)
	if err != nil {
		return cascade.Test{}, errorsx.Wrap(err, "test", "["+joinTokens(tokens)+"]")
	}

	if idx != len(significant)-1 {
		return cascade.Test{}, errorsx.Wrap(cascade.ErrMalformedTest, "test", "["+joinTokens(tokens)+"]", "reason", "expected a single value")
	}

	var value cascade.Value
	valueToken := significant[idx]
	switch valueToken.Type {
	case css.NumberToken:
		f, parseErr := strconv.ParseFloat(valueToken.Data, 64)
		if parseErr != nil {
			return cascade.Test{}, errorsx.Wrap(cascade.ErrMalformedTest, "test", "["+joinTokens(tokens)+"]", "reason", parseErr.Error())
		}
		value = cascade.NumberValue(f)
	case css.StringToken:
		value = cascade.ParseTestValue(valueToken.Data)
	case css.IdentToken, css.DimensionToken:
		value = cascade.StringValue(valueToken.Data)
	default:
		return cascade.Test{}, errorsx.Wrap(cascade.ErrMalformedTest, "test", "["+joinTokens(tokens)+"]", "reason", "unsupported value")
	}

	return cascade.NewTest(property, op, value)
}

// nestSelector merges a nested selector into its parent. Ids, classes and
// tests join the parent's first element; a tag name becomes the label element.
func nestSelector(parent, child cascade.Selector) (cascade.Selector, errorsx.Error) {
	first := cascade.Element{
		Names: append([]string{}, parent.Elements[0].Names...),
		Tests: append([]cascade.Test{}, parent.Elements[0].Tests...),
	}
	rest := append([]cascade.Element{}, parent.Elements[1:]...)

	for i, element := range child.Elements {
		if i > 0 {
			rest = append(rest, element)
			continue
		}

		var tags []string
		for _, name := range element.Names {
			switch {
			case name == cascade.WildcardName:
			case strings.HasPrefix(name, "#"), strings.HasPrefix(name, "."):
				first.Names = append(first.Names, name)
			default:
				tags = append(tags, name)
			}
		}
		first.Tests = append(first.Tests, element.Tests...)
		if len(tags) > 0 {
			rest = append(rest, cascade.Element{Names: tags})
		}
	}

	return cascade.NewSelector(append([]cascade.Element{first}, rest...)...)
}

func joinTokens(tokens []token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(t.Data)
	}
	return sb.String()
}
