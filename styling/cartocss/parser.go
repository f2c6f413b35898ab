package cartocss

import (
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/multierr"
)

// Stylesheet is the result of reading a CartoCSS-style stylesheet.
// Declarations are in cascade order, ready to be compiled.
type Stylesheet struct {
	Variables    map[string]string
	Declarations []cascade.Declaration
}

type Parser struct {
	logger *logpkg.Logger
}

func NewParser(logger *logpkg.Logger) *Parser {
	return &Parser{logger}
}

// Parse reads a stylesheet. Every malformed statement is reported, not just the first.
func (p *Parser) Parse(stylesheet string) (*Stylesheet, errorsx.Error) {
	tokens, err := tokenize(stylesheet)
	if err != nil {
		return nil, err
	}

	state := &parseState{
		logger:    p.logger,
		tokens:    tokens,
		variables: make(map[string]string),
	}
	state.parseBlock(nil)

	if state.errs != nil {
		return nil, errorsx.Wrap(state.errs)
	}

	cascade.SortDeclarations(state.declarations)

	p.logger.Debug("parsed %d declarations and %d variables", len(state.declarations), len(state.variables))

	return &Stylesheet{
		Variables:    state.variables,
		Declarations: state.declarations,
	}, nil
}

type parseState struct {
	logger       *logpkg.Logger
	tokens       []token
	pos          int
	variables    map[string]string
	declarations []cascade.Declaration
	errs         error
}

func (s *parseState) addError(err errorsx.Error, line int) {
	s.errs = multierr.Append(s.errs, errorsx.Wrap(err, "line", line))
}

// nextStatement collects tokens up to the next ';', '{' or '}' outside of
// brackets and parentheses, and returns them with the terminating token.
func (s *parseState) nextStatement() ([]token, *token) {
	var statement []token
	depth := 0
	for s.pos < len(s.tokens) {
		t := s.tokens[s.pos]
		s.pos++

		switch t.Type {
		case css.LeftBracketToken, css.LeftParenthesisToken, css.FunctionToken:
			depth++
		case css.RightBracketToken, css.RightParenthesisToken:
			depth--
		case css.SemicolonToken, css.LeftBraceToken, css.RightBraceToken:
			if depth <= 0 {
				return statement, &t
			}
		}
		statement = append(statement, t)
	}
	return statement, nil
}

// parseBlock reads statements until the closing brace of the current block,
// or the end of input at the top level.
func (s *parseState) parseBlock(parents []cascade.Selector) {
	for {
		statement, terminator := s.nextStatement()
		statement = trimWhitespace(statement)

		if terminator == nil {
			if len(statement) > 0 {
				s.handleStatement(statement, parents)
			}
			if parents != nil {
				s.addError(errorsx.Errorf("unclosed block"), lastLine(s.tokens))
			}
			return
		}

		switch terminator.Type {
		case css.LeftBraceToken:
			selectors, err := s.parseSelectorGroup(statement, parents)
			if err != nil {
				s.addError(err, terminator.Line)
				s.skipBlock()
				continue
			}
			s.parseBlock(selectors)
		case css.RightBraceToken:
			if len(statement) > 0 {
				s.handleStatement(statement, parents)
			}
			if parents == nil {
				s.addError(errorsx.Errorf("unexpected '}'"), terminator.Line)
				continue
			}
			return
		case css.SemicolonToken:
			if len(statement) > 0 {
				s.handleStatement(statement, parents)
			}
		}
	}
}

func (s *parseState) skipBlock() {
	depth := 1
	for s.pos < len(s.tokens) && depth > 0 {
		switch s.tokens[s.pos].Type {
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			depth--
		}
		s.pos++
	}
}

func (s *parseState) handleStatement(statement []token, parents []cascade.Selector) {
	first := statement[0]
	rest := trimWhitespace(statement[1:])

	if len(rest) == 0 || rest[0].Type != css.ColonToken {
		s.addError(errorsx.Errorf("expected ':' after %q", first.Data), first.Line)
		return
	}
	valueTokens := trimWhitespace(rest[1:])

	switch first.Type {
	case css.AtKeywordToken:
		value, err := s.renderValue(valueTokens)
		if err != nil {
			s.addError(err, first.Line)
			return
		}
		s.variables[strings.TrimPrefix(first.Data, "@")] = value
	case css.IdentToken:
		if parents == nil {
			s.addError(errorsx.Errorf("declaration of %q outside of a ruleset", first.Data), first.Line)
			return
		}
		s.addDeclarations(first, valueTokens, parents)
	default:
		s.addError(errorsx.Errorf("unexpected %q", first.Data), first.Line)
	}
}

func (s *parseState) addDeclarations(property token, valueTokens []token, selectors []cascade.Selector) {
	important := false
	if n := len(valueTokens); n >= 2 && valueTokens[n-2].is(css.DelimToken, "!") &&
		valueTokens[n-1].Type == css.IdentToken && strings.EqualFold(valueTokens[n-1].Data, "important") {
		important = true
		valueTokens = trimWhitespace(valueTokens[:n-2])
	}

	def, ok := cascade.LookupProperty(property.Data)
	if !ok {
		s.addError(errorsx.Wrap(cascade.ErrUnknownProperty, "property", property.Data), property.Line)
		return
	}

	raw, err := s.renderValue(valueTokens)
	if err != nil {
		s.addError(errorsx.Wrap(err, "property", property.Data), property.Line)
		return
	}

	value, err := def.ParseValue(raw)
	if err != nil {
		s.addError(err, property.Line)
		return
	}

	for _, selector := range selectors {
		declaration := cascade.NewDeclaration(selector, property.Data, value, important, len(s.declarations))
		declaration.Line = property.Line
		s.declarations = append(s.declarations, declaration)
	}
}

// renderValue turns value tokens back into text, substituting variables and
// collapsing whitespace.
func (s *parseState) renderValue(tokens []token) (string, errorsx.Error) {
	if len(tokens) == 0 {
		return "", errorsx.Wrap(cascade.ErrMalformedValue, "reason", "empty value")
	}

	var sb strings.Builder
	for _, t := range tokens {
		switch t.Type {
		case css.WhitespaceToken:
			sb.WriteByte(' ')
		case css.AtKeywordToken:
			name := strings.TrimPrefix(t.Data, "@")
			value, ok := s.variables[name]
			if !ok {
				return "", errorsx.Wrap(cascade.ErrMalformedValue, "variable", name, "reason", "undefined variable")
			}
			sb.WriteString(value)
		case css.URLToken:
			sb.WriteString(`"` + strings.ReplaceAll(urlTarget(t.Data), `"`, `\"`) + `"`)
		default:
			sb.WriteString(t.Data)
		}
	}

	return sb.String(), nil
}

// urlTarget extracts the target of url(...), with or without quotes.
func urlTarget(data string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(data, "url("), ")")
	inner = strings.TrimSpace(inner)
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		inner = inner[1 : len(inner)-1]
	}
	return inner
}

func trimWhitespace(tokens []token) []token {
	for len(tokens) > 0 && tokens[0].Type == css.WhitespaceToken {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].Type == css.WhitespaceToken {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

func lastLine(tokens []token) int {
	if len(tokens) == 0 {
		return 1
	}
	return tokens[len(tokens)-1].Line
}
