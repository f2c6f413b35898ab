package cartocss

import (
	"io"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

const (
	TokenNewLine = '\n'
)

// 2-char tokens
const (
	TokenOpenBlockComment  = "/*"
	TokenCloseBlockComment = "*/"
	TokenOpenLineComment   = "//"
)

type token struct {
	Type css.TokenType
	Data string
	Line int
}

func (t token) is(tokenType css.TokenType, data string) bool {
	return t.Type == tokenType && t.Data == data
}

// stripLineComments blanks out "//" comments, which CSS itself does not have.
// Newlines are kept so line numbers stay correct.
func stripLineComments(stylesheet string) string {
	var sb strings.Builder
	sb.Grow(len(stylesheet))

	var quote byte
	for i := 0; i < len(stylesheet); i++ {
		c := stylesheet[i]

		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(stylesheet) {
				sb.WriteByte(c)
				i++
				c = stylesheet[i]
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case strings.HasPrefix(stylesheet[i:], TokenOpenBlockComment):
			end := strings.Index(stylesheet[i+2:], TokenCloseBlockComment)
			if end == -1 {
				sb.WriteString(stylesheet[i:])
				return sb.String()
			}
			sb.WriteString(stylesheet[i : i+2+end+2])
			i += 2 + end + 1
			continue
		case strings.HasPrefix(stylesheet[i:], TokenOpenLineComment) && (i == 0 || stylesheet[i-1] != ':'):
			end := strings.IndexByte(stylesheet[i:], TokenNewLine)
			if end == -1 {
				return sb.String()
			}
			i += end - 1
			continue
		}

		sb.WriteByte(c)
	}

	return sb.String()
}

func tokenize(stylesheet string) ([]token, errorsx.Error) {
	lexer := css.NewLexer(parse.NewInput(strings.NewReader(stripLineComments(stylesheet))))

	var tokens []token
	line := 1
	for {
		tokenType, data := lexer.Next()
		if tokenType == css.ErrorToken {
			err := lexer.Err()
			if err == io.EOF {
				return tokens, nil
			}
			return nil, errorsx.Wrap(err, "line", line)
		}

		text := string(data)
		if tokenType != css.CommentToken {
			tokens = append(tokens, token{tokenType, text, line})
		}
		line += strings.Count(text, string(TokenNewLine))
	}
}
