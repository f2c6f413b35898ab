package cascade

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

type ValueKind int

const (
	ValueKindNumber ValueKind = iota
	ValueKindString
	ValueKindColor
	ValueKindBoolean
	ValueKindList
)

var valueKindNames = []string{
	"number",
	"string",
	"color",
	"boolean",
	"list",
}

func (k ValueKind) String() string {
	if int(k) < 0 || int(k) >= len(valueKindNames) {
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
	return valueKindNames[k]
}

// Value is a property or test value. The set of implementations is closed.
type Value interface {
	Kind() ValueKind
	String() string
	isValue()
}

type NumberValue float64

type StringValue string

type ColorValue color.RGBA

type BooleanValue bool

type ListValue []Value

func (v NumberValue) Kind() ValueKind  { return ValueKindNumber }
func (v StringValue) Kind() ValueKind  { return ValueKindString }
func (v ColorValue) Kind() ValueKind   { return ValueKindColor }
func (v BooleanValue) Kind() ValueKind { return ValueKindBoolean }
func (v ListValue) Kind() ValueKind    { return ValueKindList }

func (NumberValue) isValue()  {}
func (StringValue) isValue()  {}
func (ColorValue) isValue()   {}
func (BooleanValue) isValue() {}
func (ListValue) isValue()    {}

func (v NumberValue) String() string {
	return strconv.FormatFloat(float64(v), 'f', -1, 64)
}

func (v StringValue) String() string {
	return string(v)
}

func (v ColorValue) String() string {
	if v.A != 0xff {
		return fmt.Sprintf("rgba(%d, %d, %d, %s)", v.R, v.G, v.B, strconv.FormatFloat(float64(v.A)/255, 'f', 2, 64))
	}
	return fmt.Sprintf("#%02x%02x%02x", v.R, v.G, v.B)
}

func (v BooleanValue) String() string {
	return strconv.FormatBool(bool(v))
}

func (v ListValue) String() string {
	var items []string
	for _, item := range v {
		items = append(items, item.String())
	}
	return strings.Join(items, ",")
}

// Color returns the value as the standard library type, for renderers.
func (v ColorValue) Color() color.RGBA {
	return color.RGBA(v)
}

// CompareValues orders values by kind (numbers first) and then by content.
func CompareValues(a, b Value) int {
	if a.Kind() != b.Kind() {
		if a.Kind() < b.Kind() {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case NumberValue:
		bv := b.(NumberValue)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case StringValue:
		return strings.Compare(string(av), string(b.(StringValue)))
	case ColorValue:
		bv := b.(ColorValue)
		aPacked := uint32(av.R)<<24 | uint32(av.G)<<16 | uint32(av.B)<<8 | uint32(av.A)
		bPacked := uint32(bv.R)<<24 | uint32(bv.G)<<16 | uint32(bv.B)<<8 | uint32(bv.A)
		switch {
		case aPacked < bPacked:
			return -1
		case aPacked > bPacked:
			return 1
		}
		return 0
	case BooleanValue:
		bv := b.(BooleanValue)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		}
		return 1
	case ListValue:
		bv := b.(ListValue)
		for i := 0; i < len(av) && i < len(bv); i++ {
			c := CompareValues(av[i], bv[i])
			if c != 0 {
				return c
			}
		}
		switch {
		case len(av) < len(bv):
			return -1
		case len(av) > len(bv):
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("unhandled value type: %T", a))
	}
}

func ValuesEqual(a, b Value) bool {
	return CompareValues(a, b) == 0
}

// numericLiteral is the number syntax a stylesheet can write. strconv alone
// would also accept inf, nan, hex floats and underscores.
var numericLiteral = regexp.MustCompile(`^[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][-+]?[0-9]+)?$`)

func parseNumericString(s string) (float64, bool) {
	if !numericLiteral.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseTestValue reads the right-hand side of an attribute test: a number
// where possible, otherwise a string with any surrounding quotes removed.
// Quoted numbers are numbers too.
func ParseTestValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	if unquoted, ok := unquote(raw); ok {
		raw = unquoted
	}

	f, ok := parseNumericString(raw)
	if ok {
		return NumberValue(f)
	}

	return StringValue(raw)
}

// ParseValue reads a declaration value of the given kind.
func ParseValue(kind ValueKind, raw string) (Value, errorsx.Error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errorsx.Wrap(ErrMalformedValue, "kind", kind.String(), "value", raw)
	}

	switch kind {
	case ValueKindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errorsx.Wrap(ErrMalformedValue, "kind", kind.String(), "value", raw)
		}
		return NumberValue(f), nil
	case ValueKindString:
		unquoted, ok := unquote(raw)
		if ok {
			return StringValue(unquoted), nil
		}
		return StringValue(raw), nil
	case ValueKindColor:
		c, err := parseColor(raw)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		return c, nil
	case ValueKindBoolean:
		switch strings.ToLower(raw) {
		case "true":
			return BooleanValue(true), nil
		case "false":
			return BooleanValue(false), nil
		}
		return nil, errorsx.Wrap(ErrMalformedValue, "kind", kind.String(), "value", raw)
	case ValueKindList:
		return parseList(raw), nil
	default:
		return nil, errorsx.Errorf("unhandled value kind: %s", kind)
	}
}

func parseList(raw string) ListValue {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	list := ListValue{}
	for _, field := range fields {
		list = append(list, ParseTestValue(field))
	}
	return list
}

func unquote(raw string) (string, bool) {
	if len(raw) < 2 {
		return "", false
	}

	first, last := raw[0], raw[len(raw)-1]
	if (first != '"' && first != '\'') || first != last {
		return "", false
	}

	inner := raw[1 : len(raw)-1]
	inner = strings.ReplaceAll(inner, `\`+string(first), string(first))
	return inner, true
}

var namedColors = map[string]ColorValue{
	"black":       {0, 0, 0, 0xff},
	"white":       {0xff, 0xff, 0xff, 0xff},
	"red":         {0xff, 0, 0, 0xff},
	"green":       {0, 0x80, 0, 0xff},
	"blue":        {0, 0, 0xff, 0xff},
	"yellow":      {0xff, 0xff, 0, 0xff},
	"orange":      {0xff, 0xa5, 0, 0xff},
	"pink":        {0xff, 0xc0, 0xcb, 0xff},
	"grey":        {0x80, 0x80, 0x80, 0xff},
	"gray":        {0x80, 0x80, 0x80, 0xff},
	"brown":       {0xa5, 0x2a, 0x2a, 0xff},
	"purple":      {0x80, 0, 0x80, 0xff},
	"transparent": {0, 0, 0, 0},
}

func parseColor(raw string) (ColorValue, errorsx.Error) {
	lower := strings.ToLower(raw)

	if named, ok := namedColors[lower]; ok {
		return named, nil
	}

	if strings.HasPrefix(lower, "#") {
		hex := lower[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return ColorValue{}, errorsx.Wrap(ErrMalformedValue, "kind", ValueKindColor.String(), "value", raw)
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return ColorValue{}, errorsx.Wrap(ErrMalformedValue, "kind", ValueKindColor.String(), "value", raw)
		}
		return ColorValue{uint8(n >> 16), uint8(n >> 8), uint8(n), 0xff}, nil
	}

	for _, prefix := range []string{"rgba(", "rgb("} {
		if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, ")") {
			continue
		}

		parts := strings.Split(lower[len(prefix):len(lower)-1], ",")
		if len(parts) != len(prefix)-1 {
			return ColorValue{}, errorsx.Wrap(ErrMalformedValue, "kind", ValueKindColor.String(), "value", raw)
		}

		c := ColorValue{A: 0xff}
		channels := []*uint8{&c.R, &c.G, &c.B}
		for i, channel := range channels {
			n, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 8)
			if err != nil {
				return ColorValue{}, errorsx.Wrap(ErrMalformedValue, "kind", ValueKindColor.String(), "value", raw)
			}
			*channel = uint8(n)
		}

		if len(parts) == 4 {
			alpha, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
			if err != nil || alpha < 0 || alpha > 1 {
				return ColorValue{}, errorsx.Wrap(ErrMalformedValue, "kind", ValueKindColor.String(), "value", raw)
			}
			c.A = uint8(alpha*255 + 0.5)
		}

		return c, nil
	}

	return ColorValue{}, errorsx.Wrap(ErrMalformedValue, "kind", ValueKindColor.String(), "value", raw)
}
