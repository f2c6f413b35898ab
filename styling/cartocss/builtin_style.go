package cartocss

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/mapcascade/styling/cascade"
)

const BuiltinStyleID = "__mapcascade_builtin"

const builtinStylesheet = `
Map {
	map-bgcolor: white;
}

@forest: rgb(172, 200, 160);
@minor-road: #bcaca5;
@path: #00ff00;

[natural='wood'],
[landuse='forest'] {
	polygon-fill: @forest;
}

[landuse='residential'] {
	polygon-fill: rgb(223, 223, 223);
}

[railway='rail'],
[railway='light_rail'],
[railway='tram'] {
	line-color: rgb(190, 190, 190);
	line-width: 3;
}

[highway='motorway'] { line-color: #f38d9e; }
[highway='trunk'] { line-color: #ffae9b; }
[highway='primary'], [highway='primary_link'] { line-color: #ffd4a5; }
[highway='secondary'] { line-color: #f6f9bf; }
[highway='tertiary'] { line-color: #f38d9e; }

[highway='unclassified'],
[highway='residential'],
[highway='service'],
[highway='track'] {
	line-color: @minor-road;
}

[highway='footway'], [highway='path'], [highway='steps'] {
	line-color: @path;
	line-dasharray: 1, 2, 3;
}

[highway='bridleway'], [highway='cycleway'] {
	line-color: @path;
	line-dasharray: 20, 5;
}

[place='city'],
[place='town'],
[place='village'],
[place='hamlet'],
[place='suburb'] {
	name {
		text-size: 16;
		text-fill: black;
	}
}
`

// NewBuiltinStyle compiles the style that is always available, even without a styles directory.
func NewBuiltinStyle(parser *Parser, compiler *cascade.Compiler) (*Style, errorsx.Error) {
	stylesheet, err := parser.Parse(builtinStylesheet)
	if err != nil {
		return nil, err
	}

	rules, err := compiler.Compile(stylesheet.Declarations)
	if err != nil {
		return nil, err
	}

	return NewStyle(BuiltinStyleID, rules), nil
}
