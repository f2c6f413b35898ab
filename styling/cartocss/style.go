package cartocss

import (
	"image/color"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/mapcascade/styling"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"github.com/paulmach/osm"
)

var StylesheetExtensions = []string{".mss", ".css"}

var (
	_ styling.Style = &Style{}
)

// Style answers renderer queries from compiled rules. The whole stylesheet is
// compiled as one layer.
type Style struct {
	styleID    string
	rules      []cascade.Rule
	background color.Color
}

func NewStyle(styleID string, rules []cascade.Rule) *Style {
	var background color.Color = color.White
	for _, rule := range rules {
		if rule.Family != cascade.FamilyMap || rule.Filter.Len() != 0 {
			continue
		}
		if c, ok := rule.Properties["map-bgcolor"].(cascade.ColorValue); ok {
			background = c.Color()
		}
	}

	return &Style{styleID, rules, background}
}

func (s *Style) Rules() []cascade.Rule {
	return s.rules
}

func (s *Style) GetStyleID() string {
	return s.styleID
}

func (s *Style) GetBackground() color.Color {
	return s.background
}

func tagLookup(tags osm.Tags) cascade.AttributeLookup {
	return func(property string) (string, bool) {
		for _, tag := range tags {
			if tag.Key == property {
				return tag.Value, true
			}
		}
		return "", false
	}
}

// GetWayStyle combines the polygon and line rules matching the tags. The z-index
// is the position of the last matching rule.
func (s *Style) GetWayStyle(tags osm.Tags, zoomLevel styling.ZoomLevel) (*styling.WayStyle, errorsx.Error) {
	scaleDenominator, err := cascade.ScaleDenominatorForZoom(int(zoomLevel))
	if err != nil {
		return nil, err
	}

	lookup := tagLookup(tags)

	var wayStyle *styling.WayStyle
	for i, rule := range s.rules {
		if rule.Family != cascade.FamilyPolygon && rule.Family != cascade.FamilyLine {
			continue
		}
		if !rule.Matches(lookup, scaleDenominator) {
			continue
		}

		if wayStyle == nil {
			wayStyle = new(styling.WayStyle)
		}
		wayStyle.ZIndex = i + 1

		switch rule.Family {
		case cascade.FamilyPolygon:
			if fill, ok := rule.Properties["polygon-fill"].(cascade.ColorValue); ok {
				wayStyle.FillColor = fill.Color()
			}
		case cascade.FamilyLine:
			if lineColor, ok := rule.Properties["line-color"].(cascade.ColorValue); ok {
				wayStyle.LineColor = lineColor.Color()
			}
			if width, ok := rule.Properties["line-width"].(cascade.NumberValue); ok {
				wayStyle.LineWidth = float64(width)
			}
			if dashes, ok := rule.Properties["line-dasharray"].(cascade.ListValue); ok {
				wayStyle.LineDashPolicy = dashPolicy(dashes)
			}
		}
	}

	return wayStyle, nil
}

func dashPolicy(dashes cascade.ListValue) []float64 {
	var policy []float64
	for _, dash := range dashes {
		if n, ok := dash.(cascade.NumberValue); ok {
			policy = append(policy, float64(n))
		}
	}
	return policy
}

// GetNodeStyle returns the text style of the first matching text rule whose label tag is present.
func (s *Style) GetNodeStyle(tags osm.Tags, zoomLevel styling.ZoomLevel) (*styling.NodeStyle, errorsx.Error) {
	scaleDenominator, err := cascade.ScaleDenominatorForZoom(int(zoomLevel))
	if err != nil {
		return nil, err
	}

	lookup := tagLookup(tags)

	for i, rule := range s.rules {
		if rule.Family != cascade.FamilyText {
			continue
		}
		label, ok := lookup(rule.Label)
		if !ok || label == "" {
			continue
		}
		if !rule.Matches(lookup, scaleDenominator) {
			continue
		}

		nodeStyle := &styling.NodeStyle{
			Label:     label,
			TextColor: color.Black,
			ZIndex:    i + 1,
		}
		if size, ok := rule.Properties["text-size"].(cascade.NumberValue); ok {
			nodeStyle.TextSize = int(size)
		}
		if fill, ok := rule.Properties["text-fill"].(cascade.ColorValue); ok {
			nodeStyle.TextColor = fill.Color()
		}
		return nodeStyle, nil
	}

	return nil, nil
}

// LoadStyle reads, parses and compiles one stylesheet. The style ID is the file name without its extension.
func LoadStyle(fs gofs.Fs, path string, parser *Parser, compiler *cascade.Compiler) (*Style, errorsx.Error) {
	b, err := fs.ReadFile(path)
	if err != nil {
		return nil, errorsx.Wrap(err, "path", path)
	}

	stylesheet, parseErr := parser.Parse(string(b))
	if parseErr != nil {
		return nil, errorsx.Wrap(parseErr, "path", path)
	}

	rules, compileErr := compiler.Compile(stylesheet.Declarations)
	if compileErr != nil {
		return nil, errorsx.Wrap(compileErr, "path", path)
	}

	name := filepath.Base(path)
	styleID := strings.TrimSuffix(name, filepath.Ext(name))

	return NewStyle(styleID, rules), nil
}

// LoadStylesFromDir loads every stylesheet directly inside dirPath, sorted by file name.
func LoadStylesFromDir(fs gofs.Fs, dirPath string, parser *Parser, compiler *cascade.Compiler) ([]*Style, errorsx.Error) {
	fileInfos, err := fs.ReadDir(dirPath)
	if err != nil {
		return nil, errorsx.Wrap(err, "dirPath", dirPath)
	}

	sort.Slice(fileInfos, func(i, j int) bool {
		return fileInfos[i].Name() < fileInfos[j].Name()
	})

	var styles []*Style
	for _, fileInfo := range fileInfos {
		if fileInfo.IsDir() || !isStylesheet(fileInfo.Name()) {
			continue
		}

		style, err := LoadStyle(fs, filepath.Join(dirPath, fileInfo.Name()), parser, compiler)
		if err != nil {
			return nil, err
		}

		styles = append(styles, style)
	}

	return styles, nil
}

func isStylesheet(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, stylesheetExt := range StylesheetExtensions {
		if ext == stylesheetExt {
			return true
		}
	}
	return false
}
