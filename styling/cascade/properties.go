package cascade

import (
	"github.com/jamesrr39/goutil/errorsx"
)

const (
	FamilyMap            = "map"
	FamilyPolygon        = "polygon"
	FamilyLine           = "line"
	FamilyOutline        = "outline"
	FamilyInline         = "inline"
	FamilyPolygonPattern = "polygon-pattern"
	FamilyLinePattern    = "line-pattern"
	FamilyText           = "text"
	FamilyShield         = "shield"
	FamilyPoint          = "point"
	FamilyBuilding       = "building"
	FamilyRaster         = "raster"

	// DisplayProperty applies to every family; display: none suppresses output.
	DisplayProperty = "display"
	DisplayNone     = "none"
)

// Families lists symbolizer families in the order their rules are emitted.
var Families = []string{
	FamilyMap,
	FamilyPolygon,
	FamilyLine,
	FamilyOutline,
	FamilyInline,
	FamilyPolygonPattern,
	FamilyLinePattern,
	FamilyText,
	FamilyShield,
	FamilyPoint,
	FamilyBuilding,
	FamilyRaster,
}

// IsLabelledFamily reports whether rules of the family are grouped by the label field.
func IsLabelledFamily(family string) bool {
	return family == FamilyText || family == FamilyShield
}

type PropertyDefinition struct {
	Name   string
	Kind   ValueKind
	Family string
	// Keywords restricts string values when non-empty.
	Keywords []string
}

var (
	lineJoins     = []string{"miter", "round", "bevel"}
	lineCaps      = []string{"butt", "round", "square"}
	placements    = []string{"point", "line"}
	imageTypes    = []string{"png", "jpeg", "tiff"}
	rasterModes   = []string{"normal", "grain_merge", "grain_merge2", "multiply", "multiply2", "divide", "divide2", "screen", "hard_light"}
	rasterScaling = []string{"fast", "bilinear", "bilinear8"}
)

func strokeProperties(family string) []PropertyDefinition {
	return []PropertyDefinition{
		{family + "-color", ValueKindColor, family, nil},
		{family + "-width", ValueKindNumber, family, nil},
		{family + "-opacity", ValueKindNumber, family, nil},
		{family + "-join", ValueKindString, family, lineJoins},
		{family + "-cap", ValueKindString, family, lineCaps},
		{family + "-dasharray", ValueKindList, family, nil},
	}
}

func patternProperties(family string) []PropertyDefinition {
	return []PropertyDefinition{
		{family + "-file", ValueKindString, family, nil},
		{family + "-width", ValueKindNumber, family, nil},
		{family + "-height", ValueKindNumber, family, nil},
		{family + "-type", ValueKindString, family, imageTypes},
	}
}

func buildPropertyTable() map[string]PropertyDefinition {
	var defs []PropertyDefinition

	defs = append(defs,
		PropertyDefinition{"map-bgcolor", ValueKindColor, FamilyMap, nil},

		PropertyDefinition{"polygon-fill", ValueKindColor, FamilyPolygon, nil},
		PropertyDefinition{"polygon-gamma", ValueKindNumber, FamilyPolygon, nil},
		PropertyDefinition{"polygon-opacity", ValueKindNumber, FamilyPolygon, nil},
	)

	defs = append(defs, strokeProperties(FamilyLine)...)
	defs = append(defs, strokeProperties(FamilyOutline)...)
	defs = append(defs, strokeProperties(FamilyInline)...)
	defs = append(defs, patternProperties(FamilyPolygonPattern)...)
	defs = append(defs, patternProperties(FamilyLinePattern)...)

	defs = append(defs,
		PropertyDefinition{"text-face-name", ValueKindString, FamilyText, nil},
		PropertyDefinition{"text-size", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-ratio", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-wrap-width", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-spacing", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-label-position-tolerance", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-max-char-angle-delta", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-fill", ValueKindColor, FamilyText, nil},
		PropertyDefinition{"text-halo-fill", ValueKindColor, FamilyText, nil},
		PropertyDefinition{"text-halo-radius", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-dx", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-dy", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-avoid-edges", ValueKindBoolean, FamilyText, nil},
		PropertyDefinition{"text-min-distance", ValueKindNumber, FamilyText, nil},
		PropertyDefinition{"text-allow-overlap", ValueKindBoolean, FamilyText, nil},
		PropertyDefinition{"text-placement", ValueKindString, FamilyText, placements},

		PropertyDefinition{"shield-face-name", ValueKindString, FamilyShield, nil},
		PropertyDefinition{"shield-size", ValueKindNumber, FamilyShield, nil},
		PropertyDefinition{"shield-fill", ValueKindColor, FamilyShield, nil},
		PropertyDefinition{"shield-file", ValueKindString, FamilyShield, nil},
		PropertyDefinition{"shield-width", ValueKindNumber, FamilyShield, nil},
		PropertyDefinition{"shield-height", ValueKindNumber, FamilyShield, nil},
		PropertyDefinition{"shield-type", ValueKindString, FamilyShield, imageTypes},
		PropertyDefinition{"shield-min-distance", ValueKindNumber, FamilyShield, nil},
		PropertyDefinition{"shield-spacing", ValueKindNumber, FamilyShield, nil},

		PropertyDefinition{"point-file", ValueKindString, FamilyPoint, nil},
		PropertyDefinition{"point-width", ValueKindNumber, FamilyPoint, nil},
		PropertyDefinition{"point-height", ValueKindNumber, FamilyPoint, nil},
		PropertyDefinition{"point-type", ValueKindString, FamilyPoint, imageTypes},
		PropertyDefinition{"point-allow-overlap", ValueKindBoolean, FamilyPoint, nil},

		PropertyDefinition{"building-fill", ValueKindColor, FamilyBuilding, nil},
		PropertyDefinition{"building-fill-opacity", ValueKindNumber, FamilyBuilding, nil},
		PropertyDefinition{"building-height", ValueKindNumber, FamilyBuilding, nil},

		PropertyDefinition{"raster-opacity", ValueKindNumber, FamilyRaster, nil},
		PropertyDefinition{"raster-mode", ValueKindString, FamilyRaster, rasterModes},
		PropertyDefinition{"raster-scaling", ValueKindString, FamilyRaster, rasterScaling},

		PropertyDefinition{DisplayProperty, ValueKindString, "", []string{DisplayNone, "map"}},
	)

	table := make(map[string]PropertyDefinition, len(defs))
	for _, def := range defs {
		table[def.Name] = def
	}
	return table
}

var propertyTable = buildPropertyTable()

func LookupProperty(name string) (PropertyDefinition, bool) {
	def, ok := propertyTable[name]
	return def, ok
}

// ValidateValue checks that value is of the property's kind and, for
// keyword-restricted strings, is one of the allowed keywords.
func (def PropertyDefinition) ValidateValue(value Value) errorsx.Error {
	if value == nil || value.Kind() != def.Kind {
		var got string
		if value != nil {
			got = value.Kind().String()
		}
		return errorsx.Wrap(ErrMalformedValue, "property", def.Name, "expected", def.Kind.String(), "got", got)
	}

	if len(def.Keywords) == 0 {
		return nil
	}

	s := value.(StringValue)
	for _, keyword := range def.Keywords {
		if string(s) == keyword {
			return nil
		}
	}

	return errorsx.Wrap(ErrMalformedValue, "property", def.Name, "value", string(s), "allowed", def.Keywords)
}

// ParseValue reads and validates a raw value for this property.
func (def PropertyDefinition) ParseValue(raw string) (Value, errorsx.Error) {
	value, err := ParseValue(def.Kind, raw)
	if err != nil {
		return nil, errorsx.Wrap(err, "property", def.Name)
	}

	err = def.ValidateValue(value)
	if err != nil {
		return nil, err
	}

	return value, nil
}
