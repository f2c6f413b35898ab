package cascade

import (
	"math"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

const (
	ZoomProperty             = "zoom"
	ScaleDenominatorProperty = "scale-denominator"

	WebMercatorSRS = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs +over"

	MinZoomLevel = 1
	MaxZoomLevel = 22
)

type scaleBounds struct {
	min, max float64
}

// zoomScales maps a zoom level to the scale denominators it covers, min inclusive and max exclusive.
var zoomScales = map[int]scaleBounds{
	1:  {200000000, 500000000},
	2:  {100000000, 200000000},
	3:  {50000000, 100000000},
	4:  {25000000, 50000000},
	5:  {12500000, 25000000},
	6:  {6500000, 12500000},
	7:  {3000000, 6500000},
	8:  {1500000, 3000000},
	9:  {750000, 1500000},
	10: {400000, 750000},
	11: {200000, 400000},
	12: {100000, 200000},
	13: {50000, 100000},
	14: {25000, 50000},
	15: {12500, 25000},
	16: {5000, 12500},
	17: {2500, 5000},
	18: {1000, 2500},
	19: {500, 1000},
	20: {250, 500},
	21: {100, 250},
	22: {50, 100},
}

// IsWebMercator reports whether zoom levels can be converted to scale denominators in this projection.
func IsWebMercator(srs string) bool {
	normalized := strings.ToLower(strings.TrimSpace(srs))
	switch normalized {
	case "epsg:3857", "epsg:900913", "+init=epsg:3857", "+init=epsg:900913":
		return true
	}

	params := make(map[string]string)
	for _, field := range strings.Fields(normalized) {
		key, value, _ := strings.Cut(field, "=")
		params[key] = value
	}

	return params["+proj"] == "merc" && params["+a"] == "6378137" && params["+b"] == "6378137"
}

// ScaleDenominatorForZoom returns a scale denominator that falls inside the given zoom level.
func ScaleDenominatorForZoom(zoom int) (float64, errorsx.Error) {
	bounds, ok := zoomScales[zoom]
	if !ok {
		return 0, errorsx.Wrap(ErrMalformedTest, "zoom", zoom, "reason", "zoom level out of range")
	}

	return (bounds.min + bounds.max) / 2, nil
}

func convertZoomTest(test Test) ([]Test, errorsx.Error) {
	number, ok := test.Value.(NumberValue)
	if !ok || float64(number) != math.Trunc(float64(number)) {
		return nil, errorsx.Wrap(ErrMalformedTest, "test", test.String(), "reason", "zoom level must be an integer")
	}

	bounds, ok := zoomScales[int(number)]
	if !ok {
		return nil, errorsx.Wrap(ErrMalformedTest, "test", test.String(), "reason", "zoom level out of range")
	}

	scaleTest := func(op Operator, edge float64) Test {
		return Test{ScaleDenominatorProperty, op, NumberValue(edge)}
	}

	switch test.Op {
	case OperatorEquals:
		return []Test{
			scaleTest(OperatorGreaterThanOrEqualTo, bounds.min),
			scaleTest(OperatorLessThan, bounds.max),
		}, nil
	case OperatorLessThan:
		return []Test{scaleTest(OperatorGreaterThanOrEqualTo, bounds.max)}, nil
	case OperatorLessThanOrEqualTo:
		return []Test{scaleTest(OperatorGreaterThanOrEqualTo, bounds.min)}, nil
	case OperatorGreaterThanOrEqualTo:
		return []Test{scaleTest(OperatorLessThan, bounds.max)}, nil
	case OperatorGreaterThan:
		return []Test{scaleTest(OperatorLessThan, bounds.min)}, nil
	}

	return nil, errorsx.Wrap(ErrMalformedTest, "test", test.String(), "reason", "operator not supported for zoom levels")
}
