package styling

import (
	"image/color"
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/osm"
)

// ZoomLevel is a spherical mercator zoom level. Styles turn it into a scale
// denominator before matching compiled rules.
type ZoomLevel int

// ItemStyle is a resolved style a renderer can stack by z-index.
type ItemStyle interface {
	GetZIndex() int
}

// WayStyle is what the polygon and line rules matching one way resolve to.
// A nil color means the family set nothing for it.
type WayStyle struct {
	FillColor      color.Color
	LineColor      color.Color
	LineDashPolicy []float64
	LineWidth      float64
	// ZIndex is 1 + the position of the last compiled rule that matched
	ZIndex int
}

func (ws *WayStyle) GetZIndex() int {
	return ws.ZIndex
}

// NodeStyle is the text rule a node's label resolves to.
type NodeStyle struct {
	Label     string
	TextSize  int
	TextColor color.Color
	ZIndex    int
}

func (ns *NodeStyle) GetZIndex() int {
	return ns.ZIndex
}

// Style answers renderer queries from one compiled stylesheet. A nil style with
// a nil error means no rule selects the feature at that zoom.
type Style interface {
	GetNodeStyle(tags osm.Tags, zoomLevel ZoomLevel) (*NodeStyle, errorsx.Error)
	GetWayStyle(tags osm.Tags, zoomLevel ZoomLevel) (*WayStyle, errorsx.Error)
	GetBackground() color.Color
	GetStyleID() string
}

// StyleSet is every compiled style the server can answer for, keyed by ID.
type StyleSet struct {
	byID           map[string]Style
	defaultStyleID string
}

// NewStyleSet fails on duplicate IDs, and when no style carries defaultStyleID.
func NewStyleSet(styles []Style, defaultStyleID string) (*StyleSet, errorsx.Error) {
	byID := make(map[string]Style, len(styles))
	for _, style := range styles {
		styleID := style.GetStyleID()
		if _, ok := byID[styleID]; ok {
			return nil, errorsx.Errorf("two stylesheets compile to the same style ID: %q", styleID)
		}
		byID[styleID] = style
	}

	if _, ok := byID[defaultStyleID]; !ok {
		return nil, errorsx.Errorf("default style ID %q is not one of the compiled styles", defaultStyleID)
	}

	return &StyleSet{byID, defaultStyleID}, nil
}

// GetStyleByID returns nil for an unknown ID.
func (s *StyleSet) GetStyleByID(id string) Style {
	return s.byID[id]
}

func (s *StyleSet) GetDefaultStyle() Style {
	return s.byID[s.defaultStyleID]
}

func (s *StyleSet) GetDefaultStyleID() string {
	return s.defaultStyleID
}

// GetAllStyleIDs lists the IDs alphabetically, so responses are stable.
func (s *StyleSet) GetAllStyleIDs() []string {
	styleIDs := make([]string, 0, len(s.byID))
	for id := range s.byID {
		styleIDs = append(styleIDs, id)
	}
	sort.Strings(styleIDs)

	return styleIDs
}
