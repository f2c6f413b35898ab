package webservices

import (
	"fmt"
	"image/color"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mapcascade/styling"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"github.com/paulmach/osm"
)

func NewStyleService(logger *logpkg.Logger, styleSet *styling.StyleSet) *StyleService {
	ws := &StyleService{logger, styleSet, chi.NewRouter()}
	ws.Get("/", ws.handleGet)
	ws.Get("/{styleID}/rules", ws.handleGetRules)
	ws.Get("/{styleID}/way", ws.handleGetWayStyle)
	ws.Get("/{styleID}/node", ws.handleGetNodeStyle)

	return ws
}

type StyleService struct {
	logger   *logpkg.Logger
	styleSet *styling.StyleSet
	chi.Router
}

type rulesProvider interface {
	Rules() []cascade.Rule
}

type stylesType struct {
	DefaultStyleID string   `json:"defaultStyleId"`
	StyleIDs       []string `json:"styleIds"`
}

func (ws *StyleService) handleGet(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, stylesType{
		ws.styleSet.GetDefaultStyleID(),
		ws.styleSet.GetAllStyleIDs(),
	})
}

func (ws *StyleService) getStyle(w http.ResponseWriter, r *http.Request) (styling.Style, bool) {
	styleID := chi.URLParam(r, "styleID")
	style := ws.styleSet.GetStyleByID(styleID)
	if style == nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Errorf("couldn't get requested style %q (style not loaded)", styleID), http.StatusNotFound)
		return nil, false
	}

	return style, true
}

// handleGetRules lists the compiled rules. With ?zoom= only the rules drawn at that zoom level are listed.
func (ws *StyleService) handleGetRules(w http.ResponseWriter, r *http.Request) {
	style, ok := ws.getStyle(w, r)
	if !ok {
		return
	}

	provider, ok := style.(rulesProvider)
	if !ok {
		errorsx.HTTPError(w, ws.logger, errorsx.Errorf("style %q does not expose its rules", style.GetStyleID()), http.StatusNotImplemented)
		return
	}

	rules := provider.Rules()

	zoomStr := r.URL.Query().Get("zoom")
	if zoomStr != "" {
		zoom, err := strconv.Atoi(zoomStr)
		if err != nil {
			errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err, "zoom", zoomStr), http.StatusBadRequest)
			return
		}

		rules, err = rulesAtZoom(rules, zoom)
		if err != nil {
			errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), http.StatusBadRequest)
			return
		}
	}

	if rules == nil {
		rules = []cascade.Rule{}
	}

	render.JSON(w, r, httpextra.DataResponse{Data: rules})
}

func rulesAtZoom(rules []cascade.Rule, zoom int) ([]cascade.Rule, errorsx.Error) {
	scaleDenominator, err := cascade.ScaleDenominatorForZoom(zoom)
	if err != nil {
		return nil, err
	}

	var matching []cascade.Rule
	for _, rule := range rules {
		if rule.MinScale != nil && scaleDenominator < float64(*rule.MinScale) {
			continue
		}
		if rule.MaxScale != nil && scaleDenominator > float64(*rule.MaxScale) {
			continue
		}
		matching = append(matching, rule)
	}
	return matching, nil
}

// parseFeatureQuery reads ?zoom=14&tags=highway=primary,name=High%20Street
func parseFeatureQuery(r *http.Request) (osm.Tags, styling.ZoomLevel, errorsx.Error) {
	query := r.URL.Query()

	zoom, err := strconv.Atoi(query.Get("zoom"))
	if err != nil {
		return nil, 0, errorsx.Wrap(err, "zoom", query.Get("zoom"))
	}

	var tags osm.Tags
	for _, pair := range splitNonEmpty(query.Get("tags"), ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, 0, errorsx.Errorf("expected a key=value tag, but got %q", pair)
		}
		tags = append(tags, osm.Tag{Key: key, Value: value})
	}

	return tags, styling.ZoomLevel(zoom), nil
}

type wayStyleType struct {
	FillColor      string    `json:"fillColor,omitempty"`
	LineColor      string    `json:"lineColor,omitempty"`
	LineWidth      float64   `json:"lineWidth,omitempty"`
	LineDashPolicy []float64 `json:"lineDashPolicy,omitempty"`
	ZIndex         int       `json:"zIndex"`
}

type nodeStyleType struct {
	Label     string `json:"label"`
	TextSize  int    `json:"textSize"`
	TextColor string `json:"textColor"`
	ZIndex    int    `json:"zIndex"`
}

func colorToHex(c color.Color) string {
	if c == nil {
		return ""
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}

// handleGetWayStyle responds with {"data": null} when the way is not drawn.
func (ws *StyleService) handleGetWayStyle(w http.ResponseWriter, r *http.Request) {
	style, ok := ws.getStyle(w, r)
	if !ok {
		return
	}

	tags, zoomLevel, err := parseFeatureQuery(r)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, err, http.StatusBadRequest)
		return
	}

	wayStyle, err := style.GetWayStyle(tags, zoomLevel)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, err, http.StatusBadRequest)
		return
	}

	if wayStyle == nil {
		render.JSON(w, r, httpextra.DataResponse{})
		return
	}

	render.JSON(w, r, httpextra.DataResponse{Data: wayStyleType{
		FillColor:      colorToHex(wayStyle.FillColor),
		LineColor:      colorToHex(wayStyle.LineColor),
		LineWidth:      wayStyle.LineWidth,
		LineDashPolicy: wayStyle.LineDashPolicy,
		ZIndex:         wayStyle.ZIndex,
	}})
}

func (ws *StyleService) handleGetNodeStyle(w http.ResponseWriter, r *http.Request) {
	style, ok := ws.getStyle(w, r)
	if !ok {
		return
	}

	tags, zoomLevel, err := parseFeatureQuery(r)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, err, http.StatusBadRequest)
		return
	}

	nodeStyle, err := style.GetNodeStyle(tags, zoomLevel)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, err, http.StatusBadRequest)
		return
	}

	if nodeStyle == nil {
		render.JSON(w, r, httpextra.DataResponse{})
		return
	}

	render.JSON(w, r, httpextra.DataResponse{Data: nodeStyleType{
		Label:     nodeStyle.Label,
		TextSize:  nodeStyle.TextSize,
		TextColor: colorToHex(nodeStyle.TextColor),
		ZIndex:    nodeStyle.ZIndex,
	}})
}
