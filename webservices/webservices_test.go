package webservices

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mapcascade/styling"
	"github.com/jamesrr39/mapcascade/styling/cartocss"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logpkg.Logger {
	return logpkg.NewLogger(os.Stderr, logpkg.LogLevelWarn)
}

// newTestRouter serves a builtin and a "roads" style. compileOptions only apply to the compile service.
func newTestRouter(t *testing.T, compileOptions cascade.Options) chi.Router {
	logger := newTestLogger()
	parser := cartocss.NewParser(logger)
	compiler := cascade.NewCompiler(logger, cascade.DefaultOptions())

	builtin, err := cartocss.NewBuiltinStyle(parser, compiler)
	require.NoError(t, err)

	stylesheet, err := parser.Parse(`
#roads { line-width: 1; }
#roads[zoom>=12] { line-width: 4; }
`)
	require.NoError(t, err)

	rules, err := compiler.Compile(stylesheet.Declarations)
	require.NoError(t, err)

	styleSet, err := styling.NewStyleSet([]styling.Style{builtin, cartocss.NewStyle("roads", rules)}, cartocss.BuiltinStyleID)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(tracing.Middleware(tracing.NewTracer(bytes.NewBuffer(nil))))
	router.Route("/api/", func(r chi.Router) {
		r.Mount("/compile", NewCompileService(logger, compileOptions, 2))
		r.Mount("/styles", NewStyleService(logger, styleSet))
	})

	return router
}

func doRequest(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	router.ServeHTTP(w, r)
	return w
}

func TestCompileService(t *testing.T) {
	router := newTestRouter(t, cascade.DefaultOptions())

	type args struct {
		target string
		body   string
	}
	tests := []struct {
		name         string
		args         args
		wantCode     int
		wantJSON     string
		wantContains string
	}{
		{
			name: "whole stylesheet",
			args: args{"/api/compile/", `
#roads { line-width: 1; }
#roads[highway='primary'] { line-width: 3; }`},
			wantCode: http.StatusOK,
			wantJSON: `{"data": [
				{"family": "line", "filter": "not [highway] = 'primary'", "properties": {"line-width": 1}},
				{"family": "line", "filter": "[highway] = 'primary'", "properties": {"line-width": 3}}
			]}`,
		},
		{
			name: "one layer",
			args: args{"/api/compile/?layerId=roads&layerClass=minor", `
#roads { line-width: 1; }
#water { polygon-fill: blue; }
#roads.minor { line-width: 0.5; }`},
			wantCode: http.StatusOK,
			wantJSON: `{"data": [{"family": "line", "properties": {"line-width": 0.5}}]}`,
		},
		{
			name:     "no declarations",
			args:     args{"/api/compile/", `@unused: 1;`},
			wantCode: http.StatusOK,
			wantJSON: `{"data": []}`,
		},
		{
			name:         "parse error",
			args:         args{"/api/compile/", `#roads { line-wobble: 1; }`},
			wantCode:     http.StatusBadRequest,
			wantContains: "unknown property",
		},
		{
			name: "zoom outside mercator",
			args: args{
				"/api/compile/?" + url.Values{"srs": {"+proj=longlat +datum=WGS84"}}.Encode(),
				`#roads[zoom>5] { line-width: 1; }`,
			},
			wantCode:     http.StatusBadRequest,
			wantContains: "spherical mercator",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, tt.args.target, tt.args.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.wantJSON != "" {
				assert.JSONEq(t, tt.wantJSON, w.Body.String())
			}
			assert.Contains(t, w.Body.String(), tt.wantContains)
		})
	}
}

func TestCompileService_resourceLimit(t *testing.T) {
	options := cascade.DefaultOptions()
	options.MaxFilterCombinations = 2
	router := newTestRouter(t, options)

	w := doRequest(router, http.MethodPost, "/api/compile/", `
[a='x'] { line-width: 1; }
[b='y'] { line-width: 2; }`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "resource limit exceeded")
}

func TestStyleService(t *testing.T) {
	router := newTestRouter(t, cascade.DefaultOptions())

	t.Run("list styles", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/styles/", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"defaultStyleId": "__mapcascade_builtin", "styleIds": ["__mapcascade_builtin", "roads"]}`, w.Body.String())
	})

	t.Run("rules", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/styles/roads/rules", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data": [
			{"family": "line", "maxScale": 199999, "properties": {"line-width": 4}},
			{"family": "line", "minScale": 200000, "properties": {"line-width": 1}}
		]}`, w.Body.String())

		w = doRequest(router, http.MethodGet, "/api/styles/roads/rules?zoom=14", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data": [{"family": "line", "maxScale": 199999, "properties": {"line-width": 4}}]}`, w.Body.String())

		w = doRequest(router, http.MethodGet, "/api/styles/roads/rules?zoom=99", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(router, http.MethodGet, "/api/styles/missing/rules", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("way style", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/styles/__mapcascade_builtin/way?zoom=14&tags=highway=footway,name=Old%20Lane", "")
		require.Equal(t, http.StatusOK, w.Code)

		var wayStyle wayStyleType
		err := httpextra.DecodeJSONDataResponse(w.Body, &wayStyle)
		require.NoError(t, err)
		assert.Equal(t, "#00ff00", wayStyle.LineColor)
		assert.Equal(t, []float64{1, 2, 3}, wayStyle.LineDashPolicy)
		assert.Empty(t, wayStyle.FillColor)

		w = doRequest(router, http.MethodGet, "/api/styles/__mapcascade_builtin/way?zoom=14&tags=building=yes", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data": null}`, w.Body.String())

		w = doRequest(router, http.MethodGet, "/api/styles/__mapcascade_builtin/way?zoom=14&tags=highway", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(router, http.MethodGet, "/api/styles/__mapcascade_builtin/way?tags=highway=primary", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("node style", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/styles/__mapcascade_builtin/node?zoom=8&tags=place=city,name=Oslo", "")
		require.Equal(t, http.StatusOK, w.Code)

		var nodeStyle nodeStyleType
		err := httpextra.DecodeJSONDataResponse(w.Body, &nodeStyle)
		require.NoError(t, err)
		assert.Equal(t, "Oslo", nodeStyle.Label)
		assert.Equal(t, 16, nodeStyle.TextSize)
		assert.Equal(t, "#000000", nodeStyle.TextColor)
	})
}
