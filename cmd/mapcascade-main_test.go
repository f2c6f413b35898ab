package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	snapshot "github.com/jamesrr39/go-snapshot-testing"
	"github.com/jamesrr39/goutil/gofs/mockfs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mapcascade/styling"
	"github.com/jamesrr39/mapcascade/styling/cartocss"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testStylesheet = `
Map { map-bgcolor: #f2efe9; }
#roads { line-width: 1; line-color: #888; }
#roads[highway='primary'] { line-width: 3; }
#roads[zoom>=12] { line-width: 4; }
#roads name { text-size: 10; }
`

func init() {
	logger = logpkg.NewLogger(os.Stderr, logpkg.LogLevelWarn)
}

func compileTestRules(t *testing.T) []cascade.Rule {
	stylesheet, err := cartocss.NewParser(logger).Parse(testStylesheet)
	require.NoError(t, err)

	rules, err := cascade.NewCompiler(logger, cascade.DefaultOptions()).Compile(stylesheet.Declarations)
	require.NoError(t, err)

	return rules
}

func Test_writeRules_text(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := writeRules(buf, compileTestRules(t), formatText)
	require.NoError(t, err)

	snapshot.AssertMatchesSnapshot(t, "writeRules_text", snapshot.NewTextSnapshot(buf.String()))
}

func Test_writeRules_json(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := writeRules(buf, compileTestRules(t)[:2], formatJSON)
	require.NoError(t, err)

	assert.JSONEq(t, `[
		{"family": "map", "properties": {"map-bgcolor": "#f2efe9"}},
		{"family": "line", "maxScale": 199999, "filter": "not [highway] = 'primary'", "properties": {"line-color": "#888888", "line-width": 4}}
	]`, buf.String())

	buf.Reset()
	err = writeRules(buf, nil, formatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, buf.String())
}

func Test_writeRules_yaml(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := writeRules(buf, compileTestRules(t), formatYAML)
	require.NoError(t, err)

	type ruleDocument struct {
		Family     string                 `yaml:"family"`
		Label      string                 `yaml:"label"`
		MinScale   *int                   `yaml:"minScale"`
		MaxScale   *int                   `yaml:"maxScale"`
		Filter     string                 `yaml:"filter"`
		Properties map[string]interface{} `yaml:"properties"`
	}

	var documents []ruleDocument
	unmarshalErr := yaml.Unmarshal(buf.Bytes(), &documents)
	require.NoError(t, unmarshalErr)

	require.Len(t, documents, 6)
	assert.Equal(t, "map", documents[0].Family)
	assert.Equal(t, "#f2efe9", documents[0].Properties["map-bgcolor"])
	require.NotNil(t, documents[3].MinScale)
	assert.Equal(t, 200000, *documents[3].MinScale)
	assert.Equal(t, "not [highway] = 'primary'", documents[3].Filter)
	assert.Equal(t, "name", documents[5].Label)
}

func Test_writeRules_unknownFormat(t *testing.T) {
	err := writeRules(bytes.NewBuffer(nil), nil, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func Test_loadStyleSet(t *testing.T) {
	fs := mockfs.NewMockFs()
	require.NoError(t, fs.MkdirAll("styles", 0700))
	require.NoError(t, fs.WriteFile("styles/roads.mss", []byte(testStylesheet), 0600))

	t.Run("builtin only", func(t *testing.T) {
		styleSet, err := loadStyleSet(fs, styling.DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{cartocss.BuiltinStyleID}, styleSet.GetAllStyleIDs())
		assert.Equal(t, cartocss.BuiltinStyleID, styleSet.GetDefaultStyleID())
	})

	t.Run("styles dir", func(t *testing.T) {
		config := styling.DefaultConfig()
		config.StylesDir = "styles"
		config.DefaultStyleID = "roads"

		styleSet, err := loadStyleSet(fs, config)
		require.NoError(t, err)
		assert.Equal(t, []string{cartocss.BuiltinStyleID, "roads"}, styleSet.GetAllStyleIDs())
		assert.Equal(t, "roads", styleSet.GetDefaultStyleID())
	})

	t.Run("unknown default style", func(t *testing.T) {
		config := styling.DefaultConfig()
		config.DefaultStyleID = "missing"

		_, err := loadStyleSet(fs, config)
		require.Error(t, err)
	})
}

func Test_createServer(t *testing.T) {
	styleSet, err := loadStyleSet(mockfs.NewMockFs(), styling.DefaultConfig())
	require.NoError(t, err)

	router, err := createServer(styling.DefaultConfig(), styleSet, t.TempDir())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/styles/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"defaultStyleId": "__mapcascade_builtin", "styleIds": ["__mapcascade_builtin"]}`, w.Body.String())
}
