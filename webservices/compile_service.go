package webservices

import (
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mapcascade/styling/cartocss"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"github.com/jamesrr39/semaphore"
)

const maxStylesheetBytes = 4 * 1024 * 1024

// CompileService compiles posted stylesheets into flat rules.
type CompileService struct {
	logger  *logpkg.Logger
	parser  *cartocss.Parser
	options cascade.Options
	sema    *semaphore.Semaphore
	chi.Router
}

func NewCompileService(logger *logpkg.Logger, options cascade.Options, maxConcurrentCompiles uint) *CompileService {
	cs := &CompileService{
		logger,
		cartocss.NewParser(logger),
		options,
		semaphore.NewSemaphore(maxConcurrentCompiles),
		chi.NewRouter(),
	}

	cs.Post("/", cs.handlePost)

	return cs
}

// handlePost reads the stylesheet from the body. Query parameters: srs, layerId, layerClass (comma separated).
func (cs *CompileService) handlePost(w http.ResponseWriter, r *http.Request) {
	b, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxStylesheetBytes))
	if err != nil {
		errorsx.HTTPError(w, cs.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	options := cs.options
	query := r.URL.Query()
	if srs := query.Get("srs"); srs != "" {
		options.SRS = srs
	}

	parseSpan := tracing.StartSpan(r.Context(), "parse stylesheet")
	stylesheet, parseErr := cs.parser.Parse(string(b))
	parseSpan.End(r.Context())
	if parseErr != nil {
		errorsx.HTTPError(w, cs.logger, parseErr, http.StatusBadRequest)
		return
	}

	cs.sema.Add()
	defer cs.sema.Done()

	compiler := cascade.NewCompiler(cs.logger, options)

	compileSpan := tracing.StartSpan(r.Context(), "compile declarations")
	var rules []cascade.Rule
	var compileErr errorsx.Error
	layerID := query.Get("layerId")
	if layerID == "" {
		rules, compileErr = compiler.Compile(stylesheet.Declarations)
	} else {
		rules, compileErr = compiler.CompileLayer(stylesheet.Declarations, cascade.Layer{
			ID:      layerID,
			Classes: splitNonEmpty(query.Get("layerClass"), ","),
		})
	}
	compileSpan.End(r.Context())
	if compileErr != nil {
		errorsx.HTTPError(w, cs.logger, compileErr, statusCodeForCompileError(compileErr))
		return
	}

	if rules == nil {
		rules = []cascade.Rule{}
	}

	render.JSON(w, r, httpextra.DataResponse{Data: rules})
}

func statusCodeForCompileError(err errorsx.Error) int {
	switch errorsx.Cause(err) {
	case cascade.ErrResourceLimit:
		return http.StatusUnprocessableEntity
	case cascade.ErrUnsortedDeclarations:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func splitNonEmpty(s, sep string) []string {
	var items []string
	for _, item := range strings.Split(s, sep) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}
