package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mapcascade/styling"
	"github.com/jamesrr39/mapcascade/styling/cartocss"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"github.com/jamesrr39/mapcascade/webservices"
	"github.com/pkg/profile"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_PORT = 9000

	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var logger *logpkg.Logger

func main() {
	verbose := kingpin.Flag("v", "verbose logging").Bool()
	kingpin.CommandLine.PreAction(func(ctx *kingpin.ParseContext) error {
		logLevel := logpkg.LogLevelInfo
		if *verbose {
			logLevel = logpkg.LogLevelDebug
		}
		logger = logpkg.NewLogger(os.Stderr, logLevel)
		return nil
	})

	setupCompile()
	setupServe()

	kingpin.Parse()
}

func loadConfig(fs gofs.Fs, configPath string) (styling.Config, errorsx.Error) {
	if configPath == "" {
		return styling.DefaultConfig(), nil
	}

	return styling.LoadConfig(fs, configPath)
}

func setupCompile() {
	cmd := kingpin.Command("compile", "compile a stylesheet into flat rules")
	filePath := cmd.Arg("file", "stylesheet to compile").Required().String()
	configPath := cmd.Flag("config", "path to a YAML config file").String()
	srs := cmd.Flag("srs", "map projection (defaults to spherical mercator)").String()
	layerID := cmd.Flag("layer-id", "only compile declarations that apply to this layer").String()
	layerClasses := cmd.Flag("layer-class", "class of the layer given with --layer-id").Strings()
	format := cmd.Flag("format", "output format").Default(formatText).Enum(formatText, formatJSON, formatYAML)
	shouldProfile := cmd.Flag("profile", "profile the compile performance").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		run := func() errorsx.Error {
			if *shouldProfile {
				defer profile.Start(profile.CPUProfile).Stop()
			}

			fs := gofs.NewOsFs()

			config, err := loadConfig(fs, *configPath)
			if err != nil {
				return errorsx.Wrap(err)
			}

			if *srs != "" {
				config.Compiler.SRS = *srs
			}

			b, readErr := fs.ReadFile(*filePath)
			if readErr != nil {
				return errorsx.Wrap(readErr, "path", *filePath)
			}

			startTime := time.Now()

			stylesheet, err := cartocss.NewParser(logger).Parse(string(b))
			if err != nil {
				return errorsx.Wrap(err, "path", *filePath)
			}

			compiler := cascade.NewCompiler(logger, config.Compiler)

			var rules []cascade.Rule
			if *layerID == "" {
				rules, err = compiler.Compile(stylesheet.Declarations)
			} else {
				rules, err = compiler.CompileLayer(stylesheet.Declarations, cascade.Layer{ID: *layerID, Classes: *layerClasses})
			}
			if err != nil {
				return errorsx.Wrap(err, "path", *filePath)
			}

			logger.Info("compiled %d declarations into %d rules in %s", len(stylesheet.Declarations), len(rules), time.Since(startTime))

			return writeRules(os.Stdout, rules, *format)
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

func writeRules(w io.Writer, rules []cascade.Rule, format string) errorsx.Error {
	if rules == nil {
		rules = []cascade.Rule{}
	}

	switch format {
	case formatText:
		for _, rule := range rules {
			_, err := fmt.Fprintln(w, rule.String())
			if err != nil {
				return errorsx.Wrap(err)
			}
		}
		return nil
	case formatJSON:
		b, err := json.MarshalIndent(rules, "", "\t")
		if err != nil {
			return errorsx.Wrap(err)
		}
		_, err = fmt.Fprintln(w, string(b))
		if err != nil {
			return errorsx.Wrap(err)
		}
		return nil
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		err := encoder.Encode(rules)
		if err != nil {
			return errorsx.Wrap(err)
		}
		return nil
	default:
		return errorsx.Errorf("unknown format: %q", format)
	}
}

var addrHelp = fmt.Sprintf(
	`address to serve on. Ex: ':%d' listen on port %d to traffic from anywhere. 'localhost:%d' listen on port %d to traffic from localhost`,
	DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT,
)

func setupServe() {
	cmd := kingpin.Command("serve", "serve webserver")
	addr := cmd.Flag("addr", addrHelp).Default(fmt.Sprintf(":%d", DEFAULT_PORT)).String()
	configPath := cmd.Flag("config", "path to a YAML config file").String()
	stylesDir := cmd.Flag("styles-dir", "directory of .mss/.css stylesheets to serve").String()
	defaultStyleID := cmd.Flag("default-style-id", "style used when none is requested").String()
	traceDir := cmd.Flag("trace-dir", "directory to write request traces to (defaults to a temporary directory)").String()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		run := func() errorsx.Error {
			fs := gofs.NewOsFs()

			config, err := loadConfig(fs, *configPath)
			if err != nil {
				return errorsx.Wrap(err)
			}

			if *stylesDir != "" {
				config.StylesDir = *stylesDir
			}
			if *defaultStyleID != "" {
				config.DefaultStyleID = *defaultStyleID
			}

			styleSet, err := loadStyleSet(fs, config)
			if err != nil {
				return errorsx.Wrap(err)
			}

			router, err := createServer(config, styleSet, *traceDir)
			if err != nil {
				return errorsx.Wrap(err)
			}

			server := httpextra.NewServerWithTimeouts()
			server.Addr = *addr
			server.Handler = router

			logger.Info("about to start serving on %q", *addr)

			serveErr := server.ListenAndServe()
			if serveErr != nil {
				return errorsx.Wrap(serveErr)
			}
			return nil
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

func loadStyleSet(fs gofs.Fs, config styling.Config) (*styling.StyleSet, errorsx.Error) {
	parser := cartocss.NewParser(logger)
	compiler := cascade.NewCompiler(logger, config.Compiler)

	builtin, err := cartocss.NewBuiltinStyle(parser, compiler)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	styles := []styling.Style{builtin}
	if config.StylesDir != "" {
		loaded, err := cartocss.LoadStylesFromDir(fs, config.StylesDir, parser, compiler)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		for _, style := range loaded {
			logger.Info("loaded style %q (%d rules)", style.GetStyleID(), len(style.Rules()))
			styles = append(styles, style)
		}
	}

	defaultStyleID := config.DefaultStyleID
	if defaultStyleID == "" {
		defaultStyleID = cartocss.BuiltinStyleID
	}

	return styling.NewStyleSet(styles, defaultStyleID)
}

func createServer(config styling.Config, styleSet *styling.StyleSet, traceDirPath string) (chi.Router, errorsx.Error) {
	var err error
	if traceDirPath == "" {
		traceDirPath, err = os.MkdirTemp("", "mapcascade-trace")
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	traceFilePath := filepath.Join(traceDirPath, fmt.Sprintf("trace_%s.pbf", time.Now().Format("2006-01-02__03_04_05")))
	logger.Info("tracing at %q", traceFilePath)

	traceFile, err := os.Create(traceFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	tracer := tracing.NewTracer(traceFile)

	router := chi.NewRouter()
	router.Use(middleware.DefaultLogger)
	router.Use(tracing.Middleware(tracer))
	router.Route("/api/", func(r chi.Router) {
		r.Mount("/compile", webservices.NewCompileService(logger, config.Compiler, config.MaxConcurrentCompiles))
		r.Mount("/styles", webservices.NewStyleService(logger, styleSet))
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router, nil
}
