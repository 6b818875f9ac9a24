package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/timeagnostic/internal/config"
	"github.com/roach88/timeagnostic/internal/delta"
	"github.com/roach88/timeagnostic/internal/engine"
	"github.com/roach88/timeagnostic/internal/metrics"
	"github.com/roach88/timeagnostic/internal/source"
	"github.com/roach88/timeagnostic/internal/sparql"
	"github.com/roach88/timeagnostic/internal/store"
)

var _ engine.HistoryCache = (*store.HistoryCache)(nil)

// Error code constants - unified across all CLI commands. Engine errors
// keep their own codes (NO_ANCHOR, UNSUPPORTED_QUERY, ...).
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeConfig       = "E002" // Invalid configuration
	ErrCodeNoSources    = "E003" // No dataset source configured
	ErrCodeSourceFailed = "E004" // Source file could not be loaded
	ErrCodeNotFound     = "E005" // Run or snapshot not found
	ErrCodeInvalidTime  = "E006" // Unparsable instant
	ErrCodeWriteFailed  = "E007" // Store or file write error
	ErrCodeCacheFailed  = "E008" // History cache could not be opened
)

// LoadError is a failure to assemble the sources or the engine.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code reported for err.
func ErrorCode(err error) string {
	var le *LoadError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &le):
		return le.Code
	case config.IsConfigError(err):
		return ErrCodeConfig
	case errors.Is(err, store.ErrSnapshotNotFound):
		return ErrCodeNotFound
	}
	if c := engine.CodeOf(err); c != "" {
		return string(c)
	}
	return ErrCodeGeneric
}

// Environment is everything a command needs to answer questions about
// the past: the configuration, both sources and the engine built on them.
type Environment struct {
	Config        *config.Config
	Dataset       source.GraphStore
	Provenance    source.GraphStore
	Reconstructor *engine.Reconstructor
	Engine        *engine.Engine
	Registry      *prometheus.Registry
	Logger        *slog.Logger

	cache *store.HistoryCache
}

// loadConfig reads --config when given, otherwise the defaults, and adds
// the sources named on the command line.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.Config != "" {
		cfg, err = config.Load(opts.Config)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	addSources(&cfg.Dataset, opts.Dataset)
	addSources(&cfg.Provenance, opts.Provenance)
	return cfg, nil
}

// addSources sorts command-line sources into endpoints and files.
func addSources(s *config.Sources, args []string) {
	for _, a := range args {
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			s.TriplestoreURLs = append(s.TriplestoreURLs, a)
			continue
		}
		s.FilePaths = append(s.FilePaths, a)
	}
}

// NewEnvironment opens the sources and the history cache and builds the
// engine. Close releases the cache.
func NewEnvironment(opts *RootOptions, logger *slog.Logger) (*Environment, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Dataset.Empty() {
		return nil, &LoadError{Code: ErrCodeNoSources, Message: "no dataset source: use --dataset or a config file"}
	}

	env := &Environment{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}
	env.Dataset, err = buildSource(cfg.Dataset, cfg.HTTP, logger)
	if err != nil {
		return nil, err
	}
	env.Provenance = env.Dataset
	if !cfg.Provenance.Empty() {
		env.Provenance, err = buildSource(cfg.Provenance, cfg.HTTP, logger)
		if err != nil {
			return nil, err
		}
	}
	logger.Debug("sources ready",
		"dataset", source.Describe(env.Dataset),
		"provenance", source.Describe(env.Provenance),
	)

	m := metrics.New(env.Registry)
	deltas, err := delta.NewCache(delta.NewParser(
		delta.WithBatchSize(cfg.Engine.BatchSize),
		delta.WithMinBatchSize(cfg.Engine.MinBatchSize),
		delta.WithLogger(logger),
	), cfg.Engine.DeltaCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create delta cache: %w", err)
	}
	recOpts := []engine.ReconstructorOption{
		engine.WithDeltaCache(deltas),
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithReconstructorLogger(logger),
		engine.WithReconstructorMetrics(m),
	}
	if cfg.Cache.Path != "" {
		c, err := store.OpenHistoryCache(store.HistoryCacheConfig{
			Path:   cfg.Cache.Path,
			TTL:    cfg.Cache.TTL,
			Logger: logger,
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeCacheFailed, Message: "open history cache", Err: err}
		}
		env.cache = c
		recOpts = append(recOpts, engine.WithHistoryCache(c))
	}
	env.Reconstructor = engine.NewReconstructor(env.Dataset, env.Provenance, recOpts...)

	qe := sparql.New(
		sparql.WithLiteralCoercion(cfg.Engine.LiteralCoercion),
		sparql.WithCacheSize(cfg.Engine.QueryCacheSize),
	)
	env.Engine = engine.New(env.Reconstructor, qe,
		engine.WithMaxRounds(cfg.Engine.MaxRounds),
		engine.WithRunIDGenerator(opts.RunIDs),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
	)
	return env, nil
}

// Close releases the history cache.
func (e *Environment) Close() error {
	if e == nil || e.cache == nil {
		return nil
	}
	return e.cache.Close()
}

// LogMetrics writes the counters gathered so far at debug level.
func (e *Environment) LogMetrics() {
	families, err := e.Registry.Gather()
	if err != nil {
		e.Logger.Debug("gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				args := []any{"name", mf.GetName(), "value", c.GetValue()}
				for _, lp := range m.GetLabel() {
					args = append(args, lp.GetName(), lp.GetValue())
				}
				e.Logger.Debug("metric", args...)
			}
		}
	}
}

func buildSource(s config.Sources, h config.HTTP, logger *slog.Logger) (source.GraphStore, error) {
	var stores source.Multi
	if len(s.FilePaths) > 0 {
		m, err := source.NewMemoryFromFiles(s.FilePaths...)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeSourceFailed, Message: "load source files", Err: err}
		}
		logger.Debug("loaded source files", "files", len(s.FilePaths), "quads", m.Len())
		stores = append(stores, m)
	}
	for _, u := range s.TriplestoreURLs {
		stores = append(stores, source.NewEndpoint(u,
			source.WithHTTPClient(&http.Client{Timeout: h.Timeout}),
			source.WithRateLimit(h.RequestsPerSecond, h.Burst),
			source.WithEndpointLogger(logger),
		))
	}
	if len(stores) == 1 {
		return stores[0], nil
	}
	return stores, nil
}

// newLogger builds the text logger for diagnostic output.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// commandContext is the command's context, cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newFormatter builds the output formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// setup prepares the formatter, logger and environment shared by the
// commands that read sources.
func setup(opts *RootOptions, cmd *cobra.Command) (*OutputFormatter, *Environment, error) {
	f := newFormatter(opts, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	env, err := NewEnvironment(opts, logger)
	if err != nil {
		return f, nil, f.Fail(ExitCommandError, "failed to load sources", err)
	}
	return f, env, nil
}
