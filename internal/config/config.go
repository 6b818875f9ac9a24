// Package config loads the settings of the time-agnostic CLI.
//
// A configuration file is CUE or JSON (JSON is valid CUE). It is unified
// with an embedded schema that carries every default, checked for
// concreteness, decoded into Config and validated. Unknown fields are
// rejected because the schema is a closed definition.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/go-playground/validator/v10"
)

//go:embed schema.cue
var schemaSource string

// Materialization drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
	DriverJSONLD   = "jsonld"
)

// Sources lists where quads come from: SPARQL endpoints and local N-Quads
// or JSON-LD files. All of them are queried as one union.
type Sources struct {
	TriplestoreURLs []string `json:"triplestore_urls" validate:"dive,url"`
	FilePaths       []string `json:"file_paths" validate:"dive,required"`
}

// Empty reports whether no source is configured.
func (s Sources) Empty() bool {
	return len(s.TriplestoreURLs) == 0 && len(s.FilePaths) == 0
}

// Engine holds reconstruction and query settings.
type Engine struct {
	Workers         int  `json:"workers" validate:"min=1"`
	MaxRounds       int  `json:"max_rounds" validate:"min=1"`
	BatchSize       int  `json:"batch_size" validate:"min=1,gtefield=MinBatchSize"`
	MinBatchSize    int  `json:"min_batch_size" validate:"min=1"`
	DeltaCacheSize  int  `json:"delta_cache_size" validate:"min=1"`
	QueryCacheSize  int  `json:"query_cache_size" validate:"min=1"`
	LiteralCoercion bool `json:"literal_coercion"`
}

// Materialize selects where composite snapshots are written.
type Materialize struct {
	Driver    string `json:"driver" validate:"oneof=sqlite3 pgx jsonld"`
	DSN       string `json:"dsn" validate:"required_if=Driver pgx"`
	GraphBase string `json:"graph_base" validate:"required,url"`
}

// Cache configures the on-disk history cache. An empty path disables it.
type Cache struct {
	Path   string        `json:"path"`
	RawTTL string        `json:"ttl"`
	TTL    time.Duration `json:"-"`
}

// HTTP configures requests to SPARQL endpoints.
type HTTP struct {
	RequestsPerSecond float64       `json:"requests_per_second" validate:"gte=0"`
	Burst             int           `json:"burst" validate:"min=1"`
	RawTimeout        string        `json:"timeout"`
	Timeout           time.Duration `json:"-"`
}

// Config is the decoded configuration.
type Config struct {
	Dataset     Sources     `json:"dataset"`
	Provenance  Sources     `json:"provenance"`
	Engine      Engine      `json:"engine"`
	Materialize Materialize `json:"materialize"`
	Cache       Cache       `json:"cache"`
	HTTP        HTTP        `json:"http"`
}

// ProvenanceSources returns the provenance sources, falling back to the
// dataset sources when none are configured.
func (c *Config) ProvenanceSources() Sources {
	if c.Provenance.Empty() {
		return c.Dataset
	}
	return c.Provenance
}

// Error is a configuration problem, positioned in the source file when
// CUE reports a position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// IsConfigError returns true if the error is a configuration Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Default returns the configuration with every default applied and no
// sources.
func Default() (*Config, error) {
	return decode(nil, "")
}

// Load reads the configuration at path. Relative file paths inside it are
// resolved against the directory holding the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("read config: %v", err)}
	}
	cfg, err := decode(data, path)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes configuration text. name is used in error positions.
func Parse(data []byte, name string) (*Config, error) {
	return decode(data, name)
}

func decode(data []byte, name string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config: compile schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if data != nil {
		user := ctx.CompileBytes(data, cue.Filename(name))
		if err := user.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		v = v.Unify(user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := configValidator().Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}
	return &cfg, nil
}

func (c *Config) parseDurations() error {
	ttl, err := time.ParseDuration(c.Cache.RawTTL)
	if err != nil || ttl < 0 {
		return &Error{Field: "cache.ttl", Message: fmt.Sprintf("invalid duration %q", c.Cache.RawTTL)}
	}
	c.Cache.TTL = ttl

	timeout, err := time.ParseDuration(c.HTTP.RawTimeout)
	if err != nil || timeout <= 0 {
		return &Error{Field: "http.timeout", Message: fmt.Sprintf("invalid duration %q", c.HTTP.RawTimeout)}
	}
	c.HTTP.Timeout = timeout
	return nil
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(paths []string) {
		for i, p := range paths {
			if !filepath.IsAbs(p) {
				paths[i] = filepath.Join(dir, p)
			}
		}
	}
	resolve(c.Dataset.FilePaths)
	resolve(c.Provenance.FilePaths)
	if c.Cache.Path != "" && !filepath.IsAbs(c.Cache.Path) {
		c.Cache.Path = filepath.Join(dir, c.Cache.Path)
	}
	if c.Materialize.Driver != DriverPostgres && c.Materialize.DSN != "" && !filepath.IsAbs(c.Materialize.DSN) {
		c.Materialize.DSN = filepath.Join(dir, c.Materialize.DSN)
	}
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	msg, args := first.Msg()
	ce := &Error{
		Field:   strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(msg, args...),
		Pos:     first.Position(),
	}
	if ce.Field != "" {
		ce.Message = ce.Field + ": " + ce.Message
	}
	return ce
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Message: err.Error()}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return &Error{
		Field:   field,
		Message: fmt.Sprintf("failed %q check", fe.Tag()),
	}
}
