package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timeagnostic/internal/config"
	"github.com/roach88/timeagnostic/internal/engine"
	"github.com/roach88/timeagnostic/internal/source"
	"github.com/roach88/timeagnostic/internal/store"
)

func TestAddSourcesSplitsEndpointsAndFiles(t *testing.T) {
	var s config.Sources
	addSources(&s, []string{
		"https://opencitations.net/meta/sparql",
		"./dataset.nq",
		"http://localhost:9999/blazegraph/sparql",
		"prov.jsonld",
	})
	assert.Equal(t, []string{
		"https://opencitations.net/meta/sparql",
		"http://localhost:9999/blazegraph/sparql",
	}, s.TriplestoreURLs)
	assert.Equal(t, []string{"./dataset.nq", "prov.jsonld"}, s.FilePaths)
}

func TestLoadConfigMergesFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tab.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"dataset": {"file_paths": ["a.nq"]}}`), 0o644))

	cfg, err := loadConfig(&RootOptions{
		Config:     cfgPath,
		Dataset:    []string{"b.nq"},
		Provenance: []string{"https://example.org/sparql"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.nq"), "b.nq"}, cfg.Dataset.FilePaths)
	assert.Equal(t, []string{"https://example.org/sparql"}, cfg.Provenance.TriplestoreURLs)
}

func TestLoadConfigInvalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "tab.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"engine": {"workers": 0}}`), 0o644))

	_, err := loadConfig(&RootOptions{Config: cfgPath})
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfig, ErrorCode(err))
}

func TestNewEnvironmentSharesDatasetAsProvenance(t *testing.T) {
	path := writeDataset(t, citations())

	env, err := NewEnvironment(&RootOptions{Dataset: []string{path}}, newLogger(io.Discard, false))
	require.NoError(t, err)
	defer env.Close()

	assert.Same(t, env.Dataset, env.Provenance)
	_, ok := env.Dataset.(*source.Memory)
	assert.True(t, ok, "a single file source is used directly, got %T", env.Dataset)
}

func TestNewEnvironmentUnionsSources(t *testing.T) {
	path := writeDataset(t, citations())

	env, err := NewEnvironment(&RootOptions{
		Dataset: []string{path, "http://localhost:9999/blazegraph/sparql"},
	}, newLogger(io.Discard, false))
	require.NoError(t, err)
	defer env.Close()

	multi, ok := env.Dataset.(source.Multi)
	require.True(t, ok, "got %T", env.Dataset)
	assert.Len(t, multi, 2)
	assert.Contains(t, source.Describe(env.Dataset), "endpoint(http://localhost:9999/blazegraph/sparql)")
}

func TestNewEnvironmentOpensHistoryCache(t *testing.T) {
	path := writeDataset(t, citations())
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tab.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"cache": {"path": "cache", "ttl": "1h"}}`), 0o644))

	env, err := NewEnvironment(&RootOptions{Config: cfgPath, Dataset: []string{path}}, newLogger(io.Discard, false))
	require.NoError(t, err)
	require.NotNil(t, env.cache)
	require.NoError(t, env.Close())

	_, err = os.Stat(filepath.Join(dir, "cache"))
	assert.NoError(t, err)
}

func TestEnvironmentCloseWithoutCache(t *testing.T) {
	var env *Environment
	assert.NoError(t, env.Close())
	assert.NoError(t, (&Environment{}).Close())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"load error", &LoadError{Code: ErrCodeSourceFailed, Message: "load"}, ErrCodeSourceFailed},
		{"wrapped load error", fmt.Errorf("outer: %w", &LoadError{Code: ErrCodeNoSources}), ErrCodeNoSources},
		{"config error", &config.Error{Field: "engine.workers", Message: "too small"}, ErrCodeConfig},
		{"snapshot not found", fmt.Errorf("run x: %w", store.ErrSnapshotNotFound), ErrCodeNotFound},
		{"no anchor", &engine.NoAnchorError{Query: "SELECT * WHERE { ?s ?p ?o }"}, string(engine.ErrCodeNoAnchor)},
		{"unsupported", &engine.UnsupportedQueryError{Reason: "only SELECT queries are supported"}, string(engine.ErrCodeUnsupportedQuery)},
		{"plain", errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestLoadErrorFormatting(t *testing.T) {
	err := &LoadError{Code: ErrCodeSourceFailed, Message: "load source files", Err: errors.New("open a.nq: no such file")}
	assert.Equal(t, "E004: load source files: open a.nq: no such file", err.Error())
	assert.Equal(t, "E003: no dataset source", (&LoadError{Code: ErrCodeNoSources, Message: "no dataset source"}).Error())
}
