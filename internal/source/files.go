package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/piprate/json-gold/ld"

	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/rdfsyntax"
)

// LoadFile reads the quads of an RDF file. The format follows the file
// extension: .nq and .nt are N-Quads, .json and .jsonld are JSON-LD.
func LoadFile(path string) ([]ir.Quad, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".nq", ".nt":
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		quads, err := rdfsyntax.ParseNQuads(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return quads, nil
	case ".json", ".jsonld":
		quads, err := LoadJSONLD(f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return quads, nil
	default:
		return nil, fmt.Errorf("unsupported file type %q for %s", ext, path)
	}
}

// LoadJSONLD expands a JSON-LD document into quads.
func LoadJSONLD(r io.Reader) ([]ir.Quad, error) {
	doc, err := ld.DocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode JSON-LD: %w", err)
	}

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.Format = "application/n-quads"

	out, err := proc.ToRDF(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("convert JSON-LD to RDF: %w", err)
	}
	nq, ok := out.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected JSON-LD conversion result %T", out)
	}
	return rdfsyntax.ParseNQuads(nq)
}

// NewMemoryFromFiles loads every file into one in-memory store.
func NewMemoryFromFiles(paths ...string) (*Memory, error) {
	m := NewMemory()
	for _, p := range paths {
		quads, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		m.Add(quads...)
	}
	return m, nil
}
