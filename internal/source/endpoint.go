package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/timeagnostic/internal/ir"
)

// DefaultTimeout bounds a single endpoint request.
const DefaultTimeout = 60 * time.Second

// Endpoint is a GraphStore backed by a SPARQL 1.1 query endpoint.
// Requests are POSTed as form data and throttled by a token bucket.
type Endpoint struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) EndpointOption {
	return func(e *Endpoint) {
		if c != nil {
			e.client = c
		}
	}
}

// WithRateLimit caps requests per second. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) EndpointOption {
	return func(e *Endpoint) {
		if rps <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithEndpointLogger sets the logger.
func WithEndpointLogger(l *slog.Logger) EndpointOption {
	return func(e *Endpoint) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEndpoint creates a store for the SPARQL endpoint at rawURL.
func NewEndpoint(rawURL string, opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		url:     rawURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// URL returns the endpoint address.
func (e *Endpoint) URL() string {
	return e.url
}

// Binding is one variable binding of a SPARQL JSON result row.
type Binding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Term converts the binding into an ir.Term.
func (b Binding) Term() (ir.Term, error) {
	switch b.Type {
	case "uri":
		return ir.IRI(b.Value), nil
	case "bnode":
		return ir.Blank(b.Value), nil
	case "literal", "typed-literal":
		if b.Lang != "" {
			return ir.LangLiteral(b.Value, b.Lang), nil
		}
		return ir.TypedLiteral(b.Value, b.Datatype), nil
	default:
		return ir.Term{}, fmt.Errorf("unknown binding type %q", b.Type)
	}
}

// Results is a decoded application/sparql-results+json document.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]Binding `json:"bindings"`
	} `json:"results"`
}

// Select runs a SELECT query and decodes the JSON results.
func (e *Endpoint) Select(ctx context.Context, query string) (*Results, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Source: e.url, Operation: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Source: e.url, Operation: "query", Err: err}
	}
	defer resp.Body.Close()

	e.logger.Debug("sparql endpoint request",
		"endpoint", e.url,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{
			Source:    e.url,
			Operation: "query",
			Err:       fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var res Results
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &TransportError{Source: e.url, Operation: "decode results", Err: err}
	}
	return &res, nil
}

// Match implements GraphStore. Quads in named graphs and in the default
// graph are both returned; a default-graph row that repeats a named-graph
// triple is dropped, since many stores expose the union as default graph.
func (e *Endpoint) Match(ctx context.Context, pattern ir.Quad) ([]ir.Quad, error) {
	res, err := e.Select(ctx, MatchQuery(pattern))
	if err != nil {
		return nil, err
	}

	named := make(map[ir.Quad]bool)
	var quads, defaults []ir.Quad
	for _, row := range res.Results.Bindings {
		q := pattern
		for _, slot := range []struct {
			name string
			dst  *ir.Term
		}{{"s", &q.Subject}, {"p", &q.Predicate}, {"o", &q.Object}, {"g", &q.Graph}} {
			b, ok := row[slot.name]
			if !ok {
				continue
			}
			term, err := b.Term()
			if err != nil {
				return nil, &TransportError{Source: e.url, Operation: "decode results", Err: err}
			}
			*slot.dst = term
		}

		if q.Graph.IsZero() {
			defaults = append(defaults, q)
			continue
		}
		named[ir.Triple(q.Subject, q.Predicate, q.Object)] = true
		quads = append(quads, q)
	}
	for _, q := range defaults {
		if !named[q] {
			quads = append(quads, q)
		}
	}
	return ir.DedupQuads(quads), nil
}

// MatchQuery renders the SELECT query Match sends for pattern.
func MatchQuery(pattern ir.Quad) string {
	pos := func(t ir.Term, v string) string {
		if t.IsZero() {
			return "?" + v
		}
		return t.String()
	}
	triple := fmt.Sprintf("%s %s %s .",
		pos(pattern.Subject, "s"), pos(pattern.Predicate, "p"), pos(pattern.Object, "o"))

	if !pattern.Graph.IsZero() {
		return fmt.Sprintf("SELECT * WHERE { GRAPH %s { %s } }", pattern.Graph.String(), triple)
	}
	return fmt.Sprintf("SELECT * WHERE { { GRAPH ?g { %s } } UNION { %s } }", triple, triple)
}
