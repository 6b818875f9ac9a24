package testutil

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/timeagnostic/internal/delta"
	"github.com/roach88/timeagnostic/internal/ir"
	"github.com/roach88/timeagnostic/internal/prov"
	"github.com/roach88/timeagnostic/internal/source"
)

const xsdDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"

// DefaultAgent is the curator recorded on fixture snapshots.
const DefaultAgent = "https://orcid.org/0000-0002-8420-0696"

// History builds the provenance of one entity change by change, keeping
// the present state in step, so tests can assert reconstructed states
// against the states they wrote.
//
// Snapshots are numbered from 1 and live in the named graph
// <entity>/prov/, as OpenCitations Meta lays them out.
type History struct {
	entity string
	clock  *SnapshotClock
	agent  string

	current *ir.Graph
	states  []*ir.Graph
	times   []time.Time
	prov    []ir.Quad
}

// NewHistory starts an empty history. Snapshot times come from clock.
func NewHistory(entity string, clock *SnapshotClock) *History {
	return &History{
		entity:  entity,
		clock:   clock,
		agent:   DefaultAgent,
		current: ir.EmptyGraph(),
	}
}

// WithAgent sets the agent recorded on later snapshots.
func (h *History) WithAgent(agent string) *History {
	h.agent = agent
	return h
}

// Entity returns the entity IRI.
func (h *History) Entity() string {
	return h.entity
}

// Create records the creation snapshot. It carries no update query.
func (h *History) Create(quads ...ir.Quad) *History {
	h.current = ir.NewGraph(quads...)
	h.record("")
	return h
}

// Update records a snapshot whose update query is d.
func (h *History) Update(d ir.Delta) *History {
	h.current = h.current.Apply(d)
	h.record(delta.Format(d))
	return h
}

// Replace records a snapshot swapping old for next.
func (h *History) Replace(old, next ir.Quad) *History {
	return h.Update(ir.Delta{Deleted: []ir.Quad{old}, Inserted: []ir.Quad{next}})
}

// Delete records a snapshot removing every quad of the entity.
func (h *History) Delete() *History {
	return h.Update(ir.Delta{Deleted: h.current.Quads()})
}

// RawUpdate records a snapshot with an arbitrary update query text while
// leaving the present state untouched.
func (h *History) RawUpdate(text string) *History {
	h.record(text)
	return h
}

// Opaque records a snapshot without an update query after creation, so the
// states before it cannot be derived.
func (h *History) Opaque(d ir.Delta) *History {
	h.current = h.current.Apply(d)
	h.record("")
	return h
}

func (h *History) record(update string) {
	n := len(h.times) + 1
	t := h.clock.Next()
	se := ir.IRI(h.SnapshotID(n - 1))
	g := ir.IRI(h.entity + "/prov/")

	h.prov = append(h.prov,
		ir.NewQuad(se, prov.SpecializationOf, ir.IRI(h.entity), g),
		ir.NewQuad(se, prov.GeneratedAtTime, ir.TypedLiteral(t.Format(time.RFC3339Nano), xsdDateTime), g),
		ir.NewQuad(se, prov.WasAttributedTo, ir.IRI(h.agent), g),
	)
	if n > 1 {
		h.prov = append(h.prov, ir.NewQuad(se, prov.WasDerivedFrom, ir.IRI(h.SnapshotID(n-2)), g))
	}
	if update != "" {
		h.prov = append(h.prov, ir.NewQuad(se, prov.HasUpdateQuery, ir.Literal(update), g))
	}
	h.times = append(h.times, t)
	h.states = append(h.states, h.current)
}

// SnapshotID returns the IRI of the i-th snapshot, counting from 0.
func (h *History) SnapshotID(i int) string {
	return fmt.Sprintf("%s/prov/se/%d", h.entity, i+1)
}

// Times returns the generation times, ascending.
func (h *History) Times() []time.Time {
	return h.times
}

// State returns the graph written by the i-th snapshot.
func (h *History) State(i int) *ir.Graph {
	return h.states[i]
}

// Current returns the present state.
func (h *History) Current() *ir.Graph {
	return h.current
}

// ProvenanceQuads returns the snapshot descriptions.
func (h *History) ProvenanceQuads() []ir.Quad {
	return h.prov
}

// Quads returns the present state followed by the provenance.
func (h *History) Quads() []ir.Quad {
	return slices.Concat(h.current.Quads(), h.prov)
}

// Dataset loads histories into one store holding both present data and
// provenance.
func Dataset(hs ...*History) *source.Memory {
	m := source.NewMemory()
	for _, h := range hs {
		m.Add(h.Quads()...)
	}
	return m
}
