// Package prov reads provenance snapshots from a graph store.
//
// Every change to an entity is described by a snapshot resource linked to
// the entity with prov:specializationOf. The snapshot records when it was
// generated, who made it, where the data came from and, for every snapshot
// after the first, the update query that produced it.
package prov

import (
	"strings"

	"github.com/roach88/timeagnostic/internal/ir"
)

// Namespaces.
const (
	NS    = "http://www.w3.org/ns/prov#"
	OCONS = "https://w3id.org/oc/ontology/"
)

// Provenance predicates.
var (
	GeneratedAtTime  = ir.IRI(NS + "generatedAtTime")
	SpecializationOf = ir.IRI(NS + "specializationOf")
	WasAttributedTo  = ir.IRI(NS + "wasAttributedTo")
	HadPrimarySource = ir.IRI(NS + "hadPrimarySource")
	WasDerivedFrom   = ir.IRI(NS + "wasDerivedFrom")
	InvalidatedAt    = ir.IRI(NS + "invalidatedAtTime")
	HasUpdateQuery   = ir.IRI(OCONS + "hasUpdateQuery")
	Description      = ir.IRI("http://purl.org/dc/terms/description")
)

// Predicates lists every predicate the engine treats as provenance.
// Quads using them never appear in reconstructed states.
var Predicates = []ir.Term{
	GeneratedAtTime,
	SpecializationOf,
	WasAttributedTo,
	HadPrimarySource,
	WasDerivedFrom,
	InvalidatedAt,
	HasUpdateQuery,
}

// IsPredicate reports whether p is a provenance predicate.
func IsPredicate(p ir.Term) bool {
	for _, pp := range Predicates {
		if p == pp {
			return true
		}
	}
	return false
}

// IsDataQuad reports whether q is a data quad, i.e. it does not use a
// provenance predicate.
func IsDataQuad(q ir.Quad) bool {
	return !IsPredicate(q.Predicate)
}

// MentionsProvenance reports whether a query text refers to a provenance
// predicate, in which case it targets the provenance sources.
func MentionsProvenance(query string) bool {
	for _, p := range Predicates {
		if strings.Contains(query, p.Value) {
			return true
		}
	}
	return strings.Contains(query, "prov:")
}
