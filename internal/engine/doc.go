// Package engine implements the time-agnostic query engine.
//
// The engine answers a SELECT query against every recorded state of the
// entities the query reaches, not only against the present. Histories are
// rebuilt backwards from the present state by undoing, one snapshot at a
// time, the update queries recorded in provenance.
//
// ARCHITECTURE:
//
// Staged Pipeline:
// One execution walks through fixed stages:
// 1. Validate: only SELECT queries the backend can parse are accepted
// 2. ExtractAnchors: concrete IRIs and literals in subject or object position
// 3. Reconstruct: entity histories, on a bounded worker pool
// 4. Align: one composite graph per distinct snapshot time, plus now
// 5. Resolve: bind variables on the composite, reconstruct what they name
// 6. Evaluate: run the query on every composite graph
//
// Resolve loops back to Reconstruct and Align while it binds new values.
//
// Failure Model:
// Invalid queries fail before any source is read. The failure of a single
// entity (a malformed delta, an unreachable store) becomes a warning on
// the result; only context cancellation and evaluation errors abort.
//
// CRITICAL PATTERNS:
//
// VisitedSet: every entity is reconstructed at most once per execution,
// which makes resolution terminate on cyclic data.
//
// RoundQuota: bounds the number of resolution rounds.
//
// Determinism: labels, entities and tuples are sorted, so the same query
// over the same data yields identical results.
package engine
