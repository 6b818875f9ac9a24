// Package queryir holds the algebra of the SELECT queries the time-agnostic
// engine can answer.
//
// A query is a projection over a group of graph patterns:
//
//	SelectQuery{Vars, Distinct, Limit, Where: Group{Elements: []Pattern{...}}}
//
// Pattern is a sealed interface. Its implementations are TriplePattern,
// Optional (a left join against a nested group) and GraphGroup (a group
// evaluated inside a named graph). Groups nest arbitrarily deep, so every
// traversal in this package uses an explicit stack instead of recursion.
//
// Backends switch exhaustively on the pattern type:
//
//	switch p := el.(type) {
//	case TriplePattern:
//	case Optional:
//	case GraphGroup:
//	}
//
// The engine only needs the flattened triple patterns of a query (to find
// anchors and resolve variables); evaluation is left to the backend that
// produced the algebra.
package queryir
