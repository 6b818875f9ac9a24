// Package ir provides the core data types of the time-agnostic engine.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Term and Quad are comparable values usable as map keys
//   - Graph is immutable once built; Apply returns a new overlay graph
//     sharing structure with its parent
//   - Time labels are UTC RFC 3339 strings, plus the literal "now"
//   - All JSON tags use snake_case
package ir
