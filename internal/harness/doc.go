// Package harness runs conformance scenarios against the time-agnostic
// query engine.
//
// A scenario builds the history of a few entities change by change, runs
// one query across time and checks the answers given at every snapshot.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	run_id: test-run-001
//	histories:
//	  - entity: https://w3id.org/oc/meta/br/1
//	    steps:
//	      - create:
//	          - <https://w3id.org/oc/meta/br/1> <http://purl.org/dc/terms/title> "A title" <https://w3id.org/oc/meta/br/> .
//	      - insert:
//	          - <https://w3id.org/oc/meta/br/1> <http://purl.org/spar/cito/cites> <https://w3id.org/oc/meta/br/2> <https://w3id.org/oc/meta/br/> .
//	files:
//	  - fixtures/extra.nq
//	query: |
//	  SELECT ?cited WHERE { <https://w3id.org/oc/meta/br/1> <http://purl.org/spar/cito/cites> ?cited }
//	expect:
//	  labels: ["2021-05-07T09:59:15Z", "2021-05-07T10:59:15Z", now]
//	assertions:
//	  - type: result_contains
//	    label: now
//	    row: { cited: "<https://w3id.org/oc/meta/br/2>" }
//
// Every history shares one snapshot clock, so snapshot times follow the
// order in which the steps are written: the epoch, then one step later
// for every further snapshot. Both can be set with epoch and step.
//
// # Assertion Types
//
//   - result_contains: a solution at label binds at least the given row
//   - result_count: label has exactly count solutions
//   - label_order: the labels appear in this order among the snapshots
//   - final_state: the composite graph at label holds (or lacks) quads
//   - state_at: the state of entity at an instant holds (or lacks) quads
//
// # Deterministic Testing
//
// Scenarios run on an in-memory store with a fixed run ID and a fixed
// clock, so the same scenario always produces byte-identical golden
// output.
package harness
