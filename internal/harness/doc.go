// Package harness runs conformance scenarios against the observation
// engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: grow_config
//	description: "What this scenario validates"
//	initial:
//	  name: svc
//	  tags: [a]
//	schema:
//	  file: config.cue
//	  definition: "#Config"
//	steps:
//	  - op: append
//	    path: tags
//	    value: [b]
//	  - op: set
//	    path: name
//	    value: api
//	expect:
//	  leaves:
//	    - { op: append, path: tags, value: [b] }
//	    - { op: replace, path: name, value: api }
//	assertions:
//	  - type: final_value
//	    path: tags[1]
//	    value: b
//
// Step ops are set, append, delete and truncate. Paths use the dotted form
// of change.ParsePath; the empty path is the root.
//
// # What a run checks
//
// All steps run in one observation session over a dynamic value decoded
// from initial. The resulting change must satisfy the apply law in every
// representation (Go values, encoded JSON values and YAML nodes): applying
// it to the initial value yields the final value. The steps are also
// journaled one session per step into an in-memory store; replaying the
// journal and applying its squashed change must both reproduce the final
// value. Then the expect clause, the optional CUE schema and the
// assertions are evaluated.
//
// # Assertion Types
//
//   - change_contains: a leaf exists at path, optionally with op and value
//   - change_order: the given paths appear in this order among the leaves
//   - change_count: the change has exactly count leaves
//   - final_value: the final value at path equals value
//
// # Deterministic Testing
//
// Journal seqs come from testutil.DeterministicClock and session IDs from
// testutil.SequenceGenerator, so traces are byte-identical across runs and
// can be compared with golden files.
package harness
