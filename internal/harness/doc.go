// Package harness runs fusion scenarios against a real engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: corroborating_pair
//	description: "Two aligned signals reinforce each other"
//	config:
//	  feature_dimension: 4
//	steps:
//	  - action: add
//	    id: a
//	    features: [1, 0, 0, 0]
//	    context: 0
//	    confidence: 0.9
//	    source: sensor
//	  - action: advance
//	    by: 1h
//	  - action: fuse
//	assertions:
//	  - type: confidence_increased
//	    signal: a
//	  - type: stability
//	    value: STABLE
//
// Step actions are add, fuse, advance, evict_older_than and
// evict_to_capacity. The id of an add step becomes the signal id, so
// assertions and golden output can name signals directly.
//
// # Assertion Types
//
//   - confidence_increased / confidence_decreased: final confidence of a
//     signal against the confidence it was added with, or posterior against
//     prior within one round when round is set
//   - coherence / entropy: value of a round within [min, max]
//   - stability: STABLE or DIVERGING for a round
//   - signal_count: number of retained signals at the end
//   - degenerate: whether a round was neutral
//
// Round-scoped assertions default to the last round.
//
// # Deterministic Testing
//
// Every run uses a fresh engine with a fixed id sequence, a fake wall clock
// starting at testutil.Epoch and a deterministic logical clock, so reports
// are byte-identical across runs and can be compared against golden files.
package harness
