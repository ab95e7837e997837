// Package harness runs conformance scenarios against the engine.
//
// A scenario builds a graph step by step and checks, after each step, what
// the pass that followed produced. Every step is one host operation, so each
// successful step runs exactly one pass.
//
// # Scenario Format
//
//	name: base64_pipeline
//	description: "Text flows through base64 into a display"
//	policy: all-or-nothing        # or "partial"
//	steps:
//	  - add_node: {name: in, kind: textInput, config: {text: Hello}}
//	  - add_node: {name: enc, kind: base64}
//	  - add_edge: {from: in.text, to: enc.input}
//	  - patch: {node: enc, config: {mode: decode}}
//	    expect:
//	      error: {enc: "invalid input"}
//	  - remove_edge: {from: in.text, to: enc.input}
//	  - remove_node: [enc]
//	  - recompute: true
//	    expect:
//	      invocations: {total: 0}
//	      changed: false
//	  - add_edge: {from: in.text, to: in.text}
//	    expect_error: INVALID_EDGE
//
// # Expectations
//
//   - display: value arriving at a display node, by node name
//   - output: value per output port, by node name
//   - error: node is failed and its message contains the given text
//   - ok: nodes that must not be failed
//   - cycle: names of the nodes blocked by a cycle; [] means no cycle
//   - invocations: transform calls during the step, per kind or "total"
//   - changed: whether the pass changed any node state
//
// # Deterministic Testing
//
// Each scenario runs on a fresh engine with sequential node ids and a
// counting registry (the built-in operators plus the testutil kinds), so
// traces are identical across runs and can be compared to golden files.
package harness
