// Package graphfile loads graph definitions from disk and applies them to
// an engine.
//
// Two formats are supported, chosen by file extension:
//
//   - .cue files are unified with an embedded schema that constrains the
//     operator kinds and their config enums before anything is decoded
//   - .hcl files declare node and edge blocks
//
// Both produce the same Definition: named nodes in file order and edges
// written as "node.port" endpoints.
//
// CUE example:
//
//	nodes: {
//		input: {kind: "textInput", config: text: "Hello"}
//		enc: {kind: "base64"}
//		out: {kind: "textDisplay"}
//	}
//	edges: [
//		{from: "input.text", to: "enc.input"},
//		{from: "enc.output", to: "out.text"},
//	]
//
// HCL example:
//
//	node "input" {
//	  kind   = "textInput"
//	  config = { text = "Hello" }
//	}
//
//	edge {
//	  from = "input.text"
//	  to   = "enc.input"
//	}
package graphfile
