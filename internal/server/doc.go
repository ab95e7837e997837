// Package server exposes an engine over HTTP.
//
// Routes:
//
//	GET    /operators              registered operator kinds
//	GET    /graph                  full view: nodes, edges, cycle
//	GET    /nodes                  node views in insertion order
//	GET    /nodes/:id              one node view
//	POST   /nodes                  {"kind": ..., "config": {...}}
//	DELETE /nodes/:id              remove one node
//	DELETE /nodes                  {"ids": [...]} remove a selection
//	PATCH  /nodes/:id/config       shallow-merge a partial config
//	POST   /edges                  {"source", "sourcePort", "target", "targetPort"}
//	DELETE /edges                  same body as POST
//	POST   /recompute              run a pass without mutating
//	GET    /events                 server-sent pass updates
//
// With a journal attached the pass history is readable too:
//
//	GET    /passes                 every recorded pass
//	GET    /passes/:seq            evaluations of one pass
//	GET    /nodes/:id/history      every evaluation of one node
//
// Rejected mutations answer with {"code": ..., "error": ...} and a status
// derived from the error code.
package server
