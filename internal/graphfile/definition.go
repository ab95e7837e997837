package graphfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

// Error codes reported by LoadError.
const (
	ErrCodeNotFound          = "FILE_NOT_FOUND"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeParse             = "PARSE_FAILED"
	ErrCodeSchema            = "SCHEMA_VIOLATION"
	ErrCodeInvalidEndpoint   = "INVALID_ENDPOINT"
	ErrCodeDuplicateNode     = "DUPLICATE_NODE"
	ErrCodeUnknownNode       = "UNKNOWN_NODE"
)

// LoadError reports a problem with a graph file.
type LoadError struct {
	Code    string
	Message string
	Pos     string // "file:line:col" when known
}

func (e *LoadError) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Node is a named node declaration.
type Node struct {
	Name   string
	Kind   operator.Kind
	Config value.Object
}

// Endpoint is one side of an edge: a node name and a port id.
type Endpoint struct {
	Node string
	Port string
}

func (e Endpoint) String() string {
	return e.Node + "." + e.Port
}

// ParseEndpoint splits "node.port". Node names may not contain dots.
func ParseEndpoint(s string) (Endpoint, error) {
	node, port, ok := strings.Cut(s, ".")
	if !ok || node == "" || port == "" || strings.Contains(port, ".") {
		return Endpoint{}, &LoadError{Code: ErrCodeInvalidEndpoint, Message: fmt.Sprintf("endpoint %q must be written as node.port", s)}
	}
	return Endpoint{Node: node, Port: port}, nil
}

// Connection is an edge between two named endpoints.
type Connection struct {
	From Endpoint
	To   Endpoint
}

func (c Connection) String() string {
	return c.From.String() + " -> " + c.To.String()
}

// Definition is a parsed graph file.
type Definition struct {
	Source string // File the definition was read from
	Nodes  []Node
	Edges  []Connection
}

// Node returns the declaration named name.
func (d *Definition) Node(name string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Validate checks that names are unique and every edge names declared
// nodes. Ports and kinds are checked by the engine when applied.
func (d *Definition) Validate() error {
	seen := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.Name == "" || strings.Contains(n.Name, ".") {
			return &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("invalid node name %q", n.Name), Pos: d.Source}
		}
		if seen[n.Name] {
			return &LoadError{Code: ErrCodeDuplicateNode, Message: fmt.Sprintf("node %q declared twice", n.Name), Pos: d.Source}
		}
		seen[n.Name] = true
	}
	for _, c := range d.Edges {
		for _, ep := range []Endpoint{c.From, c.To} {
			if !seen[ep.Node] {
				return &LoadError{Code: ErrCodeUnknownNode, Message: fmt.Sprintf("edge %s names undeclared node %q", c, ep.Node), Pos: d.Source}
			}
		}
	}
	return nil
}

// Load reads and parses a graph file. The format follows the extension.
func Load(path string) (*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph file not found: %s", path)}
		}
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	return Parse(path, src)
}

// Parse parses src as a graph file named filename.
func Parse(filename string, src []byte) (*Definition, error) {
	var (
		def *Definition
		err error
	)
	switch ext := filepath.Ext(filename); ext {
	case ".cue":
		def, err = ParseCUE(filename, src)
	case ".hcl":
		def, err = ParseHCL(filename, src)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupportedFormat, Message: fmt.Sprintf("unsupported graph file extension %q (want .cue or .hcl)", ext)}
	}
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Apply builds def on e in file order: every node, then every edge. It
// returns the engine id assigned to each node name. On error the nodes
// already added stay in the engine.
func Apply(ctx context.Context, def *Definition, e *engine.Engine) (map[string]graph.NodeID, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	ids := make(map[string]graph.NodeID, len(def.Nodes))
	for _, n := range def.Nodes {
		id, err := e.AddNode(ctx, n.Kind, n.Config)
		if err != nil {
			return ids, fmt.Errorf("node %q: %w", n.Name, err)
		}
		ids[n.Name] = id
	}
	for _, c := range def.Edges {
		err := e.AddEdge(ctx, graph.Edge{
			Source:     ids[c.From.Node],
			SourcePort: c.From.Port,
			Target:     ids[c.To.Node],
			TargetPort: c.To.Port,
		})
		if err != nil {
			return ids, fmt.Errorf("edge %s: %w", c, err)
		}
	}
	return ids, nil
}

// Names inverts the map returned by Apply.
func Names(ids map[string]graph.NodeID) map[graph.NodeID]string {
	names := make(map[graph.NodeID]string, len(ids))
	for name, id := range ids {
		names[id] = name
	}
	return names
}

func parseConnection(from, to string) (Connection, error) {
	f, err := ParseEndpoint(from)
	if err != nil {
		return Connection{}, err
	}
	t, err := ParseEndpoint(to)
	if err != nil {
		return Connection{}, err
	}
	return Connection{From: f, To: t}, nil
}
