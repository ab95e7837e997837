package graphfile

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

//go:embed schema.cue
var schemaSource string

// ParseCUE compiles src, unifies it with the graph schema and decodes the
// result. Nodes keep their declaration order.
func ParseCUE(filename string, src []byte) (*Definition, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling graph schema: %w", err)
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, cueLoadError(ErrCodeParse, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Graph")).Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}

	def := &Definition{Source: filename}

	nodes := v.LookupPath(cue.ParsePath("nodes"))
	iter, err := nodes.Fields()
	if err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}
	for iter.Next() {
		n, err := decodeCUENode(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		def.Nodes = append(def.Nodes, n)
	}

	edges, err := v.LookupPath(cue.ParsePath("edges")).List()
	if err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}
	for edges.Next() {
		var e struct {
			From string `json:"from"`
			To   string `json:"to"`
		}
		if err := edges.Value().Decode(&e); err != nil {
			return nil, cueLoadError(ErrCodeSchema, err)
		}
		c, err := parseConnection(e.From, e.To)
		if err != nil {
			return nil, err
		}
		def.Edges = append(def.Edges, c)
	}

	return def, nil
}

func decodeCUENode(name string, v cue.Value) (Node, error) {
	kind, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return Node{}, cueLoadError(ErrCodeSchema, err)
	}

	n := Node{Name: name, Kind: operator.Kind(kind), Config: value.Object{}}

	cfg := v.LookupPath(cue.ParsePath("config"))
	if !cfg.Exists() {
		return n, nil
	}
	raw, err := cfg.MarshalJSON()
	if err != nil {
		return Node{}, cueLoadError(ErrCodeSchema, err)
	}
	decoded, err := value.Decode(raw)
	if err != nil {
		return Node{}, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("node %q config: %v", name, err)}
	}
	obj, ok := decoded.(value.Object)
	if !ok {
		return Node{}, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("node %q config must be a struct", name)}
	}
	n.Config = obj
	return n, nil
}

// cueLoadError converts a CUE error, keeping the first position.
func cueLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: strings.TrimSpace(cueerrors.Details(err, nil))}
	for _, pos := range cueerrors.Positions(err) {
		if pos.IsValid() {
			le.Pos = fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column())
			break
		}
	}
	return le
}
