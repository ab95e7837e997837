package graphfile

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

// hclFile is the top-level structure of an .hcl graph file.
type hclFile struct {
	Nodes []*hclNode `hcl:"node,block"`
	Edges []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	Name   string         `hcl:"name,label"`
	Kind   string         `hcl:"kind"`
	Config hcl.Expression `hcl:"config,optional"`
}

type hclEdge struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// ParseHCL decodes node and edge blocks. Config expressions are evaluated
// without variables or functions.
func ParseHCL(filename string, src []byte) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, hclLoadError(ErrCodeParse, diags)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, hclLoadError(ErrCodeSchema, diags)
	}

	def := &Definition{Source: filename}
	for _, n := range root.Nodes {
		cfg, diags := n.Config.Value(nil)
		if diags.HasErrors() {
			return nil, hclLoadError(ErrCodeSchema, diags)
		}
		obj := value.Object{}
		if !cfg.IsNull() {
			conv, err := ctyToValue(cfg)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("node %q config: %v", n.Name, err), Pos: n.Config.Range().String()}
			}
			o, ok := conv.(value.Object)
			if !ok {
				return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("node %q config must be an object", n.Name), Pos: n.Config.Range().String()}
			}
			obj = o
		}
		def.Nodes = append(def.Nodes, Node{Name: n.Name, Kind: operator.Kind(n.Kind), Config: obj})
	}
	for _, e := range root.Edges {
		c, err := parseConnection(e.From, e.To)
		if err != nil {
			return nil, err
		}
		def.Edges = append(def.Edges, c)
	}
	return def, nil
}

// ctyToValue recursively converts a cty.Value into the value model.
// Numbers keep an exact decimal literal.
func ctyToValue(v cty.Value) (value.Value, error) {
	if v.IsNull() {
		return value.Null{}, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known without evaluation context")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return value.String(v.AsString()), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			return value.Number(bf.Text('f', 0)), nil
		}
		return value.Number(bf.Text('g', -1)), nil

	case ty == cty.Bool:
		return value.Bool(v.True()), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		arr := value.Array{}
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			conv, err := ctyToValue(elem)
			if err != nil {
				return nil, err
			}
			arr = append(arr, conv)
		}
		return arr, nil

	case ty.IsObjectType() || ty.IsMapType():
		obj := value.Object{}
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			conv, err := ctyToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			obj[key.AsString()] = conv
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
	}
}

func hclLoadError(code string, diags hcl.Diagnostics) *LoadError {
	le := &LoadError{Code: code, Message: diags.Error()}
	for _, d := range diags {
		if d.Subject != nil {
			le.Pos = fmt.Sprintf("%s:%d:%d", d.Subject.Filename, d.Subject.Start.Line, d.Subject.Start.Column)
			break
		}
	}
	return le
}
