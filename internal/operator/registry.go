package operator

import (
	"fmt"
	"sync"

	"github.com/roach88/textflow/internal/value"
)

// Kind names an operator. The built-in kinds form a closed set; other kinds
// may be added through Registry.Register.
type Kind string

// Built-in operator kinds.
const (
	KindTextInput   Kind = "textInput"
	KindTextDisplay Kind = "textDisplay"
	KindBase64      Kind = "base64"
	KindHash        Kind = "hash"
	KindJSON        Kind = "json"
	KindRegex       Kind = "regex"
	KindCrypto      Kind = "crypto"
)

// Port is a named input or output slot.
type Port struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TransformFunc computes a node's outputs from its inputs and configuration.
//
// inputs is ordered like the definition's input slots, with value.Undefined
// for unconnected slots. The returned slice is ordered like the output slots;
// a shorter slice leaves the remaining slots without a value.
type TransformFunc func(inputs []value.Value, config value.Object) ([]value.Value, error)

// Definition describes one operator kind. It is immutable once registered and
// shared read-only by every node of that kind.
type Definition struct {
	Kind      Kind
	Name      string
	Inputs    []Port
	Outputs   []Port
	Transform TransformFunc
	Defaults  value.Object

	// Display marks sink operators whose single incoming value is exposed to
	// the host, since they have no outputs of their own.
	Display bool
}

// InputIndex returns the position of the named input slot, or -1.
func (d Definition) InputIndex(port string) int {
	for i, p := range d.Inputs {
		if p.ID == port {
			return i
		}
	}
	return -1
}

// OutputIndex returns the position of the named output slot, or -1.
func (d Definition) OutputIndex(port string) int {
	for i, p := range d.Outputs {
		if p.ID == port {
			return i
		}
	}
	return -1
}

// Registry maps operator kinds to definitions.
//
// Registration happens before any graph uses the registry; afterwards it is
// only read. Lookups are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	defs  map[Kind]Definition
	order []Kind // Registration order, for deterministic listing
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[Kind]Definition)}
}

// Register adds a definition. Kinds must be unique and non-empty, and the
// transform must be set.
func (r *Registry) Register(def Definition) error {
	if def.Kind == "" {
		return fmt.Errorf("register operator: kind is required")
	}
	if def.Transform == nil {
		return fmt.Errorf("register operator %q: transform is required", def.Kind)
	}
	if def.Display && (len(def.Inputs) != 1 || len(def.Outputs) != 0) {
		return fmt.Errorf("register operator %q: display operators take one input and no outputs", def.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Kind]; exists {
		return fmt.Errorf("register operator %q: kind already registered", def.Kind)
	}
	if def.Defaults == nil {
		def.Defaults = value.Object{}
	}
	r.defs[def.Kind] = def
	r.order = append(r.order, def.Kind)
	return nil
}

// MustRegister is like Register but panics on error.
// Use only while assembling a registry at startup.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition for kind, or an *UnknownOperatorError.
func (r *Registry) Lookup(kind Kind) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[kind]
	if !ok {
		return Definition{}, &UnknownOperatorError{Kind: kind}
	}
	return def, nil
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns every definition in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.defs[k])
	}
	return out
}

var builtins = sync.OnceValue(func() *Registry {
	return NewBuiltinRegistry()
})

// Builtins returns the process-wide registry of built-in operators.
// It is initialized once and never modified afterwards.
func Builtins() *Registry {
	return builtins()
}

// NewBuiltinRegistry returns a fresh registry holding the built-in operators.
// Callers may register additional kinds on it.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(textInputDefinition())
	r.MustRegister(textDisplayDefinition())
	r.MustRegister(base64Definition())
	r.MustRegister(hashDefinition())
	r.MustRegister(jsonDefinition())
	r.MustRegister(regexDefinition())
	r.MustRegister(cryptoDefinition())
	return r
}

// io ports shared by the single-input, single-output operators.
var (
	inputPorts  = []Port{{ID: "input", Name: "Input"}}
	outputPorts = []Port{{ID: "output", Name: "Output"}}
)

// typed adapts a transform over a decoded, strongly typed configuration to
// the generic TransformFunc shape.
func typed[C any](decode func(value.Object) (C, error), run func(inputs []value.Value, cfg C) ([]value.Value, error)) TransformFunc {
	return func(inputs []value.Value, config value.Object) ([]value.Value, error) {
		cfg, err := decode(config)
		if err != nil {
			return nil, err
		}
		return run(inputs, cfg)
	}
}

// firstText coerces the first input to text; a missing input is "".
func firstText(inputs []value.Value) string {
	if len(inputs) == 0 {
		return ""
	}
	return value.Text(inputs[0])
}

// stringField reads an optional string config entry, falling back to def
// when the entry is absent or empty.
func stringField(kind Kind, cfg value.Object, field, def string) (string, error) {
	v, ok := cfg[field]
	if !ok || value.IsUndefined(v) {
		return def, nil
	}
	s, ok := v.(value.String)
	if !ok {
		return "", &ConfigError{Kind: kind, Field: field, Message: fmt.Sprintf("must be a string, got %T", v)}
	}
	if s == "" {
		return def, nil
	}
	return string(s), nil
}
