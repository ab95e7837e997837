package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/textflow/internal/value"
)

func noopTransform(_ []value.Value, _ value.Object) ([]value.Value, error) { return nil, nil }

func TestBuiltinsContract(t *testing.T) {
	r := Builtins()

	assert.Equal(t, []Kind{
		KindTextInput, KindTextDisplay, KindBase64, KindHash, KindJSON, KindRegex, KindCrypto,
	}, r.Kinds())

	tests := []struct {
		kind    Kind
		inputs  []string
		outputs []string
	}{
		{KindTextInput, nil, []string{"text"}},
		{KindTextDisplay, []string{"text"}, nil},
		{KindBase64, []string{"input"}, []string{"output"}},
		{KindHash, []string{"input"}, []string{"output"}},
		{KindJSON, []string{"input"}, []string{"output"}},
		{KindRegex, []string{"input"}, []string{"output"}},
		{KindCrypto, []string{"input"}, []string{"output"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			def, err := r.Lookup(tt.kind)
			require.NoError(t, err)

			var ins, outs []string
			for _, p := range def.Inputs {
				ins = append(ins, p.ID)
			}
			for _, p := range def.Outputs {
				outs = append(outs, p.ID)
			}
			assert.Equal(t, tt.inputs, ins)
			assert.Equal(t, tt.outputs, outs)
			assert.NotNil(t, def.Transform)
			assert.NotNil(t, def.Defaults)
		})
	}
}

func TestBuiltinsIsShared(t *testing.T) {
	assert.Same(t, Builtins(), Builtins())
	assert.NotSame(t, Builtins(), NewBuiltinRegistry())
}

func TestBuiltinDefaults(t *testing.T) {
	r := Builtins()

	expected := map[Kind]value.Object{
		KindTextInput:   {"text": value.String("Hello World")},
		KindTextDisplay: {},
		KindBase64:      {"mode": value.String("encode")},
		KindHash:        {"algorithm": value.String("SHA256")},
		KindJSON:        {"mode": value.String("format")},
		KindRegex:       {"pattern": value.String("(Hello)"), "flags": value.String("gi")},
		KindCrypto:      {"mode": value.String("encrypt"), "key": value.String("")},
	}
	for kind, want := range expected {
		def, err := r.Lookup(kind)
		require.NoError(t, err)
		assert.True(t, value.Equal(want, def.Defaults), "defaults for %s", kind)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Builtins().Lookup("rot13")
	require.Error(t, err)
	assert.True(t, IsUnknownOperator(err))

	var ue *UnknownOperatorError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, Kind("rot13"), ue.Kind)
	assert.Contains(t, err.Error(), "UNKNOWN_OPERATOR")
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	require.Error(t, r.Register(Definition{Transform: noopTransform}), "empty kind")
	require.Error(t, r.Register(Definition{Kind: "x"}), "missing transform")
	require.Error(t, r.Register(Definition{
		Kind:      "sink",
		Transform: noopTransform,
		Display:   true,
	}), "display needs exactly one input")

	require.NoError(t, r.Register(Definition{Kind: "x", Transform: noopTransform}))
	require.Error(t, r.Register(Definition{Kind: "x", Transform: noopTransform}), "duplicate kind")

	def, err := r.Lookup("x")
	require.NoError(t, err)
	assert.NotNil(t, def.Defaults, "defaults are normalized to an empty object")
}

func TestRegisterExtendsBuiltins(t *testing.T) {
	r := NewBuiltinRegistry()
	r.MustRegister(Definition{
		Kind:      "upper",
		Inputs:    inputPorts,
		Outputs:   outputPorts,
		Transform: noopTransform,
	})

	kinds := r.Kinds()
	assert.Len(t, kinds, 8)
	assert.Equal(t, Kind("upper"), kinds[7])

	_, err := Builtins().Lookup("upper")
	assert.True(t, IsUnknownOperator(err), "the shared registry is untouched")
}

func TestPortIndex(t *testing.T) {
	def, err := Builtins().Lookup(KindBase64)
	require.NoError(t, err)

	assert.Equal(t, 0, def.InputIndex("input"))
	assert.Equal(t, -1, def.InputIndex("output"))
	assert.Equal(t, 0, def.OutputIndex("output"))
	assert.Equal(t, -1, def.OutputIndex("text"))
}
