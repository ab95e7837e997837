package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"nil", nil, ""},
		{"undefined", Undefined{}, ""},
		{"null", Null{}, ""},
		{"string", String("Hello"), "Hello"},
		{"number keeps literal", Number("1.50"), "1.50"},
		{"bool", Bool(false), "false"},
		{"object", Object{"b": Number("2"), "a": Number("1")}, `{"a":1,"b":2}`},
		{"array", Array{String("x"), Number("1")}, `["x",1]`},
		{"nested keeps literals", Array{Number("1.0"), String("e\u0301")}, "[1.0,\"e\u0301\"]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestIsUndefined(t *testing.T) {
	assert.True(t, IsUndefined(nil))
	assert.True(t, IsUndefined(Undefined{}))
	assert.False(t, IsUndefined(Null{}))
	assert.False(t, IsUndefined(String("")))
}

func TestDecode(t *testing.T) {
	v, err := Decode([]byte(`{"a":[1,2.5,true,null],"b":"x"}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Array{Number("1"), Number("2.5"), Bool(true), Null{}}, obj["a"])
	assert.Equal(t, String("x"), obj["b"])
}

func TestDecodeScalar(t *testing.T) {
	v, err := Decode([]byte(`"hello"`))
	require.NoError(t, err)
	assert.Equal(t, String("hello"), v)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"a":1}   `))
	require.NoError(t, err, "trailing whitespace is fine")
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"a":`))
	require.Error(t, err)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"s": "x",
		"n": json.Number("12"),
		"i": 7,
		"f": 1.5,
		"l": []any{"a", false},
		"z": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Object{
		"s": String("x"),
		"n": Number("12"),
		"i": Number("7"),
		"f": Number("1.5"),
		"l": Array{String("a"), Bool(false)},
		"z": Null{},
	}, v)

	_, err = FromAny(struct{}{})
	require.Error(t, err)
}

func TestObjectMerge(t *testing.T) {
	base := Object{"mode": String("encrypt"), "key": String("")}
	merged := base.Merge(Object{"key": String("k")})

	assert.Equal(t, Object{"mode": String("encrypt"), "key": String("k")}, merged)
	assert.Equal(t, String(""), base["key"], "merge must not modify the receiver")
}

func TestCloneIsDeep(t *testing.T) {
	orig := Object{"nested": Object{"a": Array{String("x")}}}
	cp := orig.Clone()

	cp["nested"].(Object)["a"].(Array)[0] = String("changed")
	assert.Equal(t, String("x"), orig["nested"].(Object)["a"].(Array)[0])
}

func TestToAnyRoundTrip(t *testing.T) {
	orig := Object{"a": Array{Number("1"), String("b"), Bool(true), Null{}}}
	back, err := FromAny(ToAny(orig))
	require.NoError(t, err)
	assert.True(t, Equal(orig, back))
}
