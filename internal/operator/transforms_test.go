package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/textflow/internal/value"
)

// run looks up kind in the built-in registry and applies its transform.
func run(t *testing.T, kind Kind, input value.Value, config value.Object) ([]value.Value, error) {
	t.Helper()
	def, err := Builtins().Lookup(kind)
	require.NoError(t, err)
	return def.Transform([]value.Value{input}, config)
}

// runText is run for transforms expected to succeed with one text output.
func runText(t *testing.T, kind Kind, input string, config value.Object) string {
	t.Helper()
	out, err := run(t, kind, value.String(input), config)
	require.NoError(t, err)
	require.Len(t, out, 1)
	s, ok := out[0].(value.String)
	require.True(t, ok, "output is %T", out[0])
	return string(s)
}

func cfg(pairs ...string) value.Object {
	obj := value.Object{}
	for i := 0; i+1 < len(pairs); i += 2 {
		obj[pairs[i]] = value.String(pairs[i+1])
	}
	return obj
}

func TestTextInput(t *testing.T) {
	def, err := Builtins().Lookup(KindTextInput)
	require.NoError(t, err)

	out, err := def.Transform(nil, cfg("text", "Hello"))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.String("Hello")}, out)

	out, err = def.Transform(nil, value.Object{})
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Undefined{}}, out, "missing text yields no value")
}

func TestTextDisplayHasNoOutputs(t *testing.T) {
	def, err := Builtins().Lookup(KindTextDisplay)
	require.NoError(t, err)
	assert.True(t, def.Display)

	out, err := def.Transform([]value.Value{value.String("x")}, value.Object{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBase64(t *testing.T) {
	assert.Equal(t, "SGVsbG8=", runText(t, KindBase64, "Hello", cfg("mode", "encode")))
	assert.Equal(t, "Hello", runText(t, KindBase64, "SGVsbG8=", cfg("mode", "decode")))
	assert.Equal(t, "aMOpbGxvIOKckw==", runText(t, KindBase64, "héllo ✓", cfg()), "encode is the default")
	assert.Equal(t, "Hello", runText(t, KindBase64, "SGVsbG8", cfg("mode", "decode")), "padding optional")
	assert.Equal(t, "Hello", runText(t, KindBase64, "SGVs\nbG8=", cfg("mode", "decode")), "line-wrapped")
	assert.Equal(t, "", runText(t, KindBase64, "", cfg("mode", "decode")))

	out, err := run(t, KindBase64, value.Undefined{}, cfg("mode", "encode"))
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.String("")}, out, "unconnected input encodes as empty")
}

func TestBase64Errors(t *testing.T) {
	_, err := run(t, KindBase64, value.String("!!!not base64"), cfg("mode", "decode"))
	require.Error(t, err)

	// 0xff 0xfe is not UTF-8
	_, err = run(t, KindBase64, value.String("//4="), cfg("mode", "decode"))
	require.Error(t, err)

	_, err = run(t, KindBase64, value.String("x"), cfg("mode", "rot13"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	_, err = run(t, KindBase64, value.String("x"), value.Object{"mode": value.Number("1")})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestHash(t *testing.T) {
	tests := []struct {
		alg      string
		expected string
	}{
		{"MD5", "5d41402abc4b2a76b9719d911017c592"},
		{"SHA1", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{"SHA224", "ea09ae9cc6768c50fcee903ed054556e5bfc8347907f12598aa24193"},
		{"SHA256", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{"SHA384", "59e1748777448c69de6b800d7a33bbfb9ff1b463e44354c3553bcdb9c666fa90125a3c79f90397bdf5f6a13de828684f"},
		{"SHA512", "9b71d224bd62f3785d96d46ad3ea3d73319bfbc2890caadae2dff72519673ca72323c3d99ba5c11d7c7acc6e14b8c5da0c4663475c2e5c3adef46f73bcdec043"},
	}

	for _, tt := range tests {
		t.Run(tt.alg, func(t *testing.T) {
			assert.Equal(t, tt.expected, runText(t, KindHash, "hello", cfg("algorithm", tt.alg)))
		})
	}
}

func TestHashDefaultsAndErrors(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		runText(t, KindHash, "", cfg()),
		"SHA256 of empty input by default")

	_, err := run(t, KindHash, value.String("hello"), cfg("algorithm", "sha256"))
	require.Error(t, err, "algorithm names are case-sensitive")
	assert.True(t, IsConfigError(err))
}

func TestJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", runText(t, KindJSON, `{"a":1}`, cfg("mode", "format")))
	assert.Equal(t,
		"{\n  \"z\": [\n    1,\n    2\n  ],\n  \"a\": {}\n}",
		runText(t, KindJSON, ` {"z":[1,2],"a":{}} `, cfg()),
		"format keeps key order")
	assert.Equal(t, `{"a":[1,2],"b":"<x>"}`, runText(t, KindJSON, "{ \"a\": [1, 2],\n \"b\": \"<x>\" }", cfg("mode", "compress")))
	assert.Equal(t, `"tab\there \"q\" <x>"`, runText(t, KindJSON, "tab\there \"q\" <x>", cfg("mode", "escape")))
	assert.Equal(t, "line\nbreak", runText(t, KindJSON, `"line\nbreak"`, cfg("mode", "unescape")))
}

func TestJSONUnescapeNonString(t *testing.T) {
	out, err := run(t, KindJSON, value.String(`{"a":[1,true]}`), cfg("mode", "unescape"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, value.Object{"a": value.Array{value.Number("1"), value.Bool(true)}}, out[0])
}

func TestJSONErrors(t *testing.T) {
	for _, mode := range []string{"format", "compress", "unescape"} {
		t.Run(mode, func(t *testing.T) {
			_, err := run(t, KindJSON, value.String(`{"a":`), cfg("mode", mode))
			require.Error(t, err)

			_, err = run(t, KindJSON, value.String(""), cfg("mode", mode))
			require.Error(t, err, "empty input is not JSON")
		})
	}

	_, err := run(t, KindJSON, value.String(`{} {}`), cfg("mode", "format"))
	require.Error(t, err, "trailing document")

	_, err = run(t, KindJSON, value.String(`{}`), cfg("mode", "minify"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestRegex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		pattern  string
		flags    string
		expected string
	}{
		{"global", "foo bar foo", "foo", "g", "foo\nfoo"},
		{"first match with groups", "abc", "(b)(x)?", "", "b\nb\n"},
		{"no match", "abc", "z", "g", "No matches"},
		{"case insensitive default", "hello HELLO", "(Hello)", "gi", "hello\nHELLO"},
		{"case sensitive", "hello HELLO", "hello", "g", "hello"},
		{"multiline", "a1\nb2", "^\\w", "gm", "a\nb"},
		{"dot all", "a\nb", "a.b", "s", "a\nb"},
		{"sticky anchors", "xfoo", "foo", "y", "No matches"},
		{"sticky consecutive", "aab", "a", "gy", "a\na"},
		{"unicode flag accepted", "ü", ".", "u", "ü"},
		{"empty input", "", "(Hello)", "gi", "No matches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, runText(t, KindRegex, tt.input, cfg("pattern", tt.pattern, "flags", tt.flags)))
		})
	}
}

func TestRegexErrors(t *testing.T) {
	_, err := run(t, KindRegex, value.String("x"), cfg("pattern", "(unclosed"))
	require.Error(t, err)

	_, err = run(t, KindRegex, value.String("x"), cfg("pattern", "x", "flags", "gq"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	_, err = run(t, KindRegex, value.String("x"), cfg("pattern", "x", "flags", "gg"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestCryptoKnownVector(t *testing.T) {
	// Decrypts with: openssl enc -d -aes-256-cbc -md md5 -pass pass:k -a
	assert.Equal(t,
		"U2FsdGVkX1/MfrX6S9/79JvLHuAcsFrcfP86gzAwmAk=",
		runText(t, KindCrypto, "secret", cfg("mode", "encrypt", "key", "k")))
}

func TestCryptoRoundTrip(t *testing.T) {
	for _, plaintext := range []string{"secret", "a longer message spanning several AES blocks ✓", "exactly16bytes!!"} {
		ct := runText(t, KindCrypto, plaintext, cfg("mode", "encrypt", "key", "k"))
		assert.NotEqual(t, plaintext, ct)
		assert.Equal(t, plaintext, runText(t, KindCrypto, ct, cfg("mode", "decrypt", "key", "k")))
	}
}

func TestCryptoDeterministic(t *testing.T) {
	a := runText(t, KindCrypto, "secret", cfg("key", "k"))
	b := runText(t, KindCrypto, "secret", cfg("key", "k"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, runText(t, KindCrypto, "secret", cfg("key", "other")))
}

func TestCryptoErrors(t *testing.T) {
	_, err := run(t, KindCrypto, value.String("secret"), cfg("mode", "encrypt", "key", ""))
	require.Error(t, err, "empty key must not pass input through")
	assert.True(t, IsConfigError(err))

	_, err = run(t, KindCrypto, value.String("secret"), cfg("mode", "encrypt"))
	require.Error(t, err, "missing key")

	ct := runText(t, KindCrypto, "secret", cfg("mode", "encrypt", "key", "k"))
	_, err = run(t, KindCrypto, value.String(ct), cfg("mode", "decrypt", "key", "wrong"))
	require.Error(t, err)

	_, err = run(t, KindCrypto, value.String("not base64!"), cfg("mode", "decrypt", "key", "k"))
	require.Error(t, err)

	_, err = run(t, KindCrypto, value.String("SGVsbG8="), cfg("mode", "decrypt", "key", "k"))
	require.Error(t, err, "missing Salted__ header")

	_, err = run(t, KindCrypto, value.String("x"), cfg("mode", "sign", "key", "k"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestCryptoEmptyPlaintextDoesNotDecrypt(t *testing.T) {
	ct := runText(t, KindCrypto, "", cfg("mode", "encrypt", "key", "k"))
	_, err := run(t, KindCrypto, value.String(ct), cfg("mode", "decrypt", "key", "k"))
	require.Error(t, err, "an empty plaintext is reported as a failed decryption")
}

func TestTransformsDoNotMutateArguments(t *testing.T) {
	r := Builtins()
	for _, def := range r.Definitions() {
		t.Run(string(def.Kind), func(t *testing.T) {
			config := def.Defaults.Clone()
			if def.Kind == KindCrypto {
				config["key"] = value.String("k")
			}
			inputs := []value.Value{value.String(`{"a":"Hello"}`)}
			configBefore := config.Clone()
			inputsBefore := value.CloneTuple(inputs)

			_, _ = def.Transform(inputs[:len(def.Inputs)], config)

			assert.True(t, value.Equal(configBefore, config))
			assert.True(t, value.TupleEqual(inputsBefore, inputs))
		})
	}
}
