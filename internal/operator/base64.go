package operator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/textflow/internal/value"
)

// Base64Mode selects the base64 direction.
type Base64Mode string

const (
	Base64Encode Base64Mode = "encode"
	Base64Decode Base64Mode = "decode"
)

// Base64Config is the typed configuration of a base64 node.
type Base64Config struct {
	Mode Base64Mode
}

func decodeBase64Config(cfg value.Object) (Base64Config, error) {
	mode, err := stringField(KindBase64, cfg, "mode", string(Base64Encode))
	if err != nil {
		return Base64Config{}, err
	}
	switch m := Base64Mode(mode); m {
	case Base64Encode, Base64Decode:
		return Base64Config{Mode: m}, nil
	default:
		return Base64Config{}, &ConfigError{Kind: KindBase64, Field: "mode", Message: fmt.Sprintf("unknown mode %q", mode)}
	}
}

func base64Definition() Definition {
	return Definition{
		Kind:      KindBase64,
		Name:      "Base64",
		Inputs:    inputPorts,
		Outputs:   outputPorts,
		Transform: typed(decodeBase64Config, runBase64),
		Defaults:  value.Object{"mode": value.String(Base64Encode)},
	}
}

func runBase64(inputs []value.Value, cfg Base64Config) ([]value.Value, error) {
	input := firstText(inputs)
	if cfg.Mode == Base64Encode {
		return []value.Value{value.String(base64.StdEncoding.EncodeToString([]byte(input)))}, nil
	}

	decoded, err := decodeBase64(input)
	if err != nil {
		return nil, fmt.Errorf("invalid input for base64: %w", err)
	}
	if !utf8.Valid(decoded) {
		return nil, errors.New("invalid input for base64: decoded bytes are not valid UTF-8")
	}
	return []value.Value{value.String(decoded)}, nil
}

// decodeBase64 accepts standard or URL-safe alphabets, with or without
// padding, and ignores ASCII whitespace (line-wrapped input).
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
	s = strings.TrimRight(s, "=")

	if strings.ContainsAny(s, "-_") {
		return base64.RawURLEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
