package operator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/textflow/internal/value"
)

// JSONMode selects the JSON reshaping applied by a json node.
type JSONMode string

const (
	JSONFormat   JSONMode = "format"
	JSONCompress JSONMode = "compress"
	JSONEscape   JSONMode = "escape"
	JSONUnescape JSONMode = "unescape"
)

// JSONConfig is the typed configuration of a json node.
type JSONConfig struct {
	Mode JSONMode
}

var errInvalidJSON = errors.New("invalid JSON input")

func decodeJSONConfig(cfg value.Object) (JSONConfig, error) {
	mode, err := stringField(KindJSON, cfg, "mode", string(JSONFormat))
	if err != nil {
		return JSONConfig{}, err
	}
	switch m := JSONMode(mode); m {
	case JSONFormat, JSONCompress, JSONEscape, JSONUnescape:
		return JSONConfig{Mode: m}, nil
	default:
		return JSONConfig{}, &ConfigError{Kind: KindJSON, Field: "mode", Message: fmt.Sprintf("unknown JSON mode %q", mode)}
	}
}

func jsonDefinition() Definition {
	return Definition{
		Kind:      KindJSON,
		Name:      "JSON",
		Inputs:    inputPorts,
		Outputs:   outputPorts,
		Transform: typed(decodeJSONConfig, runJSON),
		Defaults:  value.Object{"mode": value.String(JSONFormat)},
	}
}

// runJSON reshapes text. format and compress keep key order and literal
// forms of the source document; unescape may yield a non-string value.
func runJSON(inputs []value.Value, cfg JSONConfig) ([]value.Value, error) {
	input := firstText(inputs)

	switch cfg.Mode {
	case JSONEscape:
		return []value.Value{value.String(value.Quote(input))}, nil

	case JSONUnescape:
		v, err := value.Decode([]byte(input))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
		return []value.Value{v}, nil
	}

	src := []byte(strings.TrimSpace(input))
	if !json.Valid(src) {
		return nil, errInvalidJSON
	}

	var buf bytes.Buffer
	var err error
	if cfg.Mode == JSONFormat {
		err = json.Indent(&buf, src, "", "  ")
	} else {
		err = json.Compact(&buf, src)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return []value.Value{value.String(buf.String())}, nil
}
