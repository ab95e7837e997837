package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a Value. It feeds
// fingerprints only; distinct values such as 1 and 1.0 encode the same.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping, U+2028/U+2029 written literally
//  3. Strings are NFC normalized
//  4. Numbers are normalized (1.0 and 1 encode the same)
//  5. Undefined encodes as null in arrays and is omitted from objects
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalTuple produces canonical JSON for an ordered tuple of values.
func MarshalTuple(vals []Value) ([]byte, error) {
	return MarshalCanonical(Array(vals))
}

// Marshal encodes v as JSON without normalizing it. Strings keep their
// code points and numbers keep their literal text. Keys are sorted the
// same way as MarshalCanonical and Undefined is handled the same way.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value, canonical bool) error {
	switch val := v.(type) {
	case nil, Undefined, Null:
		buf.WriteString("null")
	case String:
		buf.WriteString(quoteAs(string(val), canonical))
	case Number:
		if !canonical {
			lit := string(val)
			if lit == "" || (lit[0] != '-' && (lit[0] < '0' || lit[0] > '9')) || !json.Valid([]byte(lit)) {
				return fmt.Errorf("invalid number literal %q", lit)
			}
			buf.WriteString(lit)
			return nil
		}
		n, err := canonicalNumber(string(val))
		if err != nil {
			return err
		}
		buf.WriteString(n)
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, elem, canonical); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		first := true
		for _, k := range val.SortedKeys() {
			if IsUndefined(val[k]) {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.WriteString(quoteAs(k, canonical))
			buf.WriteByte(':')
			if err := writeJSON(buf, val[k], canonical); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported value type: %T", v)
	}
	return nil
}

func quoteAs(s string, canonical bool) string {
	if canonical {
		s = norm.NFC.String(s)
	}
	return Quote(s)
}

// canonicalNumber normalizes a number literal. Integers that fit int64 print
// in decimal, everything else goes through float64 shortest formatting.
func canonicalNumber(lit string) (string, error) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return "", fmt.Errorf("invalid number literal %q", lit)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// Quote returns s as a JSON string literal.
//
// Only the quote, the backslash and control characters below U+0020 are
// escaped; <, >, & and U+2028/U+2029 are written as-is. Invalid UTF-8 is
// replaced with U+FFFD.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
