package operator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/roach88/textflow/internal/value"
)

// noMatches is the output when the pattern matches nothing.
const noMatches = "No matches"

// RegexConfig is the typed configuration of a regex node.
type RegexConfig struct {
	Pattern string
	Global  bool
	Sticky  bool

	re *regexp.Regexp
}

// decodeRegexConfig compiles the pattern with its flags.
//
// Flags follow the usual g/i/m/s/u/y letters: i, m and s become inline RE2
// flags, g collects every match, y anchors matching at the current position
// and u is accepted as a no-op since matching is always UTF-8 aware.
func decodeRegexConfig(cfg value.Object) (RegexConfig, error) {
	pattern, err := stringField(KindRegex, cfg, "pattern", "")
	if err != nil {
		return RegexConfig{}, err
	}
	flags, err := stringField(KindRegex, cfg, "flags", "")
	if err != nil {
		return RegexConfig{}, err
	}

	rc := RegexConfig{Pattern: pattern}
	var inline strings.Builder
	seen := make(map[rune]bool, len(flags))
	for _, f := range flags {
		if seen[f] {
			return RegexConfig{}, &ConfigError{Kind: KindRegex, Field: "flags", Message: fmt.Sprintf("duplicate flag %q", f)}
		}
		seen[f] = true

		switch f {
		case 'g':
			rc.Global = true
		case 'y':
			rc.Sticky = true
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'u':
		default:
			return RegexConfig{}, &ConfigError{Kind: KindRegex, Field: "flags", Message: fmt.Sprintf("invalid flag %q", f)}
		}
	}

	expr := pattern
	if rc.Sticky {
		expr = `\A(?:` + expr + `)`
	}
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return RegexConfig{}, fmt.Errorf("invalid regex pattern: %w", err)
	}
	rc.re = re
	return rc, nil
}

func regexDefinition() Definition {
	return Definition{
		Kind:      KindRegex,
		Name:      "Regex Match",
		Inputs:    inputPorts,
		Outputs:   outputPorts,
		Transform: typed(decodeRegexConfig, runRegex),
		Defaults: value.Object{
			"pattern": value.String("(Hello)"),
			"flags":   value.String("gi"),
		},
	}
}

// runRegex joins matches with newlines. Global mode lists every match;
// otherwise the first match is followed by its capture groups.
func runRegex(inputs []value.Value, cfg RegexConfig) ([]value.Value, error) {
	input := firstText(inputs)

	var matches []string
	switch {
	case cfg.Global && cfg.Sticky:
		matches = stickyMatches(cfg.re, input)
	case cfg.Global:
		matches = cfg.re.FindAllString(input, -1)
	default:
		matches = cfg.re.FindStringSubmatch(input)
	}

	if matches == nil {
		return []value.Value{value.String(noMatches)}, nil
	}
	return []value.Value{value.String(strings.Join(matches, "\n"))}, nil
}

// stickyMatches collects consecutive matches, each anchored where the
// previous one ended. An empty match advances by one rune.
func stickyMatches(re *regexp.Regexp, input string) []string {
	var matches []string
	pos := 0
	for pos <= len(input) {
		loc := re.FindStringIndex(input[pos:])
		if loc == nil {
			break
		}
		matches = append(matches, input[pos:pos+loc[1]])
		if loc[1] == 0 {
			if pos == len(input) {
				break
			}
			_, size := utf8.DecodeRuneInString(input[pos:])
			pos += size
			continue
		}
		pos += loc[1]
	}
	return matches
}
