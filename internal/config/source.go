package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Source produces a partial mapping of canonical keys to raw values. Sources
// are folded in order by Resolve; later sources overwrite earlier ones.
type Source interface {
	Name() string
	Values() (map[string]string, error)
}

type sourceFunc struct {
	name string
	fn   func() (map[string]string, error)
}

func (s sourceFunc) Name() string                       { return s.name }
func (s sourceFunc) Values() (map[string]string, error) { return s.fn() }

// EnvSource reads recognised keys from a process environment in os.Environ
// form. Unrecognised variables are ignored.
func EnvSource(environ []string) Source {
	return sourceFunc{name: "environment", fn: func() (map[string]string, error) {
		out := make(map[string]string)
		for _, kv := range environ {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || !isKnownKey(key) {
				continue
			}
			out[key] = value
		}
		return out, nil
	}}
}

// FileSource parses a KEY=VALUE settings file. Comment and blank lines are
// ignored, surrounding quotes are stripped and `$` is kept literally. When
// required is false a missing file yields an empty mapping.
func FileSource(path string, required bool) Source {
	return sourceFunc{name: "settings file " + path, fn: func() (map[string]string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if !required && errors.Is(err, fs.ErrNotExist) {
				return map[string]string{}, nil
			}
			return nil, fmt.Errorf("cannot read: %w", err)
		}
		return parseSettings(string(data))
	}}
}

// TextSource parses settings-file content that is already in memory.
func TextSource(name, text string) Source {
	return sourceFunc{name: name, fn: func() (map[string]string, error) {
		return parseSettings(text)
	}}
}

// dollarMark stands in for `$` while godotenv parses, so values such as
// "Pay $100" are not run through variable expansion.
const dollarMark = "\uE000"

func parseSettings(text string) (map[string]string, error) {
	text = strings.ReplaceAll(dropMalformedLines(text), "$", dollarMark)
	vals, err := godotenv.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("cannot parse: %w", err)
	}
	for k, v := range vals {
		vals[k] = strings.ReplaceAll(v, dollarMark, "$")
	}
	return filterKnown(vals), nil
}

// dropMalformedLines removes lines that carry no KEY=VALUE (or KEY: VALUE)
// pair or whose key godotenv would reject. Lines inside a multi-line quoted value are left alone.
func dropMalformedLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	var open byte
	for _, line := range lines {
		if open != 0 {
			out = append(out, line)
			if closesQuote(line, open) {
				open = 0
			}
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			out = append(out, line)
			continue
		}
		idx := strings.IndexAny(trimmed, "=:")
		if idx <= 0 || !validKeyName(trimmed[:idx]) {
			continue
		}
		out = append(out, line)
		value := strings.TrimSpace(trimmed[idx+1:])
		if value != "" && (value[0] == '"' || value[0] == '\'') && !closesQuote(value[1:], value[0]) {
			open = value[0]
		}
	}
	return strings.Join(out, "\n")
}

func validKeyName(key string) bool {
	key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
	if key == "" {
		return false
	}
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

func closesQuote(s string, quote byte) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return true
		}
	}
	return false
}

// MapSource wraps a fixed mapping, mostly for tests and programmatic overrides.
func MapSource(name string, values map[string]string) Source {
	return sourceFunc{name: name, fn: func() (map[string]string, error) {
		return filterKnown(values), nil
	}}
}

// FlagSource exposes the command-line flags that were explicitly set. bindings
// maps a flag name to the canonical key it overrides.
func FlagSource(flags *pflag.FlagSet, bindings map[string]string) Source {
	return sourceFunc{name: "command line", fn: func() (map[string]string, error) {
		out := make(map[string]string)
		if flags == nil {
			return out, nil
		}
		for name, key := range bindings {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			out[key] = f.Value.String()
		}
		return out, nil
	}}
}

func filterKnown(vals map[string]string) map[string]string {
	out := make(map[string]string, len(vals))
	for k, v := range vals {
		k = strings.TrimSpace(k)
		if isKnownKey(k) {
			out[k] = v
		}
	}
	return out
}
