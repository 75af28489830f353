// Package config loads the two external documents the driver consumes
// before it touches any index data: the user-constraints file (required)
// and an optional channel settings file.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/pkgrelations/curate/internal/matchspec"
)

// ConfigError marks a failure reading or parsing the user-constraints
// file or the optional settings file, as distinct from a ParseError
// encountered later against index data.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return "config: " + e.Path + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UserConstraints is a package name mapped to the matchspecs it must
// satisfy, parsed and interned against a shared cache so later lookups
// by the same raw string are pointer-identical.
type UserConstraints map[string][]matchspec.Constraint

// rawUserConstraints is the YAML document shape: name -> list of raw
// constraint strings.
type rawUserConstraints map[string][]string

// LoadUserConstraints reads and parses the YAML document at path,
// interning every constraint string through cache. A single malformed
// entry aborts the whole load.
func LoadUserConstraints(path string, cache *matchspec.Cache) (UserConstraints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var raw rawUserConstraints
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Path: path, Err: errors.Wrap(err, "malformed YAML")}
	}

	out := make(UserConstraints, len(raw))
	for name, specs := range raw {
		parsed := make([]matchspec.Constraint, 0, len(specs))
		for _, s := range specs {
			c, err := cache.GetOrInsert(s)
			if err != nil {
				return nil, &ConfigError{Path: path, Err: errors.Wrapf(err, "package %s: constraint %q", name, s)}
			}
			parsed = append(parsed, c)
		}
		out[name] = parsed
	}
	return out, nil
}
