package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Settings carries the non-CLI tunables read from .curaterc.toml. Its
// absence is not an error; DefaultSettings is used when no such file
// exists.
type Settings struct {
	CacheDir   string
	HTTPTimeout time.Duration
	Workers    int
}

// DefaultSettings returns the tunables used when no .curaterc.toml is
// present or a key is left unset.
func DefaultSettings() Settings {
	return Settings{
		CacheDir:    ".curate-cache",
		HTTPTimeout: 30 * time.Second,
		Workers:     4,
	}
}

// LoadSettings reads path if it exists, overlaying any keys it sets on
// top of DefaultSettings. A missing file is not an error; a malformed
// one is.
func LoadSettings(path string) (Settings, error) {
	out := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return out, &ConfigError{Path: path, Err: err}
	}

	tree, err := toml.LoadBytes(data)
	if err != nil {
		return out, &ConfigError{Path: path, Err: errors.Wrap(err, "malformed TOML")}
	}

	mapper := &tomlMapper{Tree: tree}
	if v := readStringKey(mapper, "cache_dir"); v != "" {
		out.CacheDir = v
	}
	if v := readIntKey(mapper, "http_timeout_seconds"); v != 0 {
		out.HTTPTimeout = time.Duration(v) * time.Second
	}
	if v := readIntKey(mapper, "workers"); v != 0 {
		out.Workers = int(v)
	}
	if mapper.Error != nil {
		return DefaultSettings(), &ConfigError{Path: path, Err: mapper.Error}
	}
	return out, nil
}

// tomlMapper mirrors the teacher's toml.go mapper idiom: a shared error
// slot so a chain of reads can stop checking after the first failure.
type tomlMapper struct {
	Tree  *toml.Tree
	Error error
}

func readStringKey(mapper *tomlMapper, key string) string {
	if mapper.Error != nil {
		return ""
	}
	raw := mapper.Tree.Get(key)
	if raw == nil {
		return ""
	}
	value, ok := raw.(string)
	if !ok {
		mapper.Error = errors.Errorf("invalid type for %s, should be a string, but it is a %T", key, raw)
		return ""
	}
	return value
}

func readIntKey(mapper *tomlMapper, key string) int64 {
	if mapper.Error != nil {
		return 0
	}
	raw := mapper.Tree.Get(key)
	if raw == nil {
		return 0
	}
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		mapper.Error = errors.Errorf("invalid type for %s, should be an integer, but it is a %T", key, raw)
		return 0
	}
}
