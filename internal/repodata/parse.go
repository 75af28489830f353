package repodata

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// ParseFile reads and parses one repodata.json document, stamping each
// package record with the filename it was keyed under.
func ParseFile(path string) (*RawRepoData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read repodata file %s", path)
	}
	raw, err := ParseBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse repodata file %s", path)
	}
	return raw, nil
}

// ParseBytes parses one repodata.json document already resident in memory
// (e.g. a body returned by internal/fetch), stamping each package record
// with the filename it was keyed under.
func ParseBytes(data []byte) (*RawRepoData, error) {
	var raw RawRepoData
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse repodata document")
	}
	for fn, rec := range raw.Packages {
		rec.Filename = fn
	}
	for fn, rec := range raw.PackagesConda {
		rec.Filename = fn
	}
	return &raw, nil
}
