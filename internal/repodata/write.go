package repodata

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// document is the on-disk shape for one filtered architecture's output.
type document struct {
	RepodataVersion int                       `json:"repodata_version"`
	Info            json.RawMessage           `json:"info,omitempty"`
	Packages        map[string]*PackageRecord `json:"packages"`
	PackagesConda   map[string]*PackageRecord `json:"packages.conda"`
	Removed         []string                  `json:"removed,omitempty"`
}

// WriteFiltered writes repodata.json to dir, keeping only the filenames for
// which keep returns true. The write is transactional in the teacher's
// txn_writer.go idiom: the document is written to a temp file in the
// destination directory first, then renamed into place, with a
// copy-then-remove fallback (github.com/termie/go-shutil) when the rename
// fails because the temp file and destination live on different
// filesystems.
func WriteFiltered(dir string, raw *RawRepoData, baseURL string, keep func(filename string) bool) error {
	doc := document{
		RepodataVersion: 2,
		Info:            withBaseURL(raw.Info, baseURL),
		Packages:        filterMap(raw.Packages, keep),
		PackagesConda:   filterMap(raw.PackagesConda, keep),
		Removed:         raw.Removed,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshal filtered repodata")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", dir)
	}

	dest := filepath.Join(dir, "repodata.json")
	tmp, err := os.CreateTemp(dir, ".repodata-*.json.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrapf(err, "write temp file %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "close temp file %s", tmpPath)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		if fbErr := renameWithFallback(tmpPath, dest); fbErr != nil {
			os.Remove(tmpPath)
			return errors.Wrapf(fbErr, "rename %s to %s", tmpPath, dest)
		}
	}
	return nil
}

func filterMap(m map[string]*PackageRecord, keep func(string) bool) map[string]*PackageRecord {
	out := make(map[string]*PackageRecord, len(m))
	for fn, rec := range m {
		if keep(fn) {
			out[fn] = rec
		}
	}
	return out
}

// withBaseURL synthesises info.base_url when the input lacked one,
// otherwise passes the original info object through untouched.
func withBaseURL(info json.RawMessage, baseURL string) json.RawMessage {
	var m map[string]json.RawMessage
	if len(info) > 0 {
		if err := json.Unmarshal(info, &m); err != nil {
			return info
		}
	} else {
		m = make(map[string]json.RawMessage)
	}
	if _, ok := m["base_url"]; !ok {
		encoded, err := json.Marshal(baseURL)
		if err == nil {
			m["base_url"] = encoded
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return info
	}
	return out
}

// renameWithFallback mirrors txn_writer.go's cross-filesystem rename
// fallback: copy the bytes across and remove the source when a plain rename
// isn't possible (typically EXDEV).
func renameWithFallback(src, dst string) error {
	if err := shutil.CopyFile(src, dst, false); err != nil {
		return err
	}
	return os.Remove(src)
}
