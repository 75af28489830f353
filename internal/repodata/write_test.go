package repodata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFilteredKeepsOnlySelectedAndSynthesisesBaseURL(t *testing.T) {
	dir := t.TempDir()
	raw := &RawRepoData{
		Packages: map[string]*PackageRecord{
			"a-1.0-0.tar.bz2": {NameField: "a", VersionField: "1.0"},
			"b-1.0-0.tar.bz2": {NameField: "b", VersionField: "1.0"},
		},
		PackagesConda: map[string]*PackageRecord{},
	}

	keep := func(fn string) bool { return fn == "a-1.0-0.tar.bz2" }
	if err := WriteFiltered(dir, raw, "https://conda.anaconda.org/conda-forge/linux-64", keep); err != nil {
		t.Fatalf("WriteFiltered: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "repodata.json"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(doc.Packages) != 1 {
		t.Fatalf("expected 1 surviving package, got %d", len(doc.Packages))
	}
	if _, ok := doc.Packages["a-1.0-0.tar.bz2"]; !ok {
		t.Fatal("expected a-1.0-0.tar.bz2 to survive filtering")
	}
	if doc.RepodataVersion != 2 {
		t.Fatalf("expected repodata_version 2, got %d", doc.RepodataVersion)
	}

	var info map[string]string
	if err := json.Unmarshal(doc.Info, &info); err != nil {
		t.Fatalf("unmarshal info: %v", err)
	}
	if info["base_url"] != "https://conda.anaconda.org/conda-forge/linux-64" {
		t.Fatalf("expected synthesised base_url, got %q", info["base_url"])
	}
}

func TestWriteFilteredPassesThroughRemoved(t *testing.T) {
	dir := t.TempDir()
	raw := &RawRepoData{
		Packages:      map[string]*PackageRecord{},
		PackagesConda: map[string]*PackageRecord{},
		Removed:       []string{"a-1.0-0.tar.bz2", "b-1.0-0.tar.bz2"},
	}
	if err := WriteFiltered(dir, raw, "https://conda.anaconda.org/conda-forge/linux-64", func(string) bool { return true }); err != nil {
		t.Fatalf("WriteFiltered: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "repodata.json"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(doc.Removed) != 2 || doc.Removed[0] != "a-1.0-0.tar.bz2" || doc.Removed[1] != "b-1.0-0.tar.bz2" {
		t.Fatalf("expected removed set to round-trip unchanged, got %v", doc.Removed)
	}
}

func TestWriteFilteredPreservesExistingBaseURL(t *testing.T) {
	dir := t.TempDir()
	raw := &RawRepoData{
		Info:          json.RawMessage(`{"base_url":"https://example.test/"}`),
		Packages:      map[string]*PackageRecord{},
		PackagesConda: map[string]*PackageRecord{},
	}
	if err := WriteFiltered(dir, raw, "https://ignored/", func(string) bool { return true }); err != nil {
		t.Fatalf("WriteFiltered: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "repodata.json"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(doc.Info, &info); err != nil {
		t.Fatalf("unmarshal info: %v", err)
	}
	if info["base_url"] != "https://example.test/" {
		t.Fatalf("expected original base_url preserved, got %q", info["base_url"])
	}
}
