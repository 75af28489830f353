package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkgrelations/curate/internal/clog"
	"github.com/pkgrelations/curate/internal/config"
	"github.com/pkgrelations/curate/internal/fetch"
	"github.com/pkgrelations/curate/internal/matchspec"
)

const linuxRepodata = `{
  "packages": {
    "numpy-1.20-0.tar.bz2": {"name": "numpy", "version": "1.20", "build": "0", "build_number": 0, "depends": []},
    "numpy-1.24-0.tar.bz2": {"name": "numpy", "version": "1.24", "build": "0", "build_number": 0, "depends": []},
    "pandas-2.0-0.tar.bz2": {"name": "pandas", "version": "2.0", "build": "0", "build_number": 0, "depends": ["numpy >=1.24"]}
  },
  "packages.conda": {}
}`

const noarchRepodata = `{
  "packages": {
    "six-1.16-0.tar.bz2": {"name": "six", "version": "1.16", "build": "0", "build_number": 0, "depends": []}
  },
  "packages.conda": {}
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/linux-64/repodata.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(linuxRepodata))
	})
	mux.HandleFunc("/noarch/repodata.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(noarchRepodata))
	})
	return httptest.NewServer(mux)
}

func TestDriverRunWritesFilteredArchAndNoarchOutput(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	f, err := fetch.New(filepath.Join(t.TempDir(), "cache"), srv.URL, false, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	cache := matchspec.NewCache(16)
	numpyConstraint, err := cache.GetOrInsert(">=1.24")
	if err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	var logBuf bytes.Buffer
	d := &Driver{
		Fetcher: f,
		Cache:   cache,
		Tracer:  clog.NewTracer(clog.New(&logBuf), false),
		Out:     clog.New(&logBuf),
		Opts: Options{
			UserConstraints: config.UserConstraints{"numpy": {numpyConstraint}},
			BannedFeatures:  map[string]struct{}{},
			ChannelAlias:    srv.URL,
			OutputDir:       outDir,
			Explain:         true,
		},
	}

	if err := d.Run(context.Background(), []string{"linux-64"}); err != nil {
		t.Fatal(err)
	}

	archData, err := os.ReadFile(filepath.Join(outDir, "linux-64", "repodata.json"))
	if err != nil {
		t.Fatal(err)
	}
	var archDoc struct {
		Packages map[string]json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(archData, &archDoc); err != nil {
		t.Fatal(err)
	}
	if _, ok := archDoc.Packages["numpy-1.20-0.tar.bz2"]; ok {
		t.Fatal("expected numpy 1.20 to be filtered out (fails user constraint)")
	}
	if _, ok := archDoc.Packages["numpy-1.24-0.tar.bz2"]; !ok {
		t.Fatal("expected numpy 1.24 to survive")
	}
	if _, ok := archDoc.Packages["pandas-2.0-0.tar.bz2"]; !ok {
		t.Fatal("expected pandas to survive (its numpy dependency is still satisfiable)")
	}

	noarchData, err := os.ReadFile(filepath.Join(outDir, "noarch", "repodata.json"))
	if err != nil {
		t.Fatal(err)
	}
	var noarchDoc struct {
		Packages map[string]json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(noarchData, &noarchDoc); err != nil {
		t.Fatal(err)
	}
	if _, ok := noarchDoc.Packages["six-1.16-0.tar.bz2"]; !ok {
		t.Fatal("expected six to survive into the noarch output")
	}

	if logBuf.Len() == 0 {
		t.Fatal("expected explain output to be written")
	}
}

func TestDriverRunCascadesUnresolveablesAcrossArchAndNoarch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/linux-64/repodata.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
		  "packages": {
		    "numpy-1.20-0.tar.bz2": {"name": "numpy", "version": "1.20", "build": "0", "build_number": 0, "depends": []}
		  },
		  "packages.conda": {}
		}`))
	})
	mux.HandleFunc("/noarch/repodata.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
		  "packages": {
		    "pandas-2.0-0.tar.bz2": {"name": "pandas", "version": "2.0", "build": "0", "build_number": 0, "depends": ["numpy >=2.0"]}
		  },
		  "packages.conda": {}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, err := fetch.New(filepath.Join(t.TempDir(), "cache"), srv.URL, false, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	outDir := t.TempDir()
	d := &Driver{
		Fetcher: f,
		Cache:   matchspec.NewCache(16),
		Tracer:  clog.NewTracer(clog.New(&bytes.Buffer{}), false),
		Out:     clog.New(&bytes.Buffer{}),
		Opts: Options{
			ChannelAlias: srv.URL,
			OutputDir:    outDir,
		},
	}

	if err := d.Run(context.Background(), []string{"linux-64"}); err != nil {
		t.Fatal(err)
	}

	noarchData, err := os.ReadFile(filepath.Join(outDir, "noarch", "repodata.json"))
	if err != nil {
		t.Fatal(err)
	}
	var noarchDoc struct {
		Packages map[string]json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(noarchData, &noarchDoc); err != nil {
		t.Fatal(err)
	}
	if _, ok := noarchDoc.Packages["pandas-2.0-0.tar.bz2"]; ok {
		t.Fatal("expected pandas to cascade-remove: no numpy >=2.0 provider exists")
	}
}
