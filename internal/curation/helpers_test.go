package curation

import (
	"testing"

	"github.com/pkgrelations/curate/internal/matchspec"
	"github.com/pkgrelations/curate/internal/repodata"
)

// testRecord is the minimal shape used to build a PackageRelations in
// tests. Records must already be supplied in ascending (name, version,
// filename) order, matching what the driver's k-way merge guarantees.
type testRecord struct {
	filename    string
	name        string
	version     string
	build       string
	buildNumber uint64
	depends     []string
}

func buildRelations(t *testing.T, records []testRecord) *PackageRelations {
	t.Helper()
	cache := matchspec.NewCache(64)
	pr := New(cache)
	for _, r := range records {
		rec := repodata.NewRecord(r.name, r.version, r.build, r.buildNumber, r.depends)
		if err := pr.Insert(r.filename, rec); err != nil {
			t.Fatalf("insert %s: %v", r.filename, err)
		}
	}
	pr.ShrinkToFit()
	return pr
}

// featureTestRecord extends testRecord with the feature fields the
// feature-ban pass inspects, which the repodata.NewRecord constructor
// doesn't take directly.
type featureTestRecord struct {
	filename      string
	name          string
	version       string
	feature       string
	trackFeatures string
}

func buildRelationsWithFeatures(t *testing.T, records []featureTestRecord) *PackageRelations {
	t.Helper()
	cache := matchspec.NewCache(64)
	pr := New(cache)
	for _, r := range records {
		rec := repodata.NewRecord(r.name, r.version, "", 0, nil)
		rec.FeaturesField = r.feature
		rec.TrackFeaturesField = r.trackFeatures
		if err := pr.Insert(r.filename, rec); err != nil {
			t.Fatalf("insert %s: %v", r.filename, err)
		}
	}
	pr.ShrinkToFit()
	return pr
}

func mustParseConstraints(t *testing.T, specs ...string) []matchspec.Constraint {
	t.Helper()
	out := make([]matchspec.Constraint, 0, len(specs))
	for _, s := range specs {
		c, err := matchspec.Parse(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		out = append(out, c)
	}
	return out
}
