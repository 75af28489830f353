package curation

import "testing"

// S5: must-compatible union-of-constraints rejection. Two surviving python
// variants pin numpy to disjoint ranges; a numpy build matching neither
// range cannot coexist with any surviving python and is removed.
func TestApplyMustCompatibleRejectsOutsideUnion(t *testing.T) {
	pr := buildRelations(t, []testRecord{
		{filename: "numpy-1.20-0.tar.bz2", name: "numpy", version: "1.20"},
		{filename: "numpy-1.24-0.tar.bz2", name: "numpy", version: "1.24"},
		{filename: "numpy-1.26-0.tar.bz2", name: "numpy", version: "1.26"},
		{filename: "python-3.10-0.tar.bz2", name: "python", version: "3.10", depends: []string{"numpy >=1.21,<1.23"}},
		{filename: "python-3.11-0.tar.bz2", name: "python", version: "3.11", depends: []string{"numpy >=1.24,<1.27"}},
	})

	removed := pr.ApplyMustCompatible("python")
	if len(removed) != 1 {
		t.Fatalf("expected 1 removal, got %d: %+v", len(removed), removed)
	}
	if removed[0].Filename != "numpy-1.20-0.tar.bz2" {
		t.Fatalf("expected numpy 1.20 to be removed (matches neither python's range), got %s", removed[0].Filename)
	}
	for _, fn := range []string{"numpy-1.24-0.tar.bz2", "numpy-1.26-0.tar.bz2"} {
		id := mustFindID(t, pr, fn)
		if pr.Removed(id) {
			t.Fatalf("did not expect %s to be removed", fn)
		}
	}
}

func TestApplyMustCompatibleUnknownRootIsNoop(t *testing.T) {
	pr := buildRelations(t, []testRecord{
		{filename: "a-1.0-0.tar.bz2", name: "a", version: "1.0"},
	})
	if removed := pr.ApplyMustCompatible("doesnotexist"); removed != nil {
		t.Fatalf("expected nil, got %+v", removed)
	}
}

func TestApplyMustCompatibleRecursesIntoCommonDependencies(t *testing.T) {
	// python pins numpy, and every surviving numpy variant pins libblas to a
	// range; a libblas build outside that range must also be removed via
	// recursion, even though python never names libblas directly.
	pr := buildRelations(t, []testRecord{
		{filename: "libblas-1.0-0.tar.bz2", name: "libblas", version: "1.0"},
		{filename: "libblas-2.0-0.tar.bz2", name: "libblas", version: "2.0"},
		{filename: "numpy-1.26-0.tar.bz2", name: "numpy", version: "1.26", depends: []string{"libblas >=2.0"}},
		{filename: "python-3.11-0.tar.bz2", name: "python", version: "3.11", depends: []string{"numpy >=1.26"}},
	})

	removed := pr.ApplyMustCompatible("python")
	var gotLibblas bool
	for _, r := range removed {
		if r.Filename == "libblas-1.0-0.tar.bz2" {
			gotLibblas = true
		}
	}
	if !gotLibblas {
		t.Fatalf("expected libblas 1.0 to be removed via recursion through numpy, got %+v", removed)
	}
}
