package curation

import "testing"

func TestInsertBuildsContiguousNameRanges(t *testing.T) {
	pr := buildRelations(t, []testRecord{
		{filename: "numpy-1.24-0.tar.bz2", name: "numpy", version: "1.24"},
		{filename: "numpy-1.25-0.tar.bz2", name: "numpy", version: "1.25"},
		{filename: "scipy-1.0-0.tar.bz2", name: "scipy", version: "1.0"},
	})

	rng, ok := pr.NameRangeOf("numpy")
	if !ok || rng.Count != 2 {
		t.Fatalf("expected numpy range of 2, got %+v ok=%v", rng, ok)
	}
	for off := uint16(0); off < rng.Count; off++ {
		id := rng.First + PackageId(off)
		if pr.Record(id).Name() != "numpy" {
			t.Fatalf("id %d in numpy's range has name %s", id, pr.Record(id).Name())
		}
	}

	sciRng, ok := pr.NameRangeOf("scipy")
	if !ok || sciRng.Count != 1 {
		t.Fatalf("expected scipy range of 1, got %+v ok=%v", sciRng, ok)
	}

	packages, names, _ := pr.Stats()
	if packages != 3 {
		t.Fatalf("expected 3 packages, got %d", packages)
	}
	if names != 2 {
		t.Fatalf("expected 2 distinct names, got %d", names)
	}
}

func TestInsertOutOfOrderPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic for out-of-order insertion")
		}
		if _, ok := r.(*InvariantError); !ok {
			t.Fatalf("expected *InvariantError, got %T: %v", r, r)
		}
	}()
	buildRelations(t, []testRecord{
		{filename: "b-2.0-0.tar.bz2", name: "b", version: "2.0"},
		{filename: "a-1.0-0.tar.bz2", name: "a", version: "1.0"},
	})
}

func TestDensityInvariant(t *testing.T) {
	pr := buildRelations(t, []testRecord{
		{filename: "a-1.0-0.tar.bz2", name: "a", version: "1.0"},
		{filename: "a-1.1-0.tar.bz2", name: "a", version: "1.1"},
	})
	if pr.removed.len() != pr.Len() {
		t.Fatalf("expected removed bitmap length %d to equal package count %d", pr.removed.len(), pr.Len())
	}
}

func TestMonotoneRemoval(t *testing.T) {
	pr := buildRelations(t, []testRecord{
		{filename: "a-1.0-0.tar.bz2", name: "a", version: "1.0"},
	})
	if pr.Removed(0) {
		t.Fatal("expected id 0 to start unremoved")
	}
	if !pr.MarkRemoved(0) {
		t.Fatal("expected the first MarkRemoved to report a new removal")
	}
	if pr.MarkRemoved(0) {
		t.Fatal("expected a second MarkRemoved to report no change")
	}
	if !pr.Removed(0) {
		t.Fatal("expected id 0 to remain removed")
	}
}
