package curation

import "testing"

// S2: build-number pruning within a hash-suffixed group. Pins the intended
// behaviour directly: every member strictly below the group's maximum
// build_number is removed, ties at the maximum all survive.
func TestApplyBuildPruneKeepsOnlyMaxBuildNumber(t *testing.T) {
	pr := buildRelations(t, []testRecord{
		{filename: "pkg-1.0-py310h1234567_0.tar.bz2", name: "pkg", version: "1.0", build: "py310h1234567_0", buildNumber: 0},
		{filename: "pkg-1.0-py310h1234567_1.tar.bz2", name: "pkg", version: "1.0", build: "py310h1234567_1", buildNumber: 1},
		{filename: "pkg-1.0-py310h1234567_2.tar.bz2", name: "pkg", version: "1.0", build: "py310h1234567_2", buildNumber: 2},
	})

	removed := pr.ApplyBuildPrune()
	if len(removed) != 2 {
		t.Fatalf("expected 2 removals, got %d: %+v", len(removed), removed)
	}
	for _, r := range removed {
		if r.BuildNumber != 2 {
			t.Errorf("expected superceding build_number 2, got %d", r.BuildNumber)
		}
	}

	survivor := mustFindID(t, pr, "pkg-1.0-py310h1234567_2.tar.bz2")
	if pr.Removed(survivor) {
		t.Fatal("expected the highest build_number to survive")
	}
	for _, fn := range []string{"pkg-1.0-py310h1234567_0.tar.bz2", "pkg-1.0-py310h1234567_1.tar.bz2"} {
		id := mustFindID(t, pr, fn)
		if !pr.Removed(id) {
			t.Fatalf("expected %s to be pruned", fn)
		}
	}
}

func TestApplyBuildPruneIgnoresNonHashBuilds(t *testing.T) {
	pr := buildRelations(t, []testRecord{
		{filename: "pkg-1.0-py_0.tar.bz2", name: "pkg", version: "1.0", build: "py_0", buildNumber: 0},
		{filename: "pkg-1.0-py_1.tar.bz2", name: "pkg", version: "1.0", build: "py_1", buildNumber: 1},
	})
	removed := pr.ApplyBuildPrune()
	if len(removed) != 0 {
		t.Fatalf("expected no removals for non-hash builds, got %d", len(removed))
	}
}

func TestApplyBuildPruneSingletonGroupUntouched(t *testing.T) {
	pr := buildRelations(t, []testRecord{
		{filename: "pkg-1.0-py310h1234567_0.tar.bz2", name: "pkg", version: "1.0", build: "py310h1234567_0", buildNumber: 0},
	})
	removed := pr.ApplyBuildPrune()
	if len(removed) != 0 {
		t.Fatalf("expected a lone group member to survive, got %d removals", len(removed))
	}
}
