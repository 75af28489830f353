package curation

import "github.com/pkgrelations/curate/internal/matchspec"

// ApplyUserMatchspecs keeps, among the surviving variants of name, only
// those matching at least one of specs. Running it twice with the same
// input is a no-op the second time: every id it would remove is already
// removed, so the guard at the top of the loop skips it without re-emitting
// a log entry.
func (pr *PackageRelations) ApplyUserMatchspecs(name string, specs []matchspec.Constraint) []RemovedByUser {
	rng, ok := pr.nameRanges.Get(name)
	if !ok {
		return nil
	}
	var result []RemovedByUser
	for off := uint16(0); off < rng.Count; off++ {
		id := rng.First + PackageId(off)
		if pr.Removed(id) {
			continue
		}
		rec := pr.Record(id)
		matched := false
		for _, spec := range specs {
			if spec.Matches(rec) {
				matched = true
				break
			}
		}
		if !matched && pr.MarkRemoved(id) {
			result = append(result, RemovedByUser{Filename: pr.Filename(id), PackageName: rec.Name()})
		}
	}
	return result
}
