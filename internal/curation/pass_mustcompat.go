package curation

import "github.com/pkgrelations/curate/internal/matchspec"

// ApplyMustCompatible removes every surviving record that uses a dependency
// name in common with root but whose constraint on that name disagrees with
// every surviving variant of root, then recurses into each such common
// dependency name. A visited-root set bounds the recursion even when
// nominated roots form a dependency cycle.
func (pr *PackageRelations) ApplyMustCompatible(root string) []RemovedBecauseIncompatible {
	var result []RemovedBecauseIncompatible
	pr.applyMustCompatible(root, make(map[string]bool), &result)
	return result
}

func (pr *PackageRelations) applyMustCompatible(root string, visited map[string]bool, result *[]RemovedBecauseIncompatible) {
	if visited[root] {
		return
	}
	visited[root] = true

	rng, ok := pr.nameRanges.Get(root)
	if !ok {
		return
	}

	var commonNames map[string]bool
	unionOfSpecs := make(map[string]map[matchspec.Constraint]struct{})
	first := true

	for off := uint16(0); off < rng.Count; off++ {
		id := rng.First + PackageId(off)
		if pr.Removed(id) {
			continue
		}
		localNames := make(map[string]bool)
		for _, d := range pr.Record(id).Depends() {
			depName, spec := splitDependencyClause(d)
			constraint, err := pr.cache.GetOrInsert(spec)
			if err != nil {
				// Already validated during Insert; a failure here would be
				// a cache inconsistency, not a fresh data error.
				continue
			}
			localNames[depName] = true
			if unionOfSpecs[depName] == nil {
				unionOfSpecs[depName] = make(map[matchspec.Constraint]struct{})
			}
			unionOfSpecs[depName][constraint] = struct{}{}
		}

		if first {
			commonNames = localNames
			first = false
			continue
		}
		for n := range commonNames {
			if !localNames[n] {
				delete(commonNames, n)
			}
		}
		if len(commonNames) == 0 {
			break
		}
	}

	if len(commonNames) == 0 {
		return
	}

	for depName := range commonNames {
		specSet := unionOfSpecs[depName]
		specs := make([]matchspec.Constraint, 0, len(specSet))
		for c := range specSet {
			specs = append(specs, c)
		}
		depRng, ok := pr.nameRanges.Get(depName)
		if !ok {
			continue
		}
		for off := uint16(0); off < depRng.Count; off++ {
			id := depRng.First + PackageId(off)
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
				*result = append(*result, RemovedBecauseIncompatible{
					Filename:         pr.Filename(id),
					PackageName:      rec.Name(),
					IncompatibleWith: root,
				})
			}
		}
	}

	for depName := range commonNames {
		pr.applyMustCompatible(depName, visited, result)
	}
}
