package curation

import (
	"regexp"
	"strconv"
	"strings"
)

// hashBuildPattern matches build strings that encode a conda-build content
// hash segment followed by a numeric tail (e.g. "py310h1234567_0"). Only
// records whose build string matches this pattern participate in
// build-number pruning; anything else (noarch "py_0"-style builds, for
// instance) is left untouched.
var hashBuildPattern = regexp.MustCompile(`.*h[A-Za-z0-9]{7}.+\d`)

type buildGroupKey struct {
	name          string
	version       string
	strippedBuild string
}

// stripBuildNumberSuffix removes a trailing occurrence of the build number
// from the build string, the way the group key is formed: two builds that
// differ only in their encoded build number are otherwise identical.
func stripBuildNumberSuffix(build string, buildNumber uint64) string {
	suffix := strconv.FormatUint(buildNumber, 10)
	if strings.HasSuffix(build, suffix) {
		return build[:len(build)-len(suffix)]
	}
	return build
}

// ApplyBuildPrune keeps, within each (name, version, stripped build) group
// of two or more hash-suffixed records, only those sharing the group's
// maximum build_number; every other member is removed. Ties at the maximum
// all survive.
func (pr *PackageRelations) ApplyBuildPrune() []RemovedBySupercedingBuild {
	groups := make(map[buildGroupKey][]PackageId)
	for id := PackageId(0); int(id) < pr.Len(); id++ {
		rec := pr.Record(id)
		if !hashBuildPattern.MatchString(rec.Build()) {
			continue
		}
		key := buildGroupKey{
			name:          rec.Name(),
			version:       rec.Version().String(),
			strippedBuild: stripBuildNumberSuffix(rec.Build(), rec.BuildNumber()),
		}
		groups[key] = append(groups[key], id)
	}

	var result []RemovedBySupercedingBuild
	for _, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		var max uint64
		for _, id := range ids {
			if bn := pr.Record(id).BuildNumber(); bn > max {
				max = bn
			}
		}
		for _, id := range ids {
			rec := pr.Record(id)
			if rec.BuildNumber() < max && pr.MarkRemoved(id) {
				result = append(result, RemovedBySupercedingBuild{
					Filename:    pr.Filename(id),
					PackageName: rec.Name(),
					BuildNumber: max,
				})
			}
		}
	}
	return result
}
