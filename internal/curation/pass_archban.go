package curation

import "strings"

// archVirtualBans maps an architecture's OS token to the virtual package
// names that are definitionally unsatisfiable on it.
var archVirtualBans = map[string][]string{
	"linux":   {"__osx", "__win"},
	"osx":     {"__linux", "__win", "__glibc"},
	"freebsd": {"__linux", "__win", "__glibc"},
	"win":     {"__linux", "__unix", "__glibc", "__osx"},
}

// osTokenFromArch extracts the OS token from an arch tag such as
// "linux-64" or "osx-arm64" ("linux", "osx").
func osTokenFromArch(arch string) string {
	if idx := strings.IndexByte(arch, '-'); idx >= 0 {
		return arch[:idx]
	}
	return arch
}

// IsKnownArchOS reports whether arch's OS token has a known virtual-package
// ban list. The driver uses this to decide whether to emit a diagnostic for
// an unrecognised architecture.
func IsKnownArchOS(arch string) bool {
	_, ok := archVirtualBans[osTokenFromArch(arch)]
	return ok
}

// ApplyIncompatibleArchitecture marks every dependency edge on a banned
// virtual package unsatisfiable for arch, removing every depender. For an
// unrecognised OS token the ban list is empty and this is a no-op; the
// driver is responsible for surfacing that as a diagnostic.
func (pr *PackageRelations) ApplyIncompatibleArchitecture(arch string) []RemovedByIncompatibleArchitecture {
	banned := archVirtualBans[osTokenFromArch(arch)]
	var result []RemovedByIncompatibleArchitecture
	for _, virtual := range banned {
		for _, edge := range pr.edgesByDependencyName[virtual] {
			edge.MarkUnsatisfiable()
			for _, id := range edge.Dependers {
				if pr.MarkRemoved(id) {
					result = append(result, RemovedByIncompatibleArchitecture{
						Filename:    pr.Filename(id),
						PackageName: pr.Record(id).Name(),
						VirtualName: virtual,
					})
				}
			}
		}
	}
	return result
}
