package curation

import "fmt"

// RemovedByUser is emitted by ApplyUserMatchspecs for a record that matched
// none of the user-supplied constraints for its name.
type RemovedByUser struct {
	Filename    string
	PackageName string
}

func (l RemovedByUser) String() string {
	return fmt.Sprintf("%s removed: does not satisfy any user-provided constraint for %s", l.Filename, l.PackageName)
}

// RemovedBySupercedingBuild is emitted by ApplyBuildPrune for a record whose
// build_number was strictly less than the maximum within its group.
type RemovedBySupercedingBuild struct {
	Filename    string
	PackageName string
	BuildNumber uint64 // the surviving, superceding build number
}

func (l RemovedBySupercedingBuild) String() string {
	return fmt.Sprintf("%s removed: superceded by build_number %d", l.Filename, l.BuildNumber)
}

// RemovedByFeature is emitted by ApplyFeatureRemoval.
type RemovedByFeature struct {
	Filename    string
	PackageName string
	Feature     string
}

func (l RemovedByFeature) String() string {
	return fmt.Sprintf("%s removed: carries banned feature %q", l.Filename, l.Feature)
}

// RemovedByDevRCPolicy is emitted by ApplyDevRCBan.
type RemovedByDevRCPolicy struct {
	Filename    string
	PackageName string
	Dev         bool
	RC          bool
}

func (l RemovedByDevRCPolicy) String() string {
	switch {
	case l.Dev && l.RC:
		return fmt.Sprintf("%s removed: dev and rc versions are banned", l.Filename)
	case l.Dev:
		return fmt.Sprintf("%s removed: dev versions are banned", l.Filename)
	default:
		return fmt.Sprintf("%s removed: rc versions are banned", l.Filename)
	}
}

// RemovedByIncompatibleArchitecture is emitted by ApplyIncompatibleArchitecture.
type RemovedByIncompatibleArchitecture struct {
	Filename    string
	PackageName string
	VirtualName string
}

func (l RemovedByIncompatibleArchitecture) String() string {
	return fmt.Sprintf("%s removed: depends on unsatisfiable virtual package %s for this architecture", l.Filename, l.VirtualName)
}

// RemovedBecauseIncompatible is emitted by ApplyMustCompatible.
type RemovedBecauseIncompatible struct {
	Filename         string
	PackageName      string
	IncompatibleWith string
}

func (l RemovedBecauseIncompatible) String() string {
	return fmt.Sprintf("%s removed: incompatible with every surviving variant of %s", l.Filename, l.IncompatibleWith)
}

// RemovedUnsatisfiable is emitted by FindUnresolveables for a record whose
// dependency can no longer be resolved against any surviving provider.
type RemovedUnsatisfiable struct {
	Filename       string
	PackageName    string
	DependencyName string
	Spec           string
	CauseFilename  string // filename of the previous provider, if known
}

func (l RemovedUnsatisfiable) String() string {
	if l.CauseFilename != "" {
		return fmt.Sprintf("%s removed: dependency %s %s unsatisfiable after removal of %s", l.Filename, l.DependencyName, l.Spec, l.CauseFilename)
	}
	return fmt.Sprintf("%s removed: dependency %s %s unsatisfiable", l.Filename, l.DependencyName, l.Spec)
}
