// Package curation implements the PackageRelations engine: the in-memory
// package graph and the filtering passes that prune it down to a curated
// channel index.
package curation

import (
	"math"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/pkgrelations/curate/internal/matchspec"
	"github.com/pkgrelations/curate/internal/repodata"
)

// PackageId is a dense, insertion-order index into the engine's package
// table. 32 bits supports up to four billion records.
type PackageId uint32

// NameRange is the contiguous [First, First+Count) id range occupied by
// every record sharing one package name. Count is 16 bits: a single name may
// have at most 65,535 variants in one channel.
type NameRange struct {
	First PackageId
	Count uint16
}

type packageMetadata struct {
	filename string
	record   *repodata.PackageRecord
}

type edgeKey struct {
	name string
	spec string
}

// DependencyEdge is keyed by (dependency name, raw constraint string) and
// shared by every record carrying that exact dependency clause, so the
// unresolvables pass evaluates a shared resolution once per edge rather
// than once per depender.
type DependencyEdge struct {
	DependencyName string
	RawConstraint  string
	Constraint     matchspec.Constraint

	unsatisfiable atomic.Bool

	// hasLast/lastOffset cache the most recent provider found for this
	// edge, as an offset within the dependency name's NameRange. Mutated
	// only by the sequential apply phase of the unresolvables pass, so no
	// atomics are needed: the evaluate phase of the following round only
	// ever begins after the previous round's apply phase has returned.
	hasLast    bool
	lastOffset uint16

	Dependers []PackageId
}

// IsUnsatisfiable reports whether this edge has latched unsatisfiable.
func (e *DependencyEdge) IsUnsatisfiable() bool { return e.unsatisfiable.Load() }

// MarkUnsatisfiable latches the edge unsatisfiable, returning true the first
// time it does so (the CompareAndSwap semantics Go maps the "latching
// boolean" invariant onto).
func (e *DependencyEdge) MarkUnsatisfiable() bool {
	return e.unsatisfiable.CompareAndSwap(false, true)
}

// RemovedBitmap is one latching flag per PackageId. A slice of atomic.Bool
// lets the evaluate phase of the unresolvables pass test bits concurrently
// with other readers without a mutex, while still guaranteeing a bit never
// reverts from true to false.
type RemovedBitmap struct {
	bits []atomic.Bool
}

func (r *RemovedBitmap) get(id PackageId) bool {
	return r.bits[id].Load()
}

// set marks id removed, returning true the first time it does so.
func (r *RemovedBitmap) set(id PackageId) bool {
	return r.bits[id].CompareAndSwap(false, true)
}

func (r *RemovedBitmap) len() int { return len(r.bits) }

// PackageRelations is the graph engine: the package table, the name index,
// the dependency edges, and the removal bitmap. It is built in one
// insertion phase and thereafter mutated only by the filtering passes.
type PackageRelations struct {
	cache *matchspec.Cache

	packages     []packageMetadata
	filenameToID map[string]PackageId
	nameRanges   *nameRangeTrie

	edges                 map[edgeKey]*DependencyEdge
	edgesByDependencyName map[string][]*DependencyEdge

	removed RemovedBitmap
}

// New returns an empty PackageRelations backed by cache for interning
// dependency constraint strings.
func New(cache *matchspec.Cache) *PackageRelations {
	return &PackageRelations{
		cache:                 cache,
		filenameToID:          make(map[string]PackageId),
		nameRanges:            newNameRangeTrie(),
		edges:                 make(map[edgeKey]*DependencyEdge),
		edgesByDependencyName: make(map[string][]*DependencyEdge),
	}
}

// Insert appends one package record. Records must be inserted in ascending
// (name, version, filename) order; violating that is a programming error in
// the caller (normally the driver's k-way merge) and panics with an
// InvariantError. Malformed dependency clauses are a data error and are
// returned normally, aborting ingestion without panicking.
func (pr *PackageRelations) Insert(filename string, record *repodata.PackageRecord) error {
	id := PackageId(len(pr.packages))
	if uint64(len(pr.packages)) >= math.MaxUint32 {
		panicInvariant("too many packages: id would overflow uint32")
	}

	if len(pr.packages) > 0 {
		last := pr.packages[len(pr.packages)-1]
		if !insertionOrderOK(last.record, last.filename, record, filename) {
			panicInvariant("insertion out of sort order: " + filename + " after " + last.filename)
		}
	}

	name := record.Name()
	if rng, ok := pr.nameRanges.Get(name); ok {
		if rng.First+PackageId(rng.Count) != id {
			panicInvariant("non-contiguous name range for " + name)
		}
		if rng.Count == math.MaxUint16 {
			panicInvariant("too many variants of " + name)
		}
		rng.Count++
		pr.nameRanges.Insert(name, rng)
	} else {
		pr.nameRanges.Insert(name, NameRange{First: id, Count: 1})
	}

	pr.packages = append(pr.packages, packageMetadata{filename: filename, record: record})
	pr.removed.bits = append(pr.removed.bits, atomic.Bool{})
	pr.filenameToID[filename] = id

	for _, d := range record.Depends() {
		depName, spec := splitDependencyClause(d)
		constraint, err := pr.cache.GetOrInsert(spec)
		if err != nil {
			return errors.Wrapf(err, "parse dependency clause %q of %s", d, filename)
		}
		key := edgeKey{name: depName, spec: spec}
		edge, ok := pr.edges[key]
		if !ok {
			edge = &DependencyEdge{DependencyName: depName, RawConstraint: spec, Constraint: constraint}
			pr.edges[key] = edge
			pr.edgesByDependencyName[depName] = append(pr.edgesByDependencyName[depName], edge)
		}
		edge.Dependers = append(edge.Dependers, id)
	}
	return nil
}

func insertionOrderOK(prev *repodata.PackageRecord, prevFilename string, cur *repodata.PackageRecord, curFilename string) bool {
	if prev.Name() != cur.Name() {
		return prev.Name() < cur.Name()
	}
	if c := prev.Version().Compare(cur.Version()); c != 0 {
		return c < 0
	}
	return prevFilename <= curFilename
}

func splitDependencyClause(d string) (name, spec string) {
	d = strings.TrimSpace(d)
	if idx := strings.IndexAny(d, " \t"); idx >= 0 {
		return d[:idx], strings.TrimSpace(d[idx+1:])
	}
	return d, ""
}

// ShrinkToFit trims container capacities once insertion is complete.
func (pr *PackageRelations) ShrinkToFit() {
	if cap(pr.packages) > len(pr.packages) {
		shrunk := make([]packageMetadata, len(pr.packages))
		copy(shrunk, pr.packages)
		pr.packages = shrunk
	}
	if cap(pr.removed.bits) > len(pr.removed.bits) {
		shrunk := make([]atomic.Bool, len(pr.removed.bits))
		for i := range pr.removed.bits {
			if pr.removed.bits[i].Load() {
				shrunk[i].Store(true)
			}
		}
		pr.removed.bits = shrunk
	}
}

// Stats reports the package count, the distinct name count, and the edge
// count, for progress reporting only.
func (pr *PackageRelations) Stats() (packages, distinctNames, edges int) {
	return len(pr.packages), pr.nameRanges.Len(), len(pr.edges)
}

// Removed reports whether id has been removed by any prior pass.
func (pr *PackageRelations) Removed(id PackageId) bool {
	return pr.removed.get(id)
}

// MarkRemoved latches id removed, returning true the first time it does so.
func (pr *PackageRelations) MarkRemoved(id PackageId) bool {
	return pr.removed.set(id)
}

// Record returns the package record for id.
func (pr *PackageRelations) Record(id PackageId) *repodata.PackageRecord {
	return pr.packages[id].record
}

// Filename returns the filename id was inserted under.
func (pr *PackageRelations) Filename(id PackageId) string {
	return pr.packages[id].filename
}

// FilenameID returns the id a filename was inserted under, if any.
func (pr *PackageRelations) FilenameID(filename string) (PackageId, bool) {
	id, ok := pr.filenameToID[filename]
	return id, ok
}

// NameRangeOf returns the id range for a package name, if any record
// carries that name.
func (pr *PackageRelations) NameRangeOf(name string) (NameRange, bool) {
	return pr.nameRanges.Get(name)
}

// Len returns the number of inserted package records.
func (pr *PackageRelations) Len() int {
	return len(pr.packages)
}

// SurvivingFilenames returns the set of filenames not marked removed.
func (pr *PackageRelations) SurvivingFilenames() map[string]struct{} {
	out := make(map[string]struct{}, len(pr.packages))
	for id := range pr.packages {
		if !pr.removed.get(PackageId(id)) {
			out[pr.packages[id].filename] = struct{}{}
		}
	}
	return out
}

// RemovedFilenames returns the set of filenames marked removed.
func (pr *PackageRelations) RemovedFilenames() map[string]struct{} {
	out := make(map[string]struct{}, len(pr.packages))
	for id := range pr.packages {
		if pr.removed.get(PackageId(id)) {
			out[pr.packages[id].filename] = struct{}{}
		}
	}
	return out
}
