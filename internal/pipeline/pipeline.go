// Package pipeline orchestrates one curation run: for every requested
// architecture it loads the arch and noarch indices, builds a fresh
// PackageRelations, runs the filtering passes in the prescribed order, and
// writes the filtered output. It intersects per-arch noarch removals once
// every architecture has run, and writes the noarch output last.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgrelations/curate/internal/clog"
	"github.com/pkgrelations/curate/internal/config"
	"github.com/pkgrelations/curate/internal/curation"
	"github.com/pkgrelations/curate/internal/fetch"
	"github.com/pkgrelations/curate/internal/matchspec"
	"github.com/pkgrelations/curate/internal/repodata"
)

// Options carries the curation run's inputs, one set shared across every
// architecture.
type Options struct {
	UserConstraints    config.UserConstraints
	BannedFeatures     map[string]struct{}
	MustCompatibleWith []string
	BanDev             bool
	BanRC              bool
	ChannelAlias       string
	OutputDir          string
	Explain            bool
	Workers            int
}

// Driver runs the pipeline for a set of architectures against a shared
// Fetcher and constraint cache.
type Driver struct {
	Fetcher *fetch.Fetcher
	Cache   *matchspec.Cache
	Tracer  *clog.Tracer
	Out     *clog.Logger
	Opts    Options
}

// archRun is the per-architecture intermediate state needed to compute the
// final noarch intersection once every architecture has finished.
type archRun struct {
	arch        string
	noarchRaw   *repodata.RawRepoData
	noarchNames map[string]bool // filename -> removed, restricted to noarch-origin filenames
}

// Run processes every architecture in arches, writing `<OutputDir>/<arch>/repodata.json`
// for each, then writes the shared `<OutputDir>/noarch/repodata.json` once, keeping a
// noarch package iff at least one architecture did not remove it.
func (d *Driver) Run(ctx context.Context, arches []string) error {
	var runs []archRun

	for _, arch := range arches {
		run, err := d.runArch(ctx, arch)
		if err != nil {
			return errors.Wrapf(err, "architecture %s", arch)
		}
		runs = append(runs, run)
	}

	return d.writeNoarch(runs)
}

func (d *Driver) runArch(ctx context.Context, arch string) (archRun, error) {
	archBody, err := d.Fetcher.FetchIndex(ctx, arch)
	if err != nil {
		return archRun{}, errors.Wrap(err, "fetch "+arch+" index")
	}
	noarchBody, err := d.Fetcher.FetchIndex(ctx, "noarch")
	if err != nil {
		return archRun{}, errors.Wrap(err, "fetch noarch index")
	}

	archRaw, err := repodata.ParseBytes(archBody)
	if err != nil {
		return archRun{}, errors.Wrap(err, "parse "+arch+" repodata")
	}
	noarchRaw, err := repodata.ParseBytes(noarchBody)
	if err != nil {
		return archRun{}, errors.Wrap(err, "parse noarch repodata")
	}

	merged := repodata.MergeSorted(
		repodata.EntriesFromMap(archRaw.Packages),
		repodata.EntriesFromMap(archRaw.PackagesConda),
		repodata.EntriesFromMap(noarchRaw.Packages),
		repodata.EntriesFromMap(noarchRaw.PackagesConda),
	)

	pr := curation.New(d.Cache)
	for _, e := range merged {
		if err := pr.Insert(e.Filename, e.Record); err != nil {
			return archRun{}, errors.Wrapf(err, "insert %s", e.Filename)
		}
	}
	pr.ShrinkToFit()

	if err := d.runPasses(ctx, pr, arch); err != nil {
		return archRun{}, err
	}

	keep := pr.SurvivingFilenames()
	if err := repodata.WriteFiltered(d.outDir(arch), archRaw, d.baseURL(arch), func(fn string) bool {
		_, ok := keep[fn]
		return ok
	}); err != nil {
		return archRun{}, errors.Wrap(err, "write "+arch+" repodata")
	}

	noarchNames := make(map[string]bool, len(noarchRaw.Packages)+len(noarchRaw.PackagesConda))
	for fn := range noarchRaw.Packages {
		noarchNames[fn] = pr.Removed(mustID(pr, fn))
	}
	for fn := range noarchRaw.PackagesConda {
		noarchNames[fn] = pr.Removed(mustID(pr, fn))
	}

	return archRun{arch: arch, noarchRaw: noarchRaw, noarchNames: noarchNames}, nil
}

// runPasses executes the full prescribed pass order against one
// architecture's graph: user-constraints, build-prune, feature-ban,
// dev/rc policy, incompatible-architecture, unresolvables-to-fixed-point,
// then one compat-pass/unresolvables round per must-compatible root.
func (d *Driver) runPasses(ctx context.Context, pr *curation.PackageRelations, arch string) error {
	dirty := make(map[string]struct{})

	runPass := func(name string, fn func() ([]fmt.Stringer, error)) error {
		var out []fmt.Stringer
		var err error
		_, tracerErr := d.Tracer.Pass(name, func() (int, error) {
			out, err = fn()
			return len(out), err
		})
		if tracerErr != nil {
			return tracerErr
		}
		d.explain(out)
		return nil
	}

	for name, specs := range d.Opts.UserConstraints {
		name, specs := name, specs
		if err := runPass("user-constraints:"+name, func() ([]fmt.Stringer, error) {
			removed := pr.ApplyUserMatchspecs(name, specs)
			return wrapUser(removed, dirty), nil
		}); err != nil {
			return err
		}
	}

	if err := runPass("build-prune", func() ([]fmt.Stringer, error) {
		return wrapBuildPrune(pr.ApplyBuildPrune(), dirty), nil
	}); err != nil {
		return err
	}

	if len(d.Opts.BannedFeatures) > 0 {
		if err := runPass("feature-ban", func() ([]fmt.Stringer, error) {
			removed, err := pr.ApplyFeatureRemoval(ctx, d.Opts.BannedFeatures, d.workers())
			if err != nil {
				return nil, err
			}
			return wrapFeature(removed, dirty), nil
		}); err != nil {
			return err
		}
	}

	if err := runPass("dev-rc-policy", func() ([]fmt.Stringer, error) {
		return wrapDevRC(pr.ApplyDevRCBan(d.Opts.BanDev, d.Opts.BanRC), dirty), nil
	}); err != nil {
		return err
	}

	if !curation.IsKnownArchOS(arch) {
		d.Out.LogCuratefln("no virtual-package ban list for architecture %s", arch)
	}
	if err := runPass("incompatible-architecture", func() ([]fmt.Stringer, error) {
		return wrapArchBan(pr.ApplyIncompatibleArchitecture(arch), dirty), nil
	}); err != nil {
		return err
	}

	if err := d.drainUnresolveables(ctx, pr, dirty); err != nil {
		return err
	}

	for _, root := range d.Opts.MustCompatibleWith {
		root := root
		roundDirty := make(map[string]struct{})
		if err := runPass("must-compatible-with:"+root, func() ([]fmt.Stringer, error) {
			return wrapMustCompat(pr.ApplyMustCompatible(root), roundDirty), nil
		}); err != nil {
			return err
		}
		if err := d.drainUnresolveables(ctx, pr, roundDirty); err != nil {
			return err
		}
	}

	return nil
}

// drainUnresolveables repeatedly invokes FindUnresolveables, seeding each
// round with the names touched by the previous one, until a round removes
// nothing — the fixed point the spec names this pass after.
func (d *Driver) drainUnresolveables(ctx context.Context, pr *curation.PackageRelations, seed map[string]struct{}) error {
	dirty := seed
	for len(dirty) > 0 {
		removed, err := pr.FindUnresolveables(ctx, dirty)
		if err != nil {
			return err
		}
		d.Tracer.Note("unresolveables round removed %d", len(removed))
		if len(removed) == 0 {
			return nil
		}
		next := make(map[string]struct{})
		var out []fmt.Stringer
		for _, r := range removed {
			next[r.PackageName] = struct{}{}
			out = append(out, r)
		}
		d.explain(out)
		dirty = next
	}
	return nil
}

func (d *Driver) explain(logs []fmt.Stringer) {
	if !d.Opts.Explain {
		return
	}
	for _, l := range logs {
		d.Out.Logln(l.String())
	}
}

func (d *Driver) workers() int {
	if d.Opts.Workers <= 0 {
		return 4
	}
	return d.Opts.Workers
}

func (d *Driver) outDir(arch string) string {
	return filepath.Join(d.Opts.OutputDir, arch)
}

func (d *Driver) baseURL(arch string) string {
	return strings.TrimSuffix(d.Opts.ChannelAlias, "/") + "/" + arch
}

func mustID(pr *curation.PackageRelations, filename string) curation.PackageId {
	id, ok := pr.FilenameID(filename)
	if !ok {
		panic("pipeline: filename vanished from the graph it was inserted into: " + filename)
	}
	return id
}

func wrapUser(in []curation.RemovedByUser, dirty map[string]struct{}) []fmt.Stringer {
	out := make([]fmt.Stringer, len(in))
	for i, r := range in {
		dirty[r.PackageName] = struct{}{}
		out[i] = r
	}
	return out
}

func wrapBuildPrune(in []curation.RemovedBySupercedingBuild, dirty map[string]struct{}) []fmt.Stringer {
	out := make([]fmt.Stringer, len(in))
	for i, r := range in {
		dirty[r.PackageName] = struct{}{}
		out[i] = r
	}
	return out
}

func wrapFeature(in []curation.RemovedByFeature, dirty map[string]struct{}) []fmt.Stringer {
	out := make([]fmt.Stringer, len(in))
	for i, r := range in {
		dirty[r.PackageName] = struct{}{}
		out[i] = r
	}
	return out
}

func wrapDevRC(in []curation.RemovedByDevRCPolicy, dirty map[string]struct{}) []fmt.Stringer {
	out := make([]fmt.Stringer, len(in))
	for i, r := range in {
		dirty[r.PackageName] = struct{}{}
		out[i] = r
	}
	return out
}

func wrapArchBan(in []curation.RemovedByIncompatibleArchitecture, dirty map[string]struct{}) []fmt.Stringer {
	out := make([]fmt.Stringer, len(in))
	for i, r := range in {
		dirty[r.PackageName] = struct{}{}
		out[i] = r
	}
	return out
}

func wrapMustCompat(in []curation.RemovedBecauseIncompatible, dirty map[string]struct{}) []fmt.Stringer {
	out := make([]fmt.Stringer, len(in))
	for i, r := range in {
		dirty[r.PackageName] = struct{}{}
		out[i] = r
	}
	return out
}

// writeNoarch computes, for every noarch filename, whether every
// architecture removed it; a package survives into the shared noarch
// output iff at least one architecture kept it (invariant 10).
func (d *Driver) writeNoarch(runs []archRun) error {
	if len(runs) == 0 {
		return nil
	}

	survivesSomewhere := make(map[string]bool)
	for _, run := range runs {
		for fn, removed := range run.noarchNames {
			if !removed {
				survivesSomewhere[fn] = true
			}
		}
	}

	last := runs[len(runs)-1].noarchRaw
	return repodata.WriteFiltered(filepath.Join(d.Opts.OutputDir, "noarch"), last, strings.TrimSuffix(d.Opts.ChannelAlias, "/")+"/noarch", func(fn string) bool {
		return survivesSomewhere[fn]
	})
}
