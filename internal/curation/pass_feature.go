package curation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pkgrelations/curate/internal/repodata"
)

type idRange struct{ start, end int }

// chunkRanges splits [0, n) into up to workers contiguous, roughly equal
// ranges, the unit of work handed to each errgroup goroutine.
func chunkRanges(n, workers int) []idRange {
	if n == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers
	ranges := make([]idRange, 0, workers)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, idRange{start: start, end: end})
	}
	return ranges
}

func matchesBannedFeature(rec *repodata.PackageRecord, banned map[string]struct{}) (string, bool) {
	for _, f := range rec.Features() {
		if _, ok := banned[f]; ok {
			return f, true
		}
	}
	for _, f := range rec.TrackFeatures() {
		if _, ok := banned[f]; ok {
			return f, true
		}
	}
	return "", false
}

// ApplyFeatureRemoval removes every record carrying a banned feature tag,
// singular or tracked. The scan is data-parallel — each goroutine only
// reads the (immutable, at this point) package table and the removal
// bitmap, writing its findings into a private slot — following the same
// fan-out-then-join shape the unresolvables pass uses, via
// golang.org/x/sync/errgroup. If banned is empty the pass is a no-op.
// workers bounds the goroutine fan-out (the driver threads its configured
// worker-pool size through here).
func (pr *PackageRelations) ApplyFeatureRemoval(ctx context.Context, banned map[string]struct{}, workers int) ([]RemovedByFeature, error) {
	if len(banned) == 0 {
		return nil, nil
	}

	type finding struct {
		id      PackageId
		feature string
	}

	n := pr.Len()
	findings := make([]*finding, n)

	g, _ := errgroup.WithContext(ctx)
	for _, rng := range chunkRanges(n, workers) {
		rng := rng
		g.Go(func() error {
			for i := rng.start; i < rng.end; i++ {
				id := PackageId(i)
				if pr.Removed(id) {
					continue
				}
				if feature, ok := matchesBannedFeature(pr.Record(id), banned); ok {
					findings[i] = &finding{id: id, feature: feature}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var result []RemovedByFeature
	for _, f := range findings {
		if f == nil {
			continue
		}
		if pr.MarkRemoved(f.id) {
			rec := pr.Record(f.id)
			result = append(result, RemovedByFeature{
				Filename:    pr.Filename(f.id),
				PackageName: rec.Name(),
				Feature:     f.feature,
			})
		}
	}
	return result, nil
}
