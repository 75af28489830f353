package curation

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type evalKind int

const (
	evalNoChange evalKind = iota
	evalUpdateSolution
	evalRemoveAndLog
)

type evaluation struct {
	kind      evalKind
	edge      *DependencyEdge
	newOffset uint16
	log       RemovedUnsatisfiable
}

// FindUnresolveables re-evaluates every edge keyed under one of
// dependingOns (dependency names whose provider set may have changed
// because of a prior removal), proposing one change per edge, then applies
// those proposals sequentially. The two-phase structure — a read-only,
// data-parallel evaluate fanned out over an errgroup worker pool, then a
// strictly sequential apply — is what lets evaluate run lock-free: no edge
// is touched by more than one goroutine, and the removal bitmap is only
// ever written during apply.
func (pr *PackageRelations) FindUnresolveables(ctx context.Context, dependingOns map[string]struct{}) ([]RemovedUnsatisfiable, error) {
	var edgesToCheck []*DependencyEdge
	for name := range dependingOns {
		for _, edge := range pr.edgesByDependencyName[name] {
			if !edge.IsUnsatisfiable() {
				edgesToCheck = append(edgesToCheck, edge)
			}
		}
	}
	if len(edgesToCheck) == 0 {
		return nil, nil
	}

	proposals := make([]evaluation, len(edgesToCheck))
	g, _ := errgroup.WithContext(ctx)
	for _, rng := range chunkRanges(len(edgesToCheck), 8) {
		rng := rng
		g.Go(func() error {
			for i := rng.start; i < rng.end; i++ {
				proposals[i] = pr.evaluate(edgesToCheck[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var result []RemovedUnsatisfiable
	for _, p := range proposals {
		switch p.kind {
		case evalNoChange:
			// nothing to do
		case evalUpdateSolution:
			p.edge.hasLast = true
			p.edge.lastOffset = p.newOffset
		case evalRemoveAndLog:
			if !p.edge.MarkUnsatisfiable() {
				continue
			}
			for _, id := range p.edge.Dependers {
				if pr.MarkRemoved(id) {
					log := p.log
					log.Filename = pr.Filename(id)
					log.PackageName = pr.Record(id).Name()
					result = append(result, log)
				}
			}
		}
	}
	return result, nil
}

// evaluate decides, for one edge, whether its cached resolution still
// holds, whether a new one can be found, or whether the edge is now
// unsatisfiable. It only reads the graph; all mutation happens in apply.
func (pr *PackageRelations) evaluate(edge *DependencyEdge) evaluation {
	rng, ok := pr.nameRanges.Get(edge.DependencyName)
	if !ok {
		// No provider has ever existed for this name (typically an
		// unbanned virtual with no real package backing it): unsatisfiable
		// regardless of any cached resolution.
		return evaluation{kind: evalRemoveAndLog, edge: edge, log: RemovedUnsatisfiable{
			DependencyName: edge.DependencyName,
			Spec:           edge.RawConstraint,
		}}
	}
	base, count := rng.First, rng.Count

	if edge.hasLast {
		candidate := base + PackageId(edge.lastOffset)
		if !pr.Removed(candidate) {
			return evaluation{kind: evalNoChange}
		}
	}

	startOffset := uint16(0)
	if edge.hasLast {
		// Tail-only: search only from the last known offset forward. A
		// provider before that offset was already rejected in an earlier
		// round and cannot have become newly valid — removal is monotonic.
		startOffset = edge.lastOffset
	}
	for off := startOffset; off < count; off++ {
		id := base + PackageId(off)
		if pr.Removed(id) {
			continue
		}
		if edge.Constraint.Matches(pr.Record(id)) {
			return evaluation{kind: evalUpdateSolution, edge: edge, newOffset: off}
		}
	}

	causeFilename := ""
	if edge.hasLast {
		causeFilename = pr.Filename(base + PackageId(edge.lastOffset))
	} else {
		for off := uint16(0); off < count; off++ {
			id := base + PackageId(off)
			if pr.Removed(id) && edge.Constraint.Matches(pr.Record(id)) {
				causeFilename = pr.Filename(id)
				break
			}
		}
	}

	return evaluation{kind: evalRemoveAndLog, edge: edge, log: RemovedUnsatisfiable{
		DependencyName: edge.DependencyName,
		Spec:           edge.RawConstraint,
		CauseFilename:  causeFilename,
	}}
}
