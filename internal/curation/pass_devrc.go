package curation

// ApplyDevRCBan removes records whose version carries a development
// pre-release component (when banDev) or a release-candidate component
// (when banRC). If both are false, it is a no-op.
func (pr *PackageRelations) ApplyDevRCBan(banDev, banRC bool) []RemovedByDevRCPolicy {
	if !banDev && !banRC {
		return nil
	}
	var result []RemovedByDevRCPolicy
	for id := PackageId(0); int(id) < pr.Len(); id++ {
		if pr.Removed(id) {
			continue
		}
		rec := pr.Record(id)
		v := rec.Version()
		isDev := banDev && v.HasDevComponent()
		isRC := banRC && v.HasRCComponent()
		if (isDev || isRC) && pr.MarkRemoved(id) {
			result = append(result, RemovedByDevRCPolicy{
				Filename:    pr.Filename(id),
				PackageName: rec.Name(),
				Dev:         isDev,
				RC:          isRC,
			})
		}
	}
	return result
}
