// Package repodata parses and rewrites conda channel index ("repodata.json")
// files: the two-map package schema, a heap-based k-way merge of the input
// buckets into insertion order, and an atomic, transactional writer for the
// filtered output.
package repodata

import (
	"encoding/json"
	"strings"

	"github.com/pkgrelations/curate/internal/matchspec"
)

var knownRecordKeys = map[string]bool{
	"name": true, "version": true, "build": true, "build_number": true,
	"depends": true, "constrains": true, "features": true, "track_features": true,
	"license": true, "license_family": true, "md5": true, "sha256": true,
	"size": true, "subdir": true, "timestamp": true, "noarch": true,
	"platform": true, "arch": true,
}

// PackageRecord is one entry in a repodata.json package map: an immutable
// description of a single name+version+build variant. Fields the curation
// engine never inspects (license, checksums, size, ...) are preserved
// verbatim in Extra so the writer can round-trip them untouched.
type PackageRecord struct {
	NameField          string   `json:"name"`
	VersionField       string   `json:"version"`
	BuildField         string   `json:"build"`
	BuildNumberField   uint64   `json:"build_number"`
	DependsField       []string `json:"depends,omitempty"`
	ConstrainsField    []string `json:"constrains,omitempty"`
	FeaturesField      string   `json:"features,omitempty"`
	TrackFeaturesField string   `json:"track_features,omitempty"`
	LicenseField       string   `json:"license,omitempty"`
	LicenseFamilyField string   `json:"license_family,omitempty"`
	MD5Field           string   `json:"md5,omitempty"`
	SHA256Field        string   `json:"sha256,omitempty"`
	SizeField          uint64   `json:"size,omitempty"`
	SubdirField        string   `json:"subdir,omitempty"`
	TimestampField     int64    `json:"timestamp,omitempty"`
	NoarchField        string   `json:"noarch,omitempty"`
	PlatformField      string   `json:"platform,omitempty"`
	ArchField          string   `json:"arch,omitempty"`

	// Filename is the map key this record was parsed under, stamped in by
	// ParseFile. It is not part of the JSON object itself.
	Filename string `json:"-"`

	// Extra carries any repodata fields this schema doesn't name explicitly,
	// so output writing never silently drops channel data.
	Extra map[string]json.RawMessage `json:"-"`

	version matchspec.Version
}

// recordAlias has the same field set as PackageRecord but none of its
// methods, breaking the recursion that a naive (Un)MarshalJSON would cause.
type recordAlias PackageRecord

// UnmarshalJSON populates the known fields, computes the parsed Version
// once, and stashes any unrecognised keys in Extra.
func (p *PackageRecord) UnmarshalJSON(data []byte) error {
	var known recordAlias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	*p = PackageRecord(known)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := make(map[string]json.RawMessage)
	for k, v := range raw {
		if !knownRecordKeys[k] {
			extra[k] = v
		}
	}
	p.Extra = extra
	p.version = matchspec.ParseVersion(p.VersionField)
	return nil
}

// MarshalJSON re-emits the known fields merged with whatever was preserved
// in Extra.
func (p PackageRecord) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordAlias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// NewRecord constructs a PackageRecord programmatically, computing its
// parsed Version immediately. Used by tests that don't need the full JSON
// round trip.
func NewRecord(name, version, build string, buildNumber uint64, depends []string) *PackageRecord {
	return &PackageRecord{
		NameField:        name,
		VersionField:     version,
		BuildField:       build,
		BuildNumberField: buildNumber,
		DependsField:     depends,
		version:          matchspec.ParseVersion(version),
	}
}

// Name returns the package name.
func (p *PackageRecord) Name() string { return p.NameField }

// Version satisfies matchspec.Candidate.
func (p *PackageRecord) Version() matchspec.Version { return p.version }

// Build satisfies matchspec.Candidate.
func (p *PackageRecord) Build() string { return p.BuildField }

// BuildNumber satisfies matchspec.Candidate.
func (p *PackageRecord) BuildNumber() uint64 { return p.BuildNumberField }

// Depends returns the raw dependency clauses.
func (p *PackageRecord) Depends() []string { return p.DependsField }

// Features returns the record's singular feature tag as a one-element slice,
// or nil if it carries none.
func (p *PackageRecord) Features() []string {
	if p.FeaturesField == "" {
		return nil
	}
	return []string{p.FeaturesField}
}

// TrackFeatures returns the comma-separated track_features field split into
// individual tags.
func (p *PackageRecord) TrackFeatures() []string {
	if p.TrackFeaturesField == "" {
		return nil
	}
	parts := strings.Split(p.TrackFeaturesField, ",")
	out := make([]string, 0, len(parts))
	for _, t := range parts {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// RawRepoData is the top-level shape of a repodata.json document: two
// package maps (pre-conda-4.7 artifacts and the newer .conda format), plus
// whatever else the channel wrote (repodata_version, info, removed), which
// the driver round-trips rather than the curation core interpreting.
type RawRepoData struct {
	RepodataVersion int                       `json:"repodata_version,omitempty"`
	Info            json.RawMessage           `json:"info,omitempty"`
	Packages        map[string]*PackageRecord `json:"packages"`
	PackagesConda   map[string]*PackageRecord `json:"packages.conda"`
	Removed         []string                  `json:"removed,omitempty"`
}
