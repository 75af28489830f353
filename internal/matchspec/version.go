// Package matchspec implements conda-style version and constraint parsing:
// the Version ordering, the Constraint grammar, and the MatchspecCache that
// interns parsed constraints for the lifetime of a curation run.
package matchspec

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
)

// Version is a component-wise ordered conda version. Conda versions are not
// restricted to the strict major.minor.patch grammar that Masterminds/semver
// enforces, so Version splits on '.' and '_' and further splits each piece
// into alternating digit/non-digit runs, comparing numeric runs by magnitude
// and non-numeric runs lexically. When the raw string happens to parse as
// strict semver, comparisons are delegated to Masterminds/semver instead,
// since that is both faster and exercises the library directly for the
// common case.
type Version struct {
	raw      string
	epoch    uint64
	segments []segment
	fast     *semver.Version
}

// segment is one dot/underscore-delimited piece of a version string, split
// further into alternating digit/non-digit runs.
type segment struct {
	parts []part
}

type part struct {
	text string
	num  bool
	n    uint64
}

// ParseVersion parses a raw conda version string. It never fails: any input
// is accepted and compared component-wise on a best-effort basis, mirroring
// the permissiveness of the channel data it curates.
func ParseVersion(raw string) Version {
	v := Version{raw: raw}

	rest := raw
	if bang := strings.IndexByte(raw, '!'); bang >= 0 {
		if n, err := strconv.ParseUint(raw[:bang], 10, 64); err == nil {
			v.epoch = n
			rest = raw[bang+1:]
		}
	}

	if sv, err := semver.NewVersion(rest); err == nil && v.epoch == 0 && sv.String() == rest {
		v.fast = sv
	}

	for _, dotPiece := range strings.FieldsFunc(rest, func(r rune) bool {
		return r == '.' || r == '_'
	}) {
		v.segments = append(v.segments, splitSegment(dotPiece))
	}
	return v
}

func splitSegment(s string) segment {
	var seg segment
	i := 0
	for i < len(s) {
		start := i
		isDigit := isDigitByte(s[i])
		for i < len(s) && isDigitByte(s[i]) == isDigit {
			i++
		}
		text := s[start:i]
		p := part{text: text, num: isDigit}
		if isDigit {
			// Ignore overflow: conda version number components are never
			// realistically large enough to exceed uint64; fall back to
			// comparing as text if they somehow do.
			if n, err := strconv.ParseUint(text, 10, 64); err == nil {
				p.n = n
			} else {
				p.num = false
			}
		}
		seg.parts = append(seg.parts, p)
	}
	return seg
}

func isDigitByte(b byte) bool {
	return b >= '0' && b <= '9'
}

// String returns the original, unparsed version text.
func (v Version) String() string {
	return v.raw
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other.
func (v Version) Compare(other Version) int {
	if v.fast != nil && other.fast != nil && v.epoch == other.epoch {
		return v.fast.Compare(other.fast)
	}
	if v.epoch != other.epoch {
		if v.epoch < other.epoch {
			return -1
		}
		return 1
	}
	n := len(v.segments)
	if len(other.segments) > n {
		n = len(other.segments)
	}
	for i := 0; i < n; i++ {
		var a, b segment
		if i < len(v.segments) {
			a = v.segments[i]
		}
		if i < len(other.segments) {
			b = other.segments[i]
		}
		if c := compareSegment(a, b); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b segment) int {
	n := len(a.parts)
	if len(b.parts) > n {
		n = len(b.parts)
	}
	for i := 0; i < n; i++ {
		var pa, pb part
		hasA, hasB := i < len(a.parts), i < len(b.parts)
		if hasA {
			pa = a.parts[i]
		}
		if hasB {
			pb = b.parts[i]
		}
		if !hasA || !hasB {
			// Shorter segment sorts lower than a longer one, matching the
			// common "1.0" < "1.0.1" expectation, unless the missing side
			// would have been an empty numeric continuation (treated as 0).
			// Within a segment present on both sides, an extra trailing text
			// run is a pre-release tag and sorts lower ("1.0rc1" < "1.0").
			if !hasA && hasB && pb.num {
				return compareNumOrText(part{num: true, n: 0}, pb)
			}
			if hasA && !hasB && pa.num {
				return compareNumOrText(pa, part{num: true, n: 0})
			}
			if len(a.parts) > 0 && len(b.parts) > 0 {
				if hasA {
					return -1
				}
				return 1
			}
			if !hasA {
				return -1
			}
			return 1
		}
		if c := compareNumOrText(pa, pb); c != 0 {
			return c
		}
	}
	return 0
}

func compareNumOrText(a, b part) int {
	if a.num && b.num {
		switch {
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		default:
			return 0
		}
	}
	if a.num != b.num {
		// A numeric run outranks a non-numeric run at the same position
		// (e.g. "1.0.1" > "1.0.rc1"): the plain numeric release is newer than
		// any alpha/beta/rc-tagged variant of it.
		if a.num {
			return 1
		}
		return -1
	}
	return strings.Compare(a.text, b.text)
}

// HasDevComponent reports whether any component of the version denotes a
// development pre-release (conda convention: a component containing "dev").
func (v Version) HasDevComponent() bool {
	for _, seg := range v.segments {
		for _, p := range seg.parts {
			if !p.num && strings.Contains(strings.ToLower(p.text), "dev") {
				return true
			}
		}
	}
	return false
}

// HasRCComponent reports whether any component of the version is a textual
// token beginning with "rc" (release candidate).
func (v Version) HasRCComponent() bool {
	for _, seg := range v.segments {
		for _, p := range seg.parts {
			if !p.num && strings.HasPrefix(strings.ToLower(p.text), "rc") {
				return true
			}
		}
	}
	return false
}
