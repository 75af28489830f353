package matchspec

import (
	"fmt"
	"strings"
)

// Candidate is the minimal surface a package record must expose to be
// tested against a Constraint. internal/repodata's PackageRecord implements
// this so internal/matchspec never needs to import internal/repodata.
type Candidate interface {
	Version() Version
	Build() string
	BuildNumber() uint64
}

// Constraint is a predicate over Candidates, mirroring the shape of the
// Constraint interface the teacher exposes for its own version constraints:
// Matches, MatchesAny, Intersect, plus a private marker method so the
// interface cannot be implemented outside this package.
type Constraint interface {
	fmt.Stringer
	Matches(c Candidate) bool
	MatchesAny(other Constraint) bool
	Intersect(other Constraint) Constraint
	constraintMarker()
}

// anyConstraint matches every candidate. It is what the empty matchspec
// string ("any version") interns to.
type anyConstraint struct{}

func (anyConstraint) String() string                    { return "" }
func (anyConstraint) Matches(Candidate) bool             { return true }
func (anyConstraint) MatchesAny(Constraint) bool         { return true }
func (a anyConstraint) Intersect(o Constraint) Constraint { return o }
func (anyConstraint) constraintMarker()                  {}

type versionClause struct {
	raw      string
	op       string // "", "=", "==", "!=", ">=", "<=", ">", "<"
	version  Version
	wildcard bool
	prefix   string
}

func (c versionClause) matches(v Version) bool {
	if c.wildcard {
		return strings.HasPrefix(v.String(), c.prefix)
	}
	cmp := v.Compare(c.version)
	switch c.op {
	case "", "=", "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	default:
		return false
	}
}

type buildClause struct {
	raw      string
	wildcard bool
}

func (b buildClause) matches(build string) bool {
	if b.wildcard {
		return wildcardMatch(b.raw, build)
	}
	return b.raw == build
}

// parsedConstraint is the concrete, general-purpose Constraint: a
// conjunction of version clauses plus an optional build-string clause.
type parsedConstraint struct {
	raw     string
	clauses []versionClause
	build   *buildClause
}

func (p *parsedConstraint) String() string { return p.raw }

func (p *parsedConstraint) Matches(c Candidate) bool {
	for _, clause := range p.clauses {
		if !clause.matches(c.Version()) {
			return false
		}
	}
	if p.build != nil && !p.build.matches(c.Build()) {
		return false
	}
	return true
}

// MatchesAny reports whether some hypothetical candidate could satisfy both
// p and other. This is a best-effort approximation, not a full
// satisfiability check — the design explicitly excludes SAT-style
// resolution (see the must-compatible pass, which only ever calls Matches).
// The one case it proves disjoint is the common one: two single, exact
// version clauses that disagree.
func (p *parsedConstraint) MatchesAny(other Constraint) bool {
	op, ok := other.(*parsedConstraint)
	if !ok {
		return true
	}
	if exact, v, ok := p.soleExactVersion(); ok {
		if oexact, ov, ook := op.soleExactVersion(); ook && exact && oexact {
			return v.Compare(ov) == 0
		}
	}
	return true
}

func (p *parsedConstraint) soleExactVersion() (bool, Version, bool) {
	if len(p.clauses) != 1 || p.build != nil {
		return false, Version{}, false
	}
	c := p.clauses[0]
	if c.wildcard {
		return false, Version{}, false
	}
	switch c.op {
	case "", "=", "==":
		return true, c.version, true
	default:
		return false, Version{}, false
	}
}

// Intersect returns a Constraint whose Matches is the conjunction of p and
// other's. It does not attempt to simplify or prove the result empty.
func (p *parsedConstraint) Intersect(other Constraint) Constraint {
	if _, ok := other.(anyConstraint); ok {
		return p
	}
	return &intersectedConstraint{a: p, b: other}
}

func (*parsedConstraint) constraintMarker() {}

// intersectedConstraint is the lazy AND of two constraints produced by
// Intersect; it defers to both members rather than re-deriving a grammar.
type intersectedConstraint struct {
	a, b Constraint
}

func (i *intersectedConstraint) String() string {
	return i.a.String() + "," + i.b.String()
}
func (i *intersectedConstraint) Matches(c Candidate) bool {
	return i.a.Matches(c) && i.b.Matches(c)
}
func (i *intersectedConstraint) MatchesAny(other Constraint) bool {
	return i.a.MatchesAny(other) && i.b.MatchesAny(other)
}
func (i *intersectedConstraint) Intersect(other Constraint) Constraint {
	return &intersectedConstraint{a: i, b: other}
}
func (*intersectedConstraint) constraintMarker() {}

// Parse parses a conda matchspec "version-and-build" expression: a
// comma-separated conjunction of version clauses, optionally followed by
// whitespace and a build-string clause. The empty string parses to
// anyConstraint, matching everything.
func Parse(raw string) (Constraint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return anyConstraint{}, nil
	}

	versionSection := trimmed
	buildSection := ""
	if idx := strings.IndexAny(trimmed, " \t"); idx >= 0 {
		versionSection = trimmed[:idx]
		buildSection = strings.TrimSpace(trimmed[idx+1:])
	}

	var clauses []versionClause
	for _, part := range strings.Split(versionSection, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clause, err := parseClause(part)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	var build *buildClause
	if buildSection != "" {
		build = &buildClause{raw: buildSection, wildcard: strings.ContainsRune(buildSection, '*')}
	}

	return &parsedConstraint{raw: trimmed, clauses: clauses, build: build}, nil
}

var constraintOps = []string{">=", "<=", "==", "!=", ">", "<", "="}

func parseClause(s string) (versionClause, error) {
	op := ""
	rest := s
	for _, candidate := range constraintOps {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			rest = strings.TrimSpace(s[len(candidate):])
			break
		}
	}
	if rest == "" {
		return versionClause{}, &ParseError{Input: s, Reason: "empty version after operator"}
	}
	if strings.ContainsAny(rest[:1], "<>=!") {
		return versionClause{}, &ParseError{Input: s, Reason: "unexpected operator character in version"}
	}
	if strings.HasSuffix(rest, ".*") {
		return versionClause{raw: s, op: op, wildcard: true, prefix: strings.TrimSuffix(rest, ".*")}, nil
	}
	if strings.HasSuffix(rest, "*") && op == "" {
		return versionClause{raw: s, op: op, wildcard: true, prefix: strings.TrimSuffix(rest, "*")}, nil
	}
	return versionClause{raw: s, op: op, version: ParseVersion(rest)}, nil
}

// wildcardMatch reports whether s matches pattern, where '*' in pattern
// matches any run of characters (including none). It is the same
// single-metacharacter glob algorithm used for conda build-string matching.
func wildcardMatch(pattern, s string) bool {
	px, sx := 0, 0
	starIdx, match := -1, 0
	for sx < len(s) {
		switch {
		case px < len(pattern) && pattern[px] == '*':
			starIdx = px
			match = sx
			px++
		case px < len(pattern) && pattern[px] == s[sx]:
			px++
			sx++
		case starIdx != -1:
			px = starIdx + 1
			match++
			sx = match
		default:
			return false
		}
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}

// ParseError signals a malformed constraint string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("matchspec: invalid constraint %q: %s", e.Input, e.Reason)
}
