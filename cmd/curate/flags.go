package main

import "strings"

// repeatableFlag collects every occurrence of a flag.Value-based flag into
// an ordered slice, the way the teacher's own flags.go accumulates
// repeated -add/-override arguments.
type repeatableFlag struct {
	values *[]string
}

func (r *repeatableFlag) String() string {
	if r.values == nil {
		return ""
	}
	return strings.Join(*r.values, ",")
}

func (r *repeatableFlag) Set(v string) error {
	*r.values = append(*r.values, v)
	return nil
}

// knownArchitectures is the full set of subdirs curate understands when
// `-a` is never passed.
var knownArchitectures = []string{
	"freebsd-64",
	"linux-32", "linux-64", "linux-aarch64", "linux-armv6l", "linux-armv7l",
	"linux-ppc64", "linux-ppc64le", "linux-riscv64", "linux-s390x",
	"osx-64", "osx-arm64",
	"win-32", "win-64", "win-arm64",
	"zos-z",
}
