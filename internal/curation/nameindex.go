package curation

import radix "github.com/armon/go-radix"

// nameRangeTrie is a typed wrapper around armon/go-radix, following exactly
// the pattern the teacher uses for deducerTrie in typed_radix.go: a thin
// struct holding a *radix.Tree with typed accessors, so the rest of the
// engine never performs its own interface{} assertions. Package names are
// heavily prefix-structured (r-, lib, python-, the __-prefixed virtuals).
// WalkPrefix exposes prefix walks over the index; the CLI's --explain
// output prints one line per removal and does not walk it.
type nameRangeTrie struct {
	t *radix.Tree
}

func newNameRangeTrie() *nameRangeTrie {
	return &nameRangeTrie{t: radix.New()}
}

func (n *nameRangeTrie) Get(name string) (NameRange, bool) {
	v, ok := n.t.Get(name)
	if !ok {
		return NameRange{}, false
	}
	return v.(NameRange), true
}

func (n *nameRangeTrie) Insert(name string, r NameRange) {
	n.t.Insert(name, r)
}

func (n *nameRangeTrie) Len() int {
	return n.t.Len()
}

// WalkPrefix visits every (name, NameRange) pair whose name has the given
// prefix, in the trie's own order. fn returning false stops the walk early.
func (n *nameRangeTrie) WalkPrefix(prefix string, fn func(name string, r NameRange) bool) {
	n.t.WalkPrefix(prefix, func(s string, v interface{}) bool {
		return !fn(s, v.(NameRange))
	})
}
