package repodata

import (
	"container/heap"
	"sort"
)

// Entry pairs a package record with the filename it is keyed under.
type Entry struct {
	Filename string
	Record   *PackageRecord
}

func lessEntry(a, b Entry) bool {
	if a.Record.NameField != b.Record.NameField {
		return a.Record.NameField < b.Record.NameField
	}
	if c := a.Record.version.Compare(b.Record.version); c != 0 {
		return c < 0
	}
	return a.Filename < b.Filename
}

// EntriesFromMap turns one raw package map into a slice of Entry sorted
// ascending by (name, version, filename) — the bucket order MergeSorted
// expects.
func EntriesFromMap(m map[string]*PackageRecord) []Entry {
	entries := make([]Entry, 0, len(m))
	for fn, rec := range m {
		entries = append(entries, Entry{Filename: fn, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool { return lessEntry(entries[i], entries[j]) })
	return entries
}

// mergeItem is one candidate in the merge heap: the next unconsumed entry of
// a particular bucket.
type mergeItem struct {
	entry     Entry
	bucketIdx int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return lessEntry(h[i].entry, h[j].entry) }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeSorted performs a heap-based k-way merge of any number of
// pre-sorted buckets (each ascending by (name, version, filename)) into one
// ascending stream, in the spirit of the teacher's own container/heap-based
// versionQueue machinery in solver.go. Typical callers pass the four buckets
// of an arch+noarch pair: packages and packages.conda from each.
func MergeSorted(buckets ...[]Entry) []Entry {
	h := &mergeHeap{}
	positions := make([]int, len(buckets))
	total := 0
	for i, b := range buckets {
		total += len(b)
		if len(b) > 0 {
			heap.Push(h, mergeItem{entry: b[0], bucketIdx: i})
			positions[i] = 1
		}
	}

	result := make([]Entry, 0, total)
	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)
		result = append(result, item.entry)
		bi := item.bucketIdx
		if positions[bi] < len(buckets[bi]) {
			heap.Push(h, mergeItem{entry: buckets[bi][positions[bi]], bucketIdx: bi})
			positions[bi]++
		}
	}
	return result
}
