// Package freespace implements the heap file's free-space priority
// structure (spec.md §3.5): a max-heap over pages ordered by remaining
// capacity, with pageId as a deterministic tiebreaker packed into the
// same 32-bit entry.
//
// A page "checked out" for an in-flight insert is absent from the
// structure until the insert re-publishes it with updated free bytes;
// this is what lets concurrent inserts avoid double-packing a page.
package freespace

import (
	"container/heap"
	"sync"
)

// Entry packs a page's remaining bytes into the high 16 bits and its
// page id into the low 16 bits (spec.md §3.5). The map orders entries by
// free space descending; on equal free space the lower page id ranks
// first.
type Entry uint32

// MakeEntry builds an Entry from its components.
func MakeEntry(freeBytes uint16, pageID uint16) Entry {
	return Entry(uint32(freeBytes)<<16 | uint32(pageID))
}

// FreeBytes extracts the free-space component.
func (e Entry) FreeBytes() uint16 { return uint16(e >> 16) }

// PageID extracts the page-id component.
func (e Entry) PageID() uint16 { return uint16(e & 0xFFFF) }

// ranksAbove reports whether a pops before b: more free bytes first,
// and on a tie the lower page id first.
func ranksAbove(a, b Entry) bool {
	if a.FreeBytes() != b.FreeBytes() {
		return a.FreeBytes() > b.FreeBytes()
	}
	return a.PageID() < b.PageID()
}

type maxHeap []Entry

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return ranksAbove(h[i], h[j]) }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(Entry)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Map is the concurrency-safe free-space structure. All operations that
// observe and then mutate the top entry take a single exclusive lock
// for the whole sequence (spec.md §9, fixing source defect #4: a
// shared-lock peek followed by a separately-locked pop is not atomic).
type Map struct {
	mu sync.Mutex
	h  maxHeap
}

// New creates an empty free-space map with room for capacity entries.
func New(capacity int) *Map {
	h := make(maxHeap, 0, capacity)
	heap.Init(&h)
	return &Map{h: h}
}

// Push publishes an entry, making its page eligible for the next
// PopAtLeast to select.
func (m *Map) Push(e Entry) {
	m.mu.Lock()
	heap.Push(&m.h, e)
	m.mu.Unlock()
}

// PopAtLeast atomically checks whether the best (highest free-space)
// entry has at least `needed` free bytes and, if so, pops and returns
// it. The page is then privately owned by the caller until they Push it
// back (spec.md §4.4 steps 3-4). ok is false when the map is empty or
// the top entry cannot satisfy needed.
func (m *Map) PopAtLeast(needed uint16) (entry Entry, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.h) == 0 || m.h[0].FreeBytes() < needed {
		return 0, false
	}
	return heap.Pop(&m.h).(Entry), true
}

// Len reports how many pages currently have a published free-space
// entry (i.e. are not checked out for an in-flight insert).
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.h)
}

// TotalFreeBytes sums FreeBytes() across every currently-published
// entry. Pages checked out for an in-flight insert are excluded until
// re-published, so under concurrent writers this is a point-in-time
// lower bound rather than an exact total.
func (m *Map) TotalFreeBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.h {
		total += int64(e.FreeBytes())
	}
	return total
}
