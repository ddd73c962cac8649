package heapfile

// TupleID identifies one tuple's slot within a heap file (spec.md §3.1),
// adapted from the teacher's row-level TID to address a byte-tuple slot
// directly rather than a decoded row.
type TupleID struct {
	PageID uint16
	Slot   uint16
}
