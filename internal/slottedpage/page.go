// Package slottedpage implements the on-disk byte layout of a single page
// (spec.md §3.3): a fixed header, a slot directory growing forward from
// the header, and a tuple region growing backward from the page's
// physical end. It operates directly on the byte buffer a PinGuard
// exposes; it owns no buffer of its own.
package slottedpage

import (
	"github.com/tuannm99/novasql-storage-core/internal/pageio"
	"github.com/tuannm99/novasql-storage-core/internal/storeerr"
)

const (
	headerSize    = 6
	slotEntrySize = 4
	checksumSize  = 4

	offPageID    = 0
	offNumSlots  = 2
	offFreeBytes = 4

	// FreeBytesInitial is the usable region of a freshly initialized page
	// (spec.md §4.4): PAGE_SIZE minus the 6-byte header.
	FreeBytesInitial = pageio.PageSize - headerSize
)

// ChecksumFunc computes the integrity tag stored alongside a tuple's
// payload. Supplied by the surrounding database (spec.md §6.2); the
// default in this module is crc32.ChecksumIEEE.
type ChecksumFunc func(payload []byte) uint32

func getU16(b []byte, off int) uint16 {
	return uint16(b[off]) | uint16(b[off+1])<<8
}

func putU16(b []byte, off int, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

func getU32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

// Page is a view over one page-sized byte buffer, interpreted as the
// slotted layout. It does not copy buf; callers must hold the
// corresponding PinGuard for as long as a Page wraps its bytes.
type Page struct {
	buf []byte
}

// Wrap interprets an already-initialized page buffer. buf must be
// exactly pageio.PageSize bytes.
func Wrap(buf []byte) Page {
	return Page{buf: buf}
}

// Init zero-fills buf and writes a fresh header for pageID (spec.md §4.4
// construction step): numSlots=0, freeBytes=FreeBytesInitial.
func Init(buf []byte, pageID uint16) Page {
	for i := range buf {
		buf[i] = 0
	}
	p := Page{buf: buf}
	putU16(buf, offPageID, pageID)
	putU16(buf, offNumSlots, 0)
	putU16(buf, offFreeBytes, FreeBytesInitial)
	return p
}

// PageID returns the header's integrity-check field.
func (p Page) PageID() uint16 { return getU16(p.buf, offPageID) }

// NumSlots returns the count of live slots.
func (p Page) NumSlots() uint16 { return getU16(p.buf, offNumSlots) }

// FreeBytes returns the bytes remaining between the slot directory's
// tail and the tuple region's head.
func (p Page) FreeBytes() uint16 { return getU16(p.buf, offFreeBytes) }

func (p Page) slotOffset(i uint16) int {
	return headerSize + int(i)*slotEntrySize
}

func (p Page) slot(i uint16) (tupleOffset, tupleLength int) {
	entry := getU32(p.buf, p.slotOffset(i))
	return int(entry >> 16), int(entry & 0xFFFF)
}

func (p Page) putSlot(i uint16, tupleOffset, tupleLength int) {
	entry := uint32(tupleOffset)<<16 | uint32(tupleLength)
	putU32(p.buf, p.slotOffset(i), entry)
}

// SpaceForTuple mirrors spec.md §3.3's spaceForTuple: checksum plus
// payload plus one slot directory entry. Exported so the heap file can
// check a candidate page's free-space entry before committing to it.
func SpaceForTuple(payloadLen int) int {
	return checksumSize + payloadLen + slotEntrySize
}

// tupleWatermark recovers the current low-water offset of the tuple
// region from the stored header fields rather than persisting a
// separate pointer (spec.md §9, fixing source defect #3: the tuple
// region is anchored at the page's physical end and a running watermark
// is derived, never computed as freeBytes-1-length).
func (p Page) tupleWatermark() int {
	consumed := FreeBytesInitial - int(p.FreeBytes()) - int(p.NumSlots())*slotEntrySize
	return pageio.PageSize - consumed
}

// AddTuple writes checksum+payload into the tuple region and appends a
// slot directory entry, returning the new slot id (spec.md §4.4 steps
// 7-8, minus the pin/dirty/free-space-map bookkeeping the heap file
// layer performs around this call).
func (p Page) AddTuple(payload []byte, checksum uint32) (slot uint16, err error) {
	needed := SpaceForTuple(len(payload))
	if int(p.FreeBytes()) < needed {
		return 0, storeerr.New(storeerr.CodeNoSpace, "slottedpage.AddTuple", nil)
	}

	watermark := p.tupleWatermark()
	tupleLen := checksumSize + len(payload)
	tupleOffset := watermark - tupleLen

	putU32(p.buf, tupleOffset, checksum)
	copy(p.buf[tupleOffset+checksumSize:], payload)

	slot = p.NumSlots()
	p.putSlot(slot, tupleOffset, tupleLen)
	putU16(p.buf, offNumSlots, slot+1)
	putU16(p.buf, offFreeBytes, p.FreeBytes()-uint16(needed))
	return slot, nil
}

// ReadTuple validates and returns the payload stored at slot (spec.md
// §4.4 read path). checksumFn recomputes the integrity tag over the
// payload; a mismatch, or any structurally invalid slot entry, is
// reported as Corruption rather than recovered locally (spec.md §7).
func (p Page) ReadTuple(slot uint16, checksumFn ChecksumFunc) ([]byte, error) {
	if slot >= p.NumSlots() {
		return nil, storeerr.New(storeerr.CodeOutOfBounds, "slottedpage.ReadTuple", nil)
	}
	tupleOffset, tupleLen := p.slot(slot)
	if tupleLen < checksumSize || tupleOffset < 0 || tupleOffset+tupleLen > pageio.PageSize {
		return nil, storeerr.New(storeerr.CodeCorruption, "slottedpage.ReadTuple", nil)
	}

	storedChecksum := getU32(p.buf, tupleOffset)
	payload := p.buf[tupleOffset+checksumSize : tupleOffset+tupleLen]

	if checksumFn(payload) != storedChecksum {
		return nil, storeerr.New(storeerr.CodeCorruption, "slottedpage.ReadTuple", nil)
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// VerifyPageID checks the header's self-identifying pageId field against
// the id the caller requested this page under (spec.md §6.1): a mismatch
// means the buffer pool handed back the wrong frame, or the backing
// bytes are corrupt.
func (p Page) VerifyPageID(expected uint16) error {
	if p.PageID() != expected {
		return storeerr.New(storeerr.CodeCorruption, "slottedpage.VerifyPageID", nil)
	}
	return nil
}
