package slottedpage

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novasql-storage-core/internal/pageio"
)

func freshPage(t *testing.T, pageID uint16) ([]byte, Page) {
	t.Helper()
	buf := make([]byte, pageio.PageSize)
	p := Init(buf, pageID)
	return buf, p
}

func TestPage_Init(t *testing.T) {
	_, p := freshPage(t, 7)
	require.EqualValues(t, 7, p.PageID())
	require.EqualValues(t, 0, p.NumSlots())
	require.EqualValues(t, FreeBytesInitial, p.FreeBytes())
}

func TestPage_AddAndReadTuple_RoundTrip(t *testing.T) {
	_, p := freshPage(t, 0)

	slot, err := p.AddTuple([]byte("hello"), 0x12345678)
	require.NoError(t, err)
	require.EqualValues(t, 0, slot)
	require.EqualValues(t, 1, p.NumSlots())
	require.EqualValues(t, FreeBytesInitial-13, p.FreeBytes())

	payload, err := p.ReadTuple(slot, func([]byte) uint32 { return 0x12345678 })
	require.NoError(t, err)
	require.Equal(t, "hello", string(payload))
}

func TestPage_MultipleTuples_OrderedBySlot(t *testing.T) {
	_, p := freshPage(t, 0)
	checksumFn := crc32.ChecksumIEEE

	payloads := [][]byte{[]byte("aaa"), []byte("bb"), []byte("cccccc")}
	slots := make([]uint16, len(payloads))
	for i, pl := range payloads {
		s, err := p.AddTuple(pl, checksumFn(pl))
		require.NoError(t, err)
		slots[i] = s
	}

	for i, pl := range payloads {
		got, err := p.ReadTuple(slots[i], checksumFn)
		require.NoError(t, err)
		require.Equal(t, pl, got)
	}
}

func TestPage_ChecksumMismatch_IsCorruption(t *testing.T) {
	_, p := freshPage(t, 0)
	slot, err := p.AddTuple([]byte("payload"), crc32.ChecksumIEEE([]byte("payload")))
	require.NoError(t, err)

	_, err = p.ReadTuple(slot, func([]byte) uint32 { return 0xDEADBEEF })
	require.Error(t, err)
}

func TestPage_BitFlip_DetectedAsCorruption(t *testing.T) {
	buf, p := freshPage(t, 0)
	payload := []byte("0123456789ABCDEF")
	slot, err := p.AddTuple(payload, crc32.ChecksumIEEE(payload))
	require.NoError(t, err)

	tupleOffset, _ := p.slot(slot)
	buf[tupleOffset+checksumSize] ^= 0x01

	_, err = p.ReadTuple(slot, crc32.ChecksumIEEE)
	require.Error(t, err)
}

func TestPage_FillToCapacity(t *testing.T) {
	_, p := freshPage(t, 0)
	payload := make([]byte, 16)
	needed := SpaceForTuple(len(payload))
	want := FreeBytesInitial / needed

	count := 0
	for {
		_, err := p.AddTuple(payload, 0)
		if err != nil {
			break
		}
		count++
	}
	require.Equal(t, want, count)

	_, err := p.AddTuple(payload, 0)
	require.Error(t, err)
}

func TestPage_HeaderConsistency(t *testing.T) {
	_, p := freshPage(t, 0)
	sizes := []int{5, 11, 3, 40}
	consumed := 0
	for i, sz := range sizes {
		payload := make([]byte, sz)
		slot, err := p.AddTuple(payload, 0)
		require.NoError(t, err)
		require.EqualValues(t, i, slot)
		consumed += SpaceForTuple(sz)
		require.EqualValues(t, i+1, p.NumSlots())
		require.EqualValues(t, FreeBytesInitial-consumed, p.FreeBytes())
	}
}

func TestPage_OutOfBoundsSlot(t *testing.T) {
	_, p := freshPage(t, 0)
	_, err := p.ReadTuple(0, crc32.ChecksumIEEE)
	require.Error(t, err)
}

func TestPage_VerifyPageID(t *testing.T) {
	_, p := freshPage(t, 3)
	require.NoError(t, p.VerifyPageID(3))
	require.Error(t, p.VerifyPageID(4))
}
