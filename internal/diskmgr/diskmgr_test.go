package diskmgr

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_RegisterAndReadWrite(t *testing.T) {
	m := New()
	id := m.RegisterFile(64)

	in := []byte("0123456789")
	require.NoError(t, m.Write(id, 10, in))

	out := make([]byte, len(in))
	require.NoError(t, m.Read(id, 10, out))
	require.Equal(t, in, out)
}

func TestManager_FreshBackingIsZeroed(t *testing.T) {
	m := New()
	id := m.RegisterFile(16)

	out := make([]byte, 16)
	require.NoError(t, m.Read(id, 0, out))
	require.Equal(t, make([]byte, 16), out)
}

func TestManager_OutOfBounds(t *testing.T) {
	m := New()
	id := m.RegisterFile(8)

	require.Error(t, m.Read(id, 4, make([]byte, 8)))
	require.Error(t, m.Write(id, -1, make([]byte, 1)))
}

func TestManager_BadFileID(t *testing.T) {
	m := New()
	require.Error(t, m.Read(FileID(0), 0, make([]byte, 1)))
}

func TestManager_IDsAreStableAndMonotonic(t *testing.T) {
	m := New()
	a := m.RegisterFile(8)
	b := m.RegisterFile(8)
	require.NotEqual(t, a, b)
	require.Less(t, uint16(a), uint16(b))
}

func TestManager_ConcurrentDisjointWrites(t *testing.T) {
	m := New()
	id := m.RegisterFile(4096)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 256)
			for j := range buf {
				buf[j] = byte(i)
			}
			require.NoError(t, m.Write(id, int64(i*256), buf))
		}()
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		out := make([]byte, 256)
		require.NoError(t, m.Read(id, int64(i*256), out))
		for _, b := range out {
			require.Equal(t, byte(i), b)
		}
	}
}
