// Package diskmgr implements the disk manager: a registry of logical
// files that exposes byte-addressed I/O over each (spec.md §4.2).
//
// The reference backing is an in-memory, zero-initialized byte buffer per
// file — spec.md's Non-goals explicitly permit this ("durability across
// process restart" is out of scope), and it is the same choice the
// original implementation makes.
package diskmgr

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tuannm99/novasql-storage-core/internal/storeerr"
)

// MaxFiles bounds the number of logical files a single Manager can host
// (spec.md §3.2).
const MaxFiles = 100

// FileID identifies a registered logical file. Ids are assigned
// monotonically starting at 0 and are never reused within a process
// (spec.md §3.1, §3.7).
type FileID uint16

type file struct {
	mu  sync.RWMutex
	buf []byte
}

// Manager owns up to MaxFiles logical file backings and performs
// byte-addressed reads and writes against them.
type Manager struct {
	next  atomic.Uint32
	files [MaxFiles]*file
}

// New creates an empty disk manager.
func New() *Manager {
	return &Manager{}
}

// RegisterFile installs a freshly zeroed backing of initialBytes bytes
// and returns its stable FileID. It panics if the manager's file table is
// exhausted — exceeding MaxFiles is a caller/deployment error, not an
// operational one (spec.md §7).
func (m *Manager) RegisterFile(initialBytes int) FileID {
	id := m.next.Add(1) - 1
	if id >= MaxFiles {
		panic("diskmgr: too many registered files")
	}
	m.files[id] = &file{buf: make([]byte, initialBytes)}
	slog.Debug("diskmgr: registered file", "fileID", id, "bytes", initialBytes)
	return FileID(id)
}

func (m *Manager) lookup(id FileID) (*file, error) {
	if int(id) >= MaxFiles || m.files[id] == nil {
		return nil, storeerr.New(storeerr.CodeBadFileID, "diskmgr.lookup", nil)
	}
	return m.files[id], nil
}

// Read copies len(out) bytes from the file's backing at offset into out.
// It fails with ErrBadFileID / ErrOutOfBounds rather than panicking,
// since a bad offset can be caller-supplied data rather than a
// programming mistake (e.g. a corrupted page id read back from disk).
func (m *Manager) Read(id FileID, offset int64, out []byte) error {
	f, err := m.lookup(id)
	if err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if offset < 0 || offset+int64(len(out)) > int64(len(f.buf)) {
		return storeerr.New(storeerr.CodeOutOfBounds, "diskmgr.Read", nil)
	}
	copy(out, f.buf[offset:offset+int64(len(out))])
	return nil
}

// Write copies len(in) bytes from in into the file's backing at offset.
// Concurrent writes to disjoint ranges of the same file are safe;
// overlapping concurrent writers are the buffer pool's responsibility to
// prevent via the pin discipline (spec.md §4.2, §5).
func (m *Manager) Write(id FileID, offset int64, in []byte) error {
	f, err := m.lookup(id)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if offset < 0 || offset+int64(len(in)) > int64(len(f.buf)) {
		return storeerr.New(storeerr.CodeOutOfBounds, "diskmgr.Write", nil)
	}
	copy(f.buf[offset:offset+int64(len(in))], in)
	return nil
}
