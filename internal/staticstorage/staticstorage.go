// Package staticstorage implements spec §4.6: an entry created in a locked
// state, populated by its builder, then unlocked atomically so that any
// reader either sees IsLocked or a fully-written, immutable payload — never
// a partial write. Used by internal/node and internal/service to publish
// their serialized details/configuration (spec §4.10, §4.12).
package staticstorage

import (
	"sync/atomic"
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

const (
	stateLocked   int32 = 0
	stateUnlocked int32 = 1
)

type header struct {
	state  int32
	length uint64
}

var headerSize = uint64(unsafe.Sizeof(header{}))

func headerOf(seg *shm.Segment) *header {
	return (*header)(unsafe.Pointer(&seg.AsSlice()[0]))
}

func payloadOf(seg *shm.Segment) []byte {
	return seg.AsSlice()[headerSize:]
}

// Builder is the create-time handle: the entry is locked until Unlock is
// called, at which point Write's payload becomes visible to readers.
type Builder struct {
	seg *shm.Segment
}

// Create establishes a new locked entry sized to hold up to maxPayload
// bytes.
func Create(name string, maxPayload uint64, hasOwnership bool) (*Builder, error) {
	seg, err := shm.Create(shm.Config{
		Name:         name,
		Size:         headerSize + maxPayload,
		Mode:         shm.CreateExclusive,
		ZeroMemory:   true,
		HasOwnership: hasOwnership,
	})
	if err != nil {
		return nil, err
	}
	headerOf(seg).state = stateLocked
	return &Builder{seg: seg}, nil
}

// Write copies payload into the entry. Must be called before Unlock; the
// entry remains locked (and thus invisible to readers) until then.
func (b *Builder) Write(payload []byte) error {
	dst := payloadOf(b.seg)
	if uint64(len(payload)) > uint64(len(dst)) {
		return ipcerr.New(ipcerr.SizeDoesNotFit, "staticstorage.Builder.Write", nil)
	}
	copy(dst, payload)
	headerOf(b.seg).length = uint64(len(payload))
	return nil
}

// Unlock atomically publishes the written payload to readers.
func (b *Builder) Unlock() {
	atomic.StoreInt32(&headerOf(b.seg).state, stateUnlocked)
}

// ReleaseOwnership causes Close to leave the entry intact rather than
// unlinking it.
func (b *Builder) ReleaseOwnership() { b.seg.ReleaseOwnership() }

// Close releases the builder handle. If the entry was never unlocked, the
// incomplete entry is unlinked, whether or not this handle had ownership,
// rather than left visible in a permanently-locked state.
func (b *Builder) Close() error {
	if atomic.LoadInt32(&headerOf(b.seg).state) == stateLocked {
		b.seg.AcquireOwnership()
	}
	return b.seg.Close()
}

// Reader is an attached, read-only handle to an unlocked entry.
type Reader struct {
	seg *shm.Segment
}

// Open attaches to name. Returns IsLocked immediately (no retry) if the
// entry has not yet been unlocked by its builder, per spec §4.6.
func Open(name string, hasOwnership bool) (*Reader, error) {
	seg, err := shm.Open(name, hasOwnership)
	if err != nil {
		return nil, err
	}
	if atomic.LoadInt32(&headerOf(seg).state) != stateUnlocked {
		_ = seg.Close()
		return nil, ipcerr.New(ipcerr.IsLocked, "staticstorage.Open", nil)
	}
	return &Reader{seg: seg}, nil
}

// Len returns the payload's length in bytes.
func (r *Reader) Len() uint64 { return headerOf(r.seg).length }

// Read fills buf with exactly Len() bytes. len(buf) must equal Len().
func (r *Reader) Read(buf []byte) error {
	n := r.Len()
	if uint64(len(buf)) != n {
		return ipcerr.New(ipcerr.SizeDoesNotFit, "staticstorage.Reader.Read", nil)
	}
	copy(buf, payloadOf(r.seg)[:n])
	return nil
}

// Bytes returns a read-only view of the payload without copying.
func (r *Reader) Bytes() []byte { return payloadOf(r.seg)[:r.Len()] }

// ReleaseOwnership causes Close to leave the entry intact.
func (r *Reader) ReleaseOwnership() { r.seg.ReleaseOwnership() }

// Close detaches the reader, unlinking the entry if this handle owns it.
func (r *Reader) Close() error { return r.seg.Close() }
