// Package dynamicstorage implements spec §4.5: a named, typed shared region
// carrying a header of { init_state, has_ownership, value, supplementary }
// with a timed-handoff creation protocol and type-fingerprinted opens.
package dynamicstorage

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/logutil"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

const (
	stateUninitialized int32 = 0
	stateInitialized   int32 = 1
)

// header is the exact byte layout placed at the start of the backing
// segment: init_state, has_ownership, a type fingerprint, then the value.
// Supplementary bytes (if any) follow immediately after this struct in the
// segment's slice.
type header[T any] struct {
	initState    int32
	hasOwnership int32
	fingerprint  uint64
	value        T
}

func fingerprintOf[T any]() uint64 {
	var zero T
	h := fnv.New64a()
	_, _ = h.Write([]byte(reflect.TypeOf(zero).String()))
	return h.Sum64()
}

// HeaderSize returns the fixed header size for T, usable by callers sizing
// the backing segment (header + supplementary).
func HeaderSize[T any]() uint64 {
	var h header[T]
	return uint64(unsafe.Sizeof(h))
}

// Storage is an attached handle to a dynamic-storage entry.
type Storage[T any] struct {
	seg                   *shm.Segment
	hdr                   *header[T]
	supplementary         []byte
	callDropOnDestruction bool
	dropHook              func(*T)
}

// CreateOptions configures Create.
type CreateOptions[T any] struct {
	Name              string
	SupplementarySize uint64
	HasOwnership      bool
	InitialValue      T
	// Initializer runs over the supplementary region's bump allocator. A
	// non-nil error unlinks the segment and surfaces as InitializationFailed.
	Initializer func(value *T, supplementary *bump.Allocator) error
	DropHook    func(*T)
}

// Create implements spec §4.5's four-step creation protocol.
func Create[T any](opts CreateOptions[T]) (*Storage[T], error) {
	total := HeaderSize[T]() + opts.SupplementarySize

	seg, err := shm.Create(shm.Config{
		Name:         opts.Name,
		Size:         total,
		Mode:         shm.CreateExclusive,
		ZeroMemory:   true,
		HasOwnership: opts.HasOwnership,
	})
	if err != nil {
		return nil, err
	}

	hdr := (*header[T])(unsafe.Pointer(&seg.AsSlice()[0]))
	hdr.value = opts.InitialValue
	if opts.HasOwnership {
		hdr.hasOwnership = 1
	}
	hdr.fingerprint = fingerprintOf[T]()

	supplementary := seg.AsSlice()[HeaderSize[T]():]

	if opts.Initializer != nil {
		alloc := bump.NewFromSlice(supplementary)
		if err := opts.Initializer(&hdr.value, alloc); err != nil {
			seg.AcquireOwnership()
			_ = seg.Close()
			return nil, ipcerr.New(ipcerr.InitializationFailed, "dynamicstorage.Create", err)
		}
	}

	// Release-ordered publish: every write above must be visible to any
	// opener that observes Initialized, per spec §5.
	atomic.StoreInt32(&hdr.initState, stateInitialized)

	return &Storage[T]{
		seg:                   seg,
		hdr:                   hdr,
		supplementary:         supplementary,
		callDropOnDestruction: true,
		dropHook:              opts.DropHook,
	}, nil
}

// OpenOptions configures Open.
type OpenOptions struct {
	Name         string
	Timeout      time.Duration
	HasOwnership bool
}

// Open implements spec §4.5's timed open protocol: poll init_state with
// adaptive backoff until Initialized or Timeout elapses.
func Open[T any](opts OpenOptions) (*Storage[T], error) {
	seg, err := shm.Open(opts.Name, opts.HasOwnership)
	if err != nil {
		return nil, err
	}

	if uint64(len(seg.AsSlice())) < HeaderSize[T]() {
		_ = seg.Close()
		return nil, ipcerr.New(ipcerr.DoesNotExist, "dynamicstorage.Open", fmt.Errorf("segment too small for type"))
	}

	hdr := (*header[T])(unsafe.Pointer(&seg.AsSlice()[0]))
	if hdr.fingerprint != fingerprintOf[T]() {
		// Type mismatch is treated as absence, per spec §4.5.
		_ = seg.Close()
		return nil, ipcerr.New(ipcerr.DoesNotExist, "dynamicstorage.Open", fmt.Errorf("type fingerprint mismatch"))
	}

	deadline := time.Now().Add(opts.Timeout)
	backoff := time.Microsecond * 50
	const maxBackoff = 10 * time.Millisecond
	for atomic.LoadInt32(&hdr.initState) != stateInitialized {
		if opts.Timeout > 0 && time.Now().After(deadline) {
			_ = seg.Close()
			return nil, ipcerr.New(ipcerr.InitializationNotYetFinalized, "dynamicstorage.Open", nil)
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return &Storage[T]{
		seg:                   seg,
		hdr:                   hdr,
		supplementary:         seg.AsSlice()[HeaderSize[T]():],
		callDropOnDestruction: true,
	}, nil
}

// Value returns a pointer to the embedded T, valid only after the handle
// has observed Initialized (guaranteed by Create/Open's own contract).
func (s *Storage[T]) Value() *T { return &s.hdr.value }

// Supplementary returns the raw supplementary bytes placed after the header.
func (s *Storage[T]) Supplementary() []byte { return s.supplementary }

// HasOwnership reports the header's persisted ownership flag.
func (s *Storage[T]) HasOwnership() bool { return s.hdr.hasOwnership != 0 }

// SetCallDropOnDestruction toggles whether Close invokes the drop hook —
// spec §4.5's accommodation for POD types that need no hook at all.
func (s *Storage[T]) SetCallDropOnDestruction(call bool) { s.callDropOnDestruction = call }

// AcquireOwnership causes Close to unlink the segment, for callers
// performing a deliberate forced removal (e.g. internal/service.Remove).
func (s *Storage[T]) AcquireOwnership() { s.seg.AcquireOwnership() }

// ReleaseOwnership defers cleanup to a later process, mirroring
// shm.Segment.ReleaseOwnership (spec §4.5: "release_ownership() is a no-op
// for the purpose of deferring cleanup" when no persistency substrate is
// present; here it simply hands unlink responsibility elsewhere).
func (s *Storage[T]) ReleaseOwnership() { s.seg.ReleaseOwnership() }

// Close implements spec §4.5's drop semantics: if the segment has
// ownership, unlinking it invokes the drop hook on Value() unless disabled.
func (s *Storage[T]) Close() error {
	if s.seg.HasOwnership() && s.callDropOnDestruction && s.dropHook != nil {
		s.dropHook(&s.hdr.value)
	}
	if err := s.seg.Close(); err != nil {
		logutil.WithComponent("dynamicstorage").WithError(err).Warn("failed to close segment")
		return err
	}
	return nil
}

// RemoveCfg removes a dynamic-storage entry by name directly (bypassing any
// in-process handle), calling dropHook on its value first if T matches and
// a hook is supplied — mirroring spec §4.5's "list
// filters by T-fingerprint" and "remove_cfg also calls drop on the value if
// the type registered a hook."
func RemoveCfg[T any](name string, dropHook func(*T)) (bool, error) {
	seg, err := shm.Open(name, true)
	if err != nil {
		if ipcerr.Is(err, ipcerr.DoesNotExist) {
			return false, nil
		}
		return false, err
	}
	if uint64(len(seg.AsSlice())) >= HeaderSize[T]() {
		hdr := (*header[T])(unsafe.Pointer(&seg.AsSlice()[0]))
		if hdr.fingerprint == fingerprintOf[T]() {
			if dropHook != nil {
				dropHook(&hdr.value)
			}
		} else {
			// Type mismatch: treat as "not removed" per spec §4.5, and do not
			// unlink a resource of a different logical type.
			seg.ReleaseOwnership()
			_ = seg.Close()
			return false, nil
		}
	}
	seg.AcquireOwnership()
	if err := seg.Close(); err != nil {
		return false, err
	}
	return true, nil
}
