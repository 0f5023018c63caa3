// Package handle implements the reference-counted, position-independent
// carrier for a primitive OS synchronization object described in spec §3/
// §4.3: mutexes, condition variables, and semaphores are placed inline in
// shared memory and never moved; this package is the state machine guarding
// their one-time initialization and exactly-once destruction.
package handle

import (
	"sync"
	"sync/atomic"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/logutil"
)

// State is the init-state word of spec §4.3.
type State int32

const (
	Uninitialized State = iota
	PerformingInitialization
	Initialized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case PerformingInitialization:
		return "PerformingInitialization"
	case Initialized:
		return "Initialized"
	default:
		return "Unknown"
	}
}

// Storage wraps a primitive T (e.g. a POSIX mutex, condvar, or semaphore)
// with the init-state word and reference count spec §4.3 requires. The
// state word and reference count are plain int32/int64 fields manipulated
// with sync/atomic so they remain consistent when this struct itself lives
// in shared memory shared across processes (spec §3: "the reference count
// is itself in shared memory for process-shared handles").
type Storage[T any] struct {
	state         int32
	refCount      int32
	ProcessShared bool
	Value         T

	// destroyOnce guards cleanup from running twice within one process.
	// It is an in-process guard only: sync.Once has no cross-process
	// equivalent, so it cannot by itself satisfy spec §4.3's "destroyed
	// exactly once across processes" when ProcessShared is true — that
	// stronger guarantee instead comes from refCount reaching zero exactly
	// once (the atomic decrement below), with destroyOnce only preventing a
	// redundant second Release call *within the process that observed the
	// zero crossing* from invoking cleanup twice.
	destroyOnce sync.Once
}

// NewStorage constructs an uninitialized handle wrapping zero-value T.
func NewStorage[T any](processShared bool) *Storage[T] {
	return &Storage[T]{ProcessShared: processShared}
}

// CurrentState returns a snapshot of the init-state word.
func (s *Storage[T]) CurrentState() State {
	return State(atomic.LoadInt32(&s.state))
}

// Initialize attempts the Uninitialized -> PerformingInitialization
// transition; on success it invokes init against the embedded primitive and,
// if init succeeds, transitions to Initialized with a release store so
// concurrent observers that acquire-load the state word afterward see a
// fully constructed Value (spec §5's init_state ordering). Concurrent
// initializers race on the CAS; exactly one wins and the rest receive
// AlreadyInitialized, per spec §4.3's contract.
func (s *Storage[T]) Initialize(init func(*T) error) error {
	if !atomic.CompareAndSwapInt32(&s.state, int32(Uninitialized), int32(PerformingInitialization)) {
		return ipcerr.New(ipcerr.AlreadyInitialized, "Storage.Initialize", nil)
	}
	if err := init(&s.Value); err != nil {
		atomic.StoreInt32(&s.state, int32(Uninitialized))
		return err
	}
	s.refCount = 1
	atomic.StoreInt32(&s.state, int32(Initialized))
	return nil
}

// Acquire increments the reference count and returns the primitive, failing
// if the handle has not observed Initialized yet — observers must not touch
// the primitive before that point (spec §4.3).
func (s *Storage[T]) Acquire() (*T, error) {
	if s.CurrentState() != Initialized {
		return nil, ipcerr.New(ipcerr.InitializationNotYetFinalized, "Storage.Acquire", nil)
	}
	atomic.AddInt32(&s.refCount, 1)
	return &s.Value, nil
}

// Release decrements the reference count and, when it reaches zero, invokes
// cleanup exactly once against the primitive — mirroring spec §4.3's
// "handles are destroyed exactly once, when the last holder releases."
func (s *Storage[T]) Release(cleanup func(*T)) {
	remaining := atomic.AddInt32(&s.refCount, -1)
	if remaining > 0 {
		return
	}
	if remaining < 0 {
		logutil.WithComponent("handle").Warn("Storage.Release called more times than Initialize and Acquire combined")
		return
	}
	s.destroyOnce.Do(func() {
		cleanup(&s.Value)
	})
}
