package reloc

import (
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
)

// Queue is a bounded FIFO of T, addressed through a RelocatablePointer to
// its backing storage (spec §4.2). Construction is two-phase: NewUninitQueue
// reserves the header, Init binds the data pointer to capacity*sizeof(T)
// bytes obtained from a bump.Allocator.
type Queue[T any] struct {
	capacity uint64
	length   uint64
	head     uint64
	data     RelocatablePointer
}

// QueueMemorySize is the pure function of spec §4.2's const_memory_size: the
// total bytes a placed Queue[T] plus its backing storage demands.
func QueueMemorySize[T any](capacity uint64) uint64 {
	var zero T
	return uint64(unsafe.Sizeof(Queue[T]{})) + capacity*uint64(unsafe.Sizeof(zero))
}

// NewUninitQueue reserves the header but leaves the data pointer invalid
// until Init is called. Unsafe: the queue is not usable before Init.
func NewUninitQueue[T any](capacity uint64) *Queue[T] {
	return &Queue[T]{capacity: capacity}
}

// Init allocates capacity*sizeof(T) bytes from alloc and binds the data
// pointer. Unsafe: must be called exactly once, before any other operation.
func (q *Queue[T]) Init(alloc *bump.Allocator) error {
	var zero T
	elemSize := uint64(unsafe.Sizeof(zero))
	buf, err := alloc.Allocate(q.capacity*elemSize, uint64(unsafe.Alignof(zero)))
	if err != nil {
		return ipcerr.New(ipcerr.InsufficientMemory, "Queue.Init", err)
	}
	if len(buf) > 0 {
		q.data.Set(unsafe.Pointer(&buf[0]))
	} else {
		q.data.valid = true
	}
	return nil
}

func (q *Queue[T]) slot(i uint64) *T {
	var zero T
	base := uintptr(q.data.Get())
	return (*T)(unsafe.Pointer(base + uintptr(i)*unsafe.Sizeof(zero)))
}

// Capacity returns the fixed capacity passed to NewUninitQueue.
func (q *Queue[T]) Capacity() uint64 { return q.capacity }

// Len returns the number of elements currently queued.
func (q *Queue[T]) Len() uint64 { return q.length }

// IsFull reports whether the queue is at capacity.
func (q *Queue[T]) IsFull() bool { return q.length == q.capacity }

// IsEmpty reports whether the queue holds no elements.
func (q *Queue[T]) IsEmpty() bool { return q.length == 0 }

// Push appends v at the tail. Caller-side bug (capacity 0, or pushing onto a
// full queue) aborts per spec §4.2's failure model — callers must check
// IsFull first; this mirrors the teacher's convention of treating
// out-of-range container use as a programming error, not a recoverable one.
func (q *Queue[T]) Push(v T) {
	if q.IsFull() {
		ipcerr.Fatal("Queue.Push", errQueueFull)
	}
	tail := (q.head + q.length) % q.capacity
	*q.slot(tail) = v
	q.length++
}

// Pop removes and returns the head element, or ok=false if empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.IsEmpty() {
		return zero, false
	}
	v := *q.slot(q.head)
	q.head = (q.head + 1) % q.capacity
	q.length--
	return v, true
}

// Front returns the head element without removing it.
func (q *Queue[T]) Front() (T, bool) {
	var zero T
	if q.IsEmpty() {
		return zero, false
	}
	return *q.slot(q.head), true
}

var errQueueFull = ipcerr.New(ipcerr.InsertWouldExceedCapacity, "Queue", nil)
