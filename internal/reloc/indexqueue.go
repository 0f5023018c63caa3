package reloc

import (
	"sync/atomic"
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
)

// IndexQueue is the lock-free single-producer/single-consumer ring buffer of
// uint64 indices used as the building block for the zero-copy connection's
// `buffer` and `retrieval` queues (spec §3, §4.9) and for publisher
// freelists. Only one goroutine/process may call Push, and only one may
// call Pop, concurrently — the same SPSC discipline spec §5 requires of the
// zero-copy connection.
//
// head is owned by the consumer (advanced on Pop), tail is owned by the
// producer (advanced on Push); each side publishes its own counter with an
// atomic store (release) and observes the other's with an atomic load
// (acquire), matching spec §5's ordering requirements.
type IndexQueue struct {
	capacity uint64
	data     RelocatablePointer
	head     uint64
	tail     uint64
}

// IndexQueueMemorySize mirrors spec §4.2's const_memory_size for IndexQueue.
func IndexQueueMemorySize(capacity uint64) uint64 {
	return uint64(unsafe.Sizeof(IndexQueue{})) + capacity*8
}

// NewUninitIndexQueue reserves the header; Init must be called before use.
func NewUninitIndexQueue(capacity uint64) *IndexQueue {
	return &IndexQueue{capacity: capacity}
}

// Init allocates capacity*8 bytes from alloc for the backing ring.
func (q *IndexQueue) Init(alloc *bump.Allocator) error {
	buf, err := alloc.Allocate(q.capacity*8, 8)
	if err != nil {
		return ipcerr.New(ipcerr.InsufficientMemory, "IndexQueue.Init", err)
	}
	if len(buf) > 0 {
		q.data.Set(unsafe.Pointer(&buf[0]))
	} else {
		q.data.valid = true
	}
	return nil
}

func (q *IndexQueue) slot(i uint64) *uint64 {
	base := uintptr(q.data.Get())
	return (*uint64)(unsafe.Pointer(base + uintptr(i%q.capacity)*8))
}

// Capacity returns the fixed ring capacity.
func (q *IndexQueue) Capacity() uint64 { return q.capacity }

// Len returns a snapshot of the number of entries currently queued. It is
// advisory only for a concurrent caller on the non-owning side.
func (q *IndexQueue) Len() uint64 {
	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)
	return tail - head
}

// IsEmpty reports whether the queue is currently empty (consumer-side check).
func (q *IndexQueue) IsEmpty() bool {
	return atomic.LoadUint64(&q.tail) == atomic.LoadUint64(&q.head)
}

// IsFull reports whether the queue is currently at capacity (producer-side
// check).
func (q *IndexQueue) IsFull() bool {
	return q.Len() >= q.capacity
}

// TryPush attempts to enqueue v; it returns false without mutating state if
// the ring is full. Must only be called by the single producer.
func (q *IndexQueue) TryPush(v uint64) bool {
	head := atomic.LoadUint64(&q.head) // acquire: see consumer's progress
	tail := q.tail                     // producer-owned, no atomic needed
	if tail-head >= q.capacity {
		return false
	}
	*q.slot(tail) = v
	atomic.StoreUint64(&q.tail, tail+1) // release: publish the new entry
	return true
}

// PopOldestAndPush implements the safe-overflow path of spec §4.9's
// try_send: atomically (from the single producer's perspective) evicts the
// oldest entry and pushes v, returning the evicted value. Only valid when
// the ring is full; callers must check IsFull first.
func (q *IndexQueue) PopOldestAndPush(v uint64) (displaced uint64, ok bool) {
	head := q.head // producer does not normally own head, but safe-overflow
	// eviction is a producer-side operation performed only when the ring is
	// observed full, i.e. head has not advanced past tail-capacity; the
	// producer advances head itself to evict, which is safe because the
	// consumer only ever reads slots in [head, tail) and an evicted slot's
	// old content is never re-read once head has moved past it.
	tail := q.tail
	if tail-head < q.capacity {
		return 0, false
	}
	displaced = *q.slot(head)
	atomic.StoreUint64(&q.head, head+1)
	*q.slot(tail) = v
	atomic.StoreUint64(&q.tail, tail+1)
	return displaced, true
}

// TryPop attempts to dequeue the oldest entry; ok is false if empty. Must
// only be called by the single consumer.
func (q *IndexQueue) TryPop() (v uint64, ok bool) {
	tail := atomic.LoadUint64(&q.tail) // acquire: see producer's progress
	head := q.head                     // consumer-owned, no atomic needed
	if head == tail {
		return 0, false
	}
	v = *q.slot(head)
	atomic.StoreUint64(&q.head, head+1) // release: free the slot
	return v, true
}

// DrainAll pops every remaining entry, invoking fn for each, in FIFO order.
// Intended for single-owner teardown paths (spec §4.9's
// acquire_used_offsets), not for concurrent use alongside Push/Pop.
func (q *IndexQueue) DrainAll(fn func(uint64)) {
	for {
		v, ok := q.TryPop()
		if !ok {
			return
		}
		fn(v)
	}
}
