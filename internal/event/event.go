// Package event implements the event channel named in spec §3's data model
// and referenced by spec §2's table: a named counting semaphore plus
// optional event-id storage, supporting notify(id) and wait*() -> id.
// Built, like internal/connection, on internal/reloc.IndexQueue for the
// pending-id buffer — the same lock-free SPSC primitive, reused here for a
// notifier/listener pair instead of a publisher/subscriber pair.
package event

import (
	"time"
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/reloc"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

type header struct {
	queue reloc.IndexQueue
}

var headerSize = uint64(unsafe.Sizeof(header{}))

func headerOf(seg *shm.Segment) *header {
	return (*header)(unsafe.Pointer(&seg.AsSlice()[0]))
}

// MemorySize returns the segment size needed to carry capacity pending ids.
func MemorySize(capacity uint64) uint64 {
	return headerSize + reloc.IndexQueueMemorySize(capacity)
}

// Channel is an attached endpoint (notifier or listener) on a named event
// channel. Both roles share the same handle type, mirroring the source's
// "attached pair" framing used elsewhere for connections.
type Channel struct {
	seg      *shm.Segment
	hdr      *header
	capacity uint64
}

// Create establishes a new event channel able to hold up to capacity
// pending, not-yet-consumed ids.
func Create(name string, capacity uint64, hasOwnership bool) (*Channel, error) {
	seg, err := shm.Create(shm.Config{
		Name:         name,
		Size:         MemorySize(capacity),
		Mode:         shm.CreateExclusive,
		ZeroMemory:   true,
		HasOwnership: hasOwnership,
	})
	if err != nil {
		return nil, err
	}

	hdr := headerOf(seg)
	*hdr = header{queue: *reloc.NewUninitIndexQueue(capacity)}
	alloc := bump.NewFromSlice(seg.AsSlice()[headerSize:])
	if err := hdr.queue.Init(alloc); err != nil {
		seg.AcquireOwnership()
		_ = seg.Close()
		return nil, err
	}

	return &Channel{seg: seg, hdr: hdr, capacity: capacity}, nil
}

// Open attaches to an existing event channel.
func Open(name string, hasOwnership bool) (*Channel, error) {
	seg, err := shm.Open(name, hasOwnership)
	if err != nil {
		return nil, err
	}
	hdr := headerOf(seg)
	return &Channel{seg: seg, hdr: hdr, capacity: hdr.queue.Capacity()}, nil
}

// Close detaches from the channel, unlinking it if this handle has
// ownership.
func (c *Channel) Close() error { return c.seg.Close() }

// Notify signals id to the listener. Returns ReceiveBufferFull if the
// channel's capacity is exhausted — the counting semaphore has an upper
// bound set at creation, per spec §4.11's per-pattern capacities.
func (c *Channel) Notify(id uint64) error {
	if !c.hdr.queue.TryPush(id) {
		return ipcerr.New(ipcerr.ReceiveBufferFull, "event.Notify", nil)
	}
	return nil
}

// TryWait returns the oldest pending id without blocking.
func (c *Channel) TryWait() (uint64, bool) {
	return c.hdr.queue.TryPop()
}

// Wait blocks with adaptive backoff until an id is available.
func (c *Channel) Wait() uint64 {
	id, ok := c.hdr.queue.TryPop()
	if ok {
		return id
	}
	backoff := time.Microsecond * 20
	const maxBackoff = 5 * time.Millisecond
	for {
		time.Sleep(backoff)
		if id, ok := c.hdr.queue.TryPop(); ok {
			return id
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// TimedWait blocks until an id is available or timeout elapses.
func (c *Channel) TimedWait(timeout time.Duration) (uint64, error) {
	deadline := time.Now().Add(timeout)
	backoff := time.Microsecond * 20
	const maxBackoff = 5 * time.Millisecond
	for {
		if id, ok := c.hdr.queue.TryPop(); ok {
			return id, nil
		}
		if time.Now().After(deadline) {
			return 0, ipcerr.New(ipcerr.Timeout, "event.TimedWait", nil)
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// Capacity returns the maximum number of pending, unconsumed ids.
func (c *Channel) Capacity() uint64 { return c.capacity }
