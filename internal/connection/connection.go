// Package connection implements spec §4.9's zero-copy connection: the
// attached sender/receiver pair over a shared segment carrying an immutable
// policy plus the `buffer` and `retrieval` internal/reloc.IndexQueues. No
// payload bytes ever cross this package — only offsets into a publisher's
// separately-owned data segment (internal/dynamicstorage or a raw
// internal/shm segment), matching spec §1's "no kernel-mediated copies on
// the data path."
package connection

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/reloc"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

// Policy is the connection's immutable, compatibility-checked configuration,
// fixed at creation time and verified at every subsequent attach per
// spec §4.9's compatibility checks.
type Policy struct {
	EnableSafeOverflow bool
	BufferSize         uint64
	MaxBorrowed        uint64
	SampleSize         uint64
	NumberOfSamples    uint64
}

type header struct {
	policy           Policy
	buffer           reloc.IndexQueue
	retrieval        reloc.IndexQueue
	borrowedCount    int64
	senderAttached   int32
	receiverAttached int32
}

var headerSize = uint64(unsafe.Sizeof(header{}))

// MemorySize returns the segment size needed for a connection with the
// given policy.
func MemorySize(p Policy) uint64 {
	return headerSize +
		reloc.IndexQueueMemorySize(p.BufferSize) +
		reloc.IndexQueueMemorySize(p.BufferSize)
}

func headerOf(seg *shm.Segment) *header {
	return (*header)(unsafe.Pointer(&seg.AsSlice()[0]))
}

// Connection is the shared segment backing one sender/receiver pair.
// Sender and Receiver wrap it with role-restricted operations.
type Connection struct {
	seg *shm.Segment
	hdr *header
}

// Create establishes a new connection segment for policy p.
func Create(name string, p Policy, hasOwnership bool) (*Connection, error) {
	seg, err := shm.Create(shm.Config{
		Name:         name,
		Size:         MemorySize(p),
		Mode:         shm.CreateExclusive,
		ZeroMemory:   true,
		HasOwnership: hasOwnership,
	})
	if err != nil {
		return nil, err
	}

	hdr := headerOf(seg)
	hdr.policy = p
	hdr.buffer = *reloc.NewUninitIndexQueue(p.BufferSize)
	// retrieval is fixed at capacity B (the buffer size), not MaxBorrowed:
	// spec §3/§4.9 size it off the buffer so a receiver can release every
	// offset it might ever hold without risking InsufficientResources when
	// MaxBorrowed < BufferSize.
	hdr.retrieval = *reloc.NewUninitIndexQueue(p.BufferSize)

	alloc := bump.NewFromSlice(seg.AsSlice()[headerSize:])
	if err := hdr.buffer.Init(alloc); err != nil {
		seg.AcquireOwnership()
		_ = seg.Close()
		return nil, err
	}
	if err := hdr.retrieval.Init(alloc); err != nil {
		seg.AcquireOwnership()
		_ = seg.Close()
		return nil, err
	}

	return &Connection{seg: seg, hdr: hdr}, nil
}

// Open attaches to an existing connection segment.
func Open(name string, hasOwnership bool) (*Connection, error) {
	seg, err := shm.Open(name, hasOwnership)
	if err != nil {
		return nil, err
	}
	return &Connection{seg: seg, hdr: headerOf(seg)}, nil
}

// Policy returns the connection's immutable policy.
func (c *Connection) Policy() Policy { return c.hdr.policy }

// CheckCompatible verifies that want matches the connection's actual
// policy, returning the first mismatch per spec §4.9's field-specific
// error kinds.
func (c *Connection) CheckCompatible(want Policy) error {
	got := c.hdr.policy
	switch {
	case got.BufferSize != want.BufferSize:
		return ipcerr.New(ipcerr.IncompatibleBufferSize, "connection.CheckCompatible", nil)
	case got.MaxBorrowed != want.MaxBorrowed:
		return ipcerr.New(ipcerr.IncompatibleBorrowMax, "connection.CheckCompatible", nil)
	case got.EnableSafeOverflow != want.EnableSafeOverflow:
		return ipcerr.New(ipcerr.IncompatibleOverflowSetting, "connection.CheckCompatible", nil)
	case got.SampleSize != want.SampleSize:
		return ipcerr.New(ipcerr.IncompatibleSampleSize, "connection.CheckCompatible", nil)
	case got.NumberOfSamples != want.NumberOfSamples:
		return ipcerr.New(ipcerr.IncompatibleNumberOfSamples, "connection.CheckCompatible", nil)
	default:
		return nil
	}
}

// IsConnected reports whether both endpoints are currently attached.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.hdr.senderAttached) != 0 && atomic.LoadInt32(&c.hdr.receiverAttached) != 0
}

// Close detaches from the connection, unlinking the segment if this handle
// owns it — the last endpoint to detach removes the segment, per spec §4.9.
func (c *Connection) Close() error { return c.seg.Close() }

// Sender is the producer-side endpoint.
type Sender struct{ conn *Connection }

// NewSender marks the sender endpoint attached and returns a handle
// restricted to producer operations.
func NewSender(conn *Connection) *Sender {
	atomic.StoreInt32(&conn.hdr.senderAttached, 1)
	return &Sender{conn: conn}
}

// Detach marks the sender endpoint as no longer attached.
func (s *Sender) Detach() { atomic.StoreInt32(&s.conn.hdr.senderAttached, 0) }

// TrySend implements spec §4.9's try_send: with safe overflow enabled and a
// full buffer, it atomically evicts the oldest offset and returns it as
// displaced; otherwise a full buffer yields ReceiveBufferFull.
func (s *Sender) TrySend(offset uint64) (displaced uint64, hasDisplaced bool, err error) {
	hdr := s.conn.hdr
	if hdr.buffer.IsFull() {
		if !hdr.policy.EnableSafeOverflow {
			return 0, false, ipcerr.New(ipcerr.ReceiveBufferFull, "connection.Sender.TrySend", nil)
		}
		displaced, ok := hdr.buffer.PopOldestAndPush(offset)
		return displaced, ok, nil
	}
	hdr.buffer.TryPush(offset)
	return 0, false, nil
}

// BlockingSend retries TrySend with adaptive backoff until space exists.
// Overflow mode never blocks, since TrySend always succeeds in that mode.
func (s *Sender) BlockingSend(offset uint64) error {
	backoff := time.Microsecond * 20
	const maxBackoff = 5 * time.Millisecond
	for {
		_, _, err := s.TrySend(offset)
		if err == nil {
			return nil
		}
		if !ipcerr.Is(err, ipcerr.ReceiveBufferFull) {
			return err
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

// Reclaim pops one released offset from the retrieval queue, if any.
func (s *Sender) Reclaim() (uint64, bool) {
	return s.conn.hdr.retrieval.TryPop()
}

// AcquireUsedOffsets drains both buffer and retrieval, invoking fn for
// every offset the publisher must recover — spec §4.9's detached-receiver
// recovery path. Only valid once the receiver has detached.
func (s *Sender) AcquireUsedOffsets(fn func(uint64)) {
	s.conn.hdr.buffer.DrainAll(fn)
	s.conn.hdr.retrieval.DrainAll(fn)
}

// Receiver is the consumer-side endpoint.
type Receiver struct{ conn *Connection }

// NewReceiver marks the receiver endpoint attached.
func NewReceiver(conn *Connection) *Receiver {
	atomic.StoreInt32(&conn.hdr.receiverAttached, 1)
	return &Receiver{conn: conn}
}

// Detach marks the receiver endpoint as no longer attached.
func (r *Receiver) Detach() { atomic.StoreInt32(&r.conn.hdr.receiverAttached, 0) }

// HasData reports whether the buffer currently holds an offset.
func (r *Receiver) HasData() bool { return !r.conn.hdr.buffer.IsEmpty() }

// Receive implements spec §4.9's receive: refuses once max_borrowed
// outstanding samples are held, otherwise pops and increments the
// borrowed count.
func (r *Receiver) Receive() (uint64, bool, error) {
	hdr := r.conn.hdr
	if uint64(atomic.LoadInt64(&hdr.borrowedCount)) >= hdr.policy.MaxBorrowed {
		return 0, false, ipcerr.New(ipcerr.ReceiveWouldExceedMaxBorrowValue, "connection.Receiver.Receive", nil)
	}
	offset, ok := hdr.buffer.TryPop()
	if !ok {
		return 0, false, nil
	}
	atomic.AddInt64(&hdr.borrowedCount, 1)
	return offset, true, nil
}

// Release returns offset to the sender via the retrieval queue and
// decrements the borrowed count.
func (r *Receiver) Release(offset uint64) error {
	hdr := r.conn.hdr
	if !hdr.retrieval.TryPush(offset) {
		return ipcerr.New(ipcerr.InsufficientResources, "connection.Receiver.Release", nil)
	}
	atomic.AddInt64(&hdr.borrowedCount, -1)
	return nil
}
