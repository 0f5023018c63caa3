// Package bump implements the monotonic bump allocator of spec §4.1: it
// owns a base pointer, a cursor, and an end, and hands out aligned slices
// advancing the cursor with no deallocate. Only the cursor's *offset* from
// the base is ever logically meaningful across processes — the base itself
// is process-local, matching spec §9's "no owned pointers" requirement.
package bump

import (
	"fmt"
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
)

// Allocator bump-allocates from a contiguous byte region. It carries no
// pointer-chasing state other than the cursor offset, so it can be
// reconstructed fresh in another process mapping the same bytes at a
// different virtual address (spec §4.1).
type Allocator struct {
	base   uintptr
	cursor uintptr
	end    uintptr
}

// New constructs an allocator over the region [base, base+size).
func New(base uintptr, size uint64) *Allocator {
	return &Allocator{base: base, cursor: base, end: base + uintptr(size)}
}

// NewFromSlice is a convenience constructor for allocating directly over a
// Go byte slice backing a mapped region.
func NewFromSlice(b []byte) *Allocator {
	if len(b) == 0 {
		return &Allocator{}
	}
	base := uintptr(unsafe.Pointer(&b[0]))
	return New(base, uint64(len(b)))
}

// BaseAddress returns the process-local base address.
func (a *Allocator) BaseAddress() uintptr { return a.base }

// CursorOffset returns the cursor's distance from base — the only piece of
// allocator state that is meaningful once persisted in shared memory.
func (a *Allocator) CursorOffset() uint64 { return uint64(a.cursor - a.base) }

// Allocate returns an aligned slice of size bytes and advances the cursor,
// or a *ipcerr.Error{Kind: InsufficientMemory} when the region is exhausted.
func (a *Allocator) Allocate(size uint64, align uint64) ([]byte, error) {
	if align == 0 {
		align = 1
	}
	aligned := alignUp(a.cursor, align)
	newCursor := aligned + uintptr(size)
	if newCursor < aligned || newCursor > a.end {
		return nil, ipcerr.New(ipcerr.InsufficientMemory, "bump.Allocate",
			fmt.Errorf("requested %d bytes (align %d) exceeds remaining capacity", size, align))
	}
	a.cursor = newCursor
	if size == 0 {
		return []byte{}, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(aligned)), int(size)), nil
}

// Remaining reports the number of bytes left before the end of the region.
func (a *Allocator) Remaining() uint64 {
	if a.cursor >= a.end {
		return 0
	}
	return uint64(a.end - a.cursor)
}

func alignUp(p uintptr, align uint64) uintptr {
	a := uintptr(align)
	rem := p % a
	if rem == 0 {
		return p
	}
	return p + (a - rem)
}
