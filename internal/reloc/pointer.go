// Package reloc implements the offset-addressed shared-memory containers of
// spec §3/§4.2: a queue, an index queue, a growable vector, and bounded byte
// strings. Every container stores its data pointer as a RelocatablePointer
// (a self-relative offset, spec §9) so the same bytes remain valid no matter
// which virtual address each process mapped them at.
package reloc

import (
	"unsafe"
)

// RelocatablePointer is a self-relative offset to its target. Its valid flag
// represents "not yet initialized" (distinct from offset 0, which is a valid target when
// the pointer and target share an address — spec §3 treats an Offset of 0
// as a valid payload position; the "none" sentinel here is a dedicated
// boolean rather than overloading zero, exactly because zero is valid).
type RelocatablePointer struct {
	offset int64
	valid  bool
}

// Set stores target as a distance from the pointer's own memory location.
func (rp *RelocatablePointer) Set(target unsafe.Pointer) {
	self := uintptr(unsafe.Pointer(rp))
	rp.offset = int64(uintptr(target)) - int64(self)
	rp.valid = true
}

// Get dereferences the pointer by adding its stored offset to its own
// current address, so it resolves correctly regardless of where this
// process mapped the surrounding region.
func (rp *RelocatablePointer) Get() unsafe.Pointer {
	if !rp.valid {
		return nil
	}
	self := int64(uintptr(unsafe.Pointer(rp)))
	return unsafe.Pointer(uintptr(self + rp.offset))
}

// IsValid reports whether Set has ever been called on this pointer.
func (rp *RelocatablePointer) IsValid() bool { return rp.valid }

// NoneOffset is the sentinel for "no offset" in the IndexQueue / connection
// layer (spec §3: "the sentinel for none is the maximum representable
// value").
const NoneOffset uint64 = ^uint64(0)
