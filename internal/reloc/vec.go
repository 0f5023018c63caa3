package reloc

import (
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
)

// Vec is an ordered, growable-up-to-capacity sequence of T (spec §4.2).
type Vec[T any] struct {
	capacity uint64
	length   uint64
	data     RelocatablePointer
}

// VecMemorySize mirrors spec §4.2's const_memory_size for Vec.
func VecMemorySize[T any](capacity uint64) uint64 {
	var zero T
	return uint64(unsafe.Sizeof(Vec[T]{})) + capacity*uint64(unsafe.Sizeof(zero))
}

// NewUninitVec reserves the header; Init must be called before use.
func NewUninitVec[T any](capacity uint64) *Vec[T] {
	return &Vec[T]{capacity: capacity}
}

// Init allocates capacity*sizeof(T) bytes from alloc.
func (v *Vec[T]) Init(alloc *bump.Allocator) error {
	var zero T
	buf, err := alloc.Allocate(v.capacity*uint64(unsafe.Sizeof(zero)), uint64(unsafe.Alignof(zero)))
	if err != nil {
		return ipcerr.New(ipcerr.InsufficientMemory, "Vec.Init", err)
	}
	if len(buf) > 0 {
		v.data.Set(unsafe.Pointer(&buf[0]))
	} else {
		v.data.valid = true
	}
	return nil
}

func (v *Vec[T]) slot(i uint64) *T {
	var zero T
	base := uintptr(v.data.Get())
	return (*T)(unsafe.Pointer(base + uintptr(i)*unsafe.Sizeof(zero)))
}

// Capacity returns the fixed capacity.
func (v *Vec[T]) Capacity() uint64 { return v.capacity }

// Len returns the current length.
func (v *Vec[T]) Len() uint64 { return v.length }

// Push appends to the end. Pushing past capacity is a caller-side bug and
// aborts, per spec §4.2's failure model.
func (v *Vec[T]) Push(val T) {
	if v.length >= v.capacity {
		ipcerr.Fatal("Vec.Push", ipcerr.New(ipcerr.InsertWouldExceedCapacity, "Vec", nil))
	}
	*v.slot(v.length) = val
	v.length++
}

// Get returns the element at index i. Out-of-range access is a caller-side
// bug and aborts.
func (v *Vec[T]) Get(i uint64) T {
	if i >= v.length {
		ipcerr.Fatal("Vec.Get", ipcerr.New(ipcerr.InternalError, "Vec: index out of range", nil))
	}
	return *v.slot(i)
}

// Set overwrites the element at index i.
func (v *Vec[T]) Set(i uint64, val T) {
	if i >= v.length {
		ipcerr.Fatal("Vec.Set", ipcerr.New(ipcerr.InternalError, "Vec: index out of range", nil))
	}
	*v.slot(i) = val
}

// Remove removes the element at index i, shifting subsequent elements down.
func (v *Vec[T]) Remove(i uint64) {
	if i >= v.length {
		ipcerr.Fatal("Vec.Remove", ipcerr.New(ipcerr.InternalError, "Vec: index out of range", nil))
	}
	for j := i; j+1 < v.length; j++ {
		*v.slot(j) = *v.slot(j + 1)
	}
	v.length--
}

// Insert inserts val at index i, shifting subsequent elements up. Inserting
// past capacity is a caller-side bug and aborts.
func (v *Vec[T]) Insert(i uint64, val T) {
	if v.length >= v.capacity || i > v.length {
		ipcerr.Fatal("Vec.Insert", ipcerr.New(ipcerr.InsertWouldExceedCapacity, "Vec", nil))
	}
	for j := v.length; j > i; j-- {
		*v.slot(j) = *v.slot(j - 1)
	}
	*v.slot(i) = val
	v.length++
}
