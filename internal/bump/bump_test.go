package bump

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
)

func TestAllocator_SuccessiveAllocationsAreAligned(t *testing.T) {
	buf := make([]byte, 64)
	a := NewFromSlice(buf)

	b1, err := a.Allocate(3, 1)
	require.NoError(t, err)
	require.Len(t, b1, 3)

	b2, err := a.Allocate(8, 8)
	require.NoError(t, err)
	require.Len(t, b2, 8)
	require.Zero(t, a.CursorOffset()%8)
}

func TestAllocator_ExhaustionReturnsInsufficientMemory(t *testing.T) {
	buf := make([]byte, 16)
	a := NewFromSlice(buf)

	_, err := a.Allocate(17, 1)
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.InsufficientMemory))
}

func TestAllocator_ZeroSizeAllocationSucceeds(t *testing.T) {
	buf := make([]byte, 8)
	a := NewFromSlice(buf)

	b, err := a.Allocate(0, 1)
	require.NoError(t, err)
	require.Len(t, b, 0)
}

func TestAllocator_RemainingShrinksAsCursorAdvances(t *testing.T) {
	buf := make([]byte, 32)
	a := NewFromSlice(buf)
	require.Equal(t, uint64(32), a.Remaining())

	_, err := a.Allocate(10, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(22), a.Remaining())
}
