package reloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
)

func TestQueue_PushPop(t *testing.T) {
	capacity := uint64(4)
	q := NewUninitQueue[uint32](capacity)
	buf := make([]byte, QueueMemorySize[uint32](capacity))
	require.NoError(t, q.Init(bump.NewFromSlice(buf)))

	for i := uint32(0); i < 4; i++ {
		q.Push(i)
	}
	require.True(t, q.IsFull())

	for i := uint32(0); i < 4; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.True(t, q.IsEmpty())
}

func TestVec_PushGetRemoveInsert(t *testing.T) {
	capacity := uint64(4)
	v := NewUninitVec[int](capacity)
	buf := make([]byte, VecMemorySize[int](capacity))
	require.NoError(t, v.Init(bump.NewFromSlice(buf)))

	v.Push(1)
	v.Push(2)
	v.Push(3)
	require.Equal(t, uint64(3), v.Len())
	require.Equal(t, 2, v.Get(1))

	v.Remove(1)
	require.Equal(t, uint64(2), v.Len())
	require.Equal(t, 3, v.Get(1))

	v.Insert(1, 42)
	require.Equal(t, uint64(3), v.Len())
	require.Equal(t, 42, v.Get(1))
	require.Equal(t, 3, v.Get(2))
}
