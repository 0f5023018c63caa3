package reloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
)

func newTestIndexQueue(t *testing.T, capacity uint64) *IndexQueue {
	t.Helper()
	q := NewUninitIndexQueue(capacity)
	buf := make([]byte, IndexQueueMemorySize(capacity))
	alloc := bump.NewFromSlice(buf)
	require.NoError(t, q.Init(alloc))
	return q
}

func TestIndexQueue_PushPopFIFO(t *testing.T) {
	q := newTestIndexQueue(t, 4)

	for i := uint64(0); i < 4; i++ {
		require.True(t, q.TryPush(i*10))
	}
	require.True(t, q.IsFull())
	require.False(t, q.TryPush(999))

	for i := uint64(0); i < 4; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i*10, v)
	}
	require.True(t, q.IsEmpty())
	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestIndexQueue_Overflow(t *testing.T) {
	q := newTestIndexQueue(t, 3)
	for i := uint64(0); i < 3; i++ {
		require.True(t, q.TryPush(i))
	}

	displaced, ok := q.PopOldestAndPush(100)
	require.True(t, ok)
	require.Equal(t, uint64(0), displaced)

	var got []uint64
	q.DrainAll(func(v uint64) { got = append(got, v) })
	require.Equal(t, []uint64{1, 2, 100}, got)
}

func TestIndexQueue_WrapAround(t *testing.T) {
	q := newTestIndexQueue(t, 2)
	require.True(t, q.TryPush(1))
	require.True(t, q.TryPush(2))
	v, _ := q.TryPop()
	require.Equal(t, uint64(1), v)
	require.True(t, q.TryPush(3))
	v, _ = q.TryPop()
	require.Equal(t, uint64(2), v)
	v, _ = q.TryPop()
	require.Equal(t, uint64(3), v)
}
