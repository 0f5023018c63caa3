package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

func withTempShmRoot(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old := shm.Root
	shm.Root = dir
	t.Cleanup(func() { shm.Root = old })
}

func TestChannel_NotifyAndTryWaitFIFO(t *testing.T) {
	withTempShmRoot(t)

	notifier, err := Create("iox2_evt.event_connection", 4, true)
	require.NoError(t, err)
	defer notifier.Close()

	listener, err := Open("iox2_evt.event_connection", false)
	require.NoError(t, err)
	defer listener.Close()

	require.NoError(t, notifier.Notify(7))
	require.NoError(t, notifier.Notify(9))

	id, ok := listener.TryWait()
	require.True(t, ok)
	require.Equal(t, uint64(7), id)

	id, ok = listener.TryWait()
	require.True(t, ok)
	require.Equal(t, uint64(9), id)

	_, ok = listener.TryWait()
	require.False(t, ok)
}

func TestChannel_NotifyReturnsReceiveBufferFullAtCapacity(t *testing.T) {
	withTempShmRoot(t)

	ch, err := Create("iox2_evt2.event_connection", 2, true)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Notify(1))
	require.NoError(t, ch.Notify(2))
	err = ch.Notify(3)
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.ReceiveBufferFull))
}

func TestChannel_TimedWaitTimesOutWhenEmpty(t *testing.T) {
	withTempShmRoot(t)

	ch, err := Create("iox2_evt3.event_connection", 2, true)
	require.NoError(t, err)
	defer ch.Close()

	_, err = ch.TimedWait(5 * time.Millisecond)
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.Timeout))
}

func TestChannel_WaitUnblocksWhenNotified(t *testing.T) {
	withTempShmRoot(t)

	notifier, err := Create("iox2_evt4.event_connection", 2, true)
	require.NoError(t, err)
	defer notifier.Close()

	listener, err := Open("iox2_evt4.event_connection", false)
	require.NoError(t, err)
	defer listener.Close()

	done := make(chan uint64, 1)
	go func() { done <- listener.Wait() }()

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, notifier.Notify(42))

	select {
	case id := <-done:
		require.Equal(t, uint64(42), id)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock")
	}
}
