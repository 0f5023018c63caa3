package monitor

import (
	"os"
	"testing"

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

func TestMonitor_AliveWhileHolderLives(t *testing.T) {
	withTempShmRoot(t)

	tok, err := CreateToken("iox2_node1.monitor")
	require.NoError(t, err)
	defer tok.Close()

	state, err := StateOf("iox2_node1.monitor")
	require.NoError(t, err)
	require.Equal(t, Alive, state)
}

func TestMonitor_DeadAfterHolderPidIsOverwrittenToNonexistent(t *testing.T) {
	withTempShmRoot(t)

	tok, err := CreateToken("iox2_node2.monitor")
	require.NoError(t, err)

	// Simulate a crashed holder: overwrite the stored pid with one that
	// cannot possibly be alive, without running the token's own cleanup —
	// exactly spec §8 scenario S6's "simulate crash" setup.
	headerOf(tok.seg).pid = deadPid(t)

	state, err := StateOf("iox2_node2.monitor")
	require.NoError(t, err)
	require.Equal(t, Dead, state)
}

func TestMonitor_DoesNotExistWhenAbsent(t *testing.T) {
	withTempShmRoot(t)

	state, err := StateOf("iox2_missing.monitor")
	require.NoError(t, err)
	require.Equal(t, DoesNotExist, state)
}

func TestCleaner_RefusesToAcquireAliveHolder(t *testing.T) {
	withTempShmRoot(t)

	tok, err := CreateToken("iox2_node3.monitor")
	require.NoError(t, err)
	defer tok.Close()

	_, err = AcquireCleaner("iox2_node3.monitor")
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.InstanceStillAlive))
}

func TestCleaner_ReclaimsDeadHolderAndUnlinksOnClose(t *testing.T) {
	withTempShmRoot(t)

	tok, err := CreateToken("iox2_node4.monitor")
	require.NoError(t, err)
	headerOf(tok.seg).pid = deadPid(t)

	cleaner, err := AcquireCleaner("iox2_node4.monitor")
	require.NoError(t, err)

	_, err = AcquireCleaner("iox2_node4.monitor")
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.AlreadyOwnedByAnotherInstance))

	require.NoError(t, cleaner.Close())
	require.False(t, shm.DoesExist("iox2_node4.monitor"))
}

// deadPid returns a pid guaranteed not to name a live process, found by
// probing upward from the current pid until IsProcessAlive reports false.
func deadPid(t *testing.T) int32 {
	t.Helper()
	for candidate := int32(os.Getpid()) + 1; candidate < int32(os.Getpid())+100000; candidate++ {
		if !IsProcessAlive(candidate) {
			return candidate
		}
	}
	t.Fatal("could not find an unused pid for test")
	return 0
}
