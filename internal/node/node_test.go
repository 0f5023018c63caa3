package node

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/monitor"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

// deadPid returns a pid guaranteed not to name a live process, for
// simulating a crashed node.
func deadPid(t *testing.T) int32 {
	t.Helper()
	for candidate := int32(os.Getpid()) + 1; candidate < int32(os.Getpid())+100000; candidate++ {
		if !monitor.IsProcessAlive(candidate) {
			return candidate
		}
	}
	t.Fatal("could not find an unused pid for test")
	return 0
}

func withTempShmRoot(t *testing.T) config.Scheme {
	t.Helper()
	dir := t.TempDir()
	old := shm.Root
	shm.Root = dir
	t.Cleanup(func() { shm.Root = old })
	return config.Default("")
}

func TestNode_CreateThenEnumerateShowsAlive(t *testing.T) {
	scheme := withTempShmRoot(t)

	n, err := Create(scheme, []byte("node details payload"))
	require.NoError(t, err)
	defer n.Close()

	infos, err := Enumerate(scheme)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, n.ID, infos[0].ID)
	require.Equal(t, monitor.Alive, infos[0].State)
	require.Equal(t, "node details payload", string(infos[0].Details))
}

func TestNode_CloseRemovesMonitorAndDetails(t *testing.T) {
	scheme := withTempShmRoot(t)

	n, err := Create(scheme, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, n.Close())

	infos, err := Enumerate(scheme)
	require.NoError(t, err)
	require.Empty(t, infos)
}

// TestNode_ReclaimDeadNode implements spec §8 scenario S6: node A opens a
// service, crashes (its token is overwritten to a dead pid without running
// cleanup), node B enumerates and sees A as Dead, then reclaims it.
func TestNode_ReclaimDeadNode(t *testing.T) {
	scheme := withTempShmRoot(t)

	a, err := Create(scheme, []byte("node A"))
	require.NoError(t, err)
	require.NoError(t, a.TagService("service-1"))

	// Simulate A's process crashing: overwrite the stored pid so the
	// monitor reports Dead, without running A's own Close/cleanup path.
	require.NoError(t, monitor.SetHolderPIDForTesting(scheme.NodeMonitorName(a.ID), deadPid(t)))

	infos, err := Enumerate(scheme)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, monitor.Dead, infos[0].State)

	var untagged []string
	removed, err := ReclaimDeadNode(scheme, a.ID, func(serviceID string) error {
		untagged = append(untagged, serviceID)
		return nil
	})
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, []string{"service-1"}, untagged)

	infos, err = Enumerate(scheme)
	require.NoError(t, err)
	require.Empty(t, infos)

	removedAgain, err := ReclaimDeadNode(scheme, a.ID, nil)
	require.NoError(t, err)
	require.False(t, removedAgain)
}
