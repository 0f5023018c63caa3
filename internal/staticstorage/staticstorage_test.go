package staticstorage

import (
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

func TestStaticStorage_LockedUntilUnlocked(t *testing.T) {
	withTempShmRoot(t)

	b, err := Create("iox2_cfg1.node_details", 64, true)
	require.NoError(t, err)

	_, err = Open("iox2_cfg1.node_details", false)
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.IsLocked))

	require.NoError(t, b.Write([]byte("hello node")))
	b.Unlock()

	reader, err := Open("iox2_cfg1.node_details", false)
	require.NoError(t, err)
	defer reader.Close()

	buf := make([]byte, reader.Len())
	require.NoError(t, reader.Read(buf))
	require.Equal(t, "hello node", string(buf))

	require.NoError(t, b.Close())
}

func TestStaticStorage_ReadWrongSizeFails(t *testing.T) {
	withTempShmRoot(t)

	b, err := Create("iox2_cfg2.node_details", 64, true)
	require.NoError(t, err)
	require.NoError(t, b.Write([]byte("abc")))
	b.Unlock()
	defer b.Close()

	reader, err := Open("iox2_cfg2.node_details", false)
	require.NoError(t, err)
	defer reader.Close()

	err = reader.Read(make([]byte, 2))
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.SizeDoesNotFit))
}

func TestStaticStorage_IncompleteBuilderCloseUnlinks(t *testing.T) {
	withTempShmRoot(t)

	b, err := Create("iox2_cfg3.node_details", 64, true)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	require.False(t, shm.DoesExist("iox2_cfg3.node_details"))
}

func TestStaticStorage_ReleaseOwnershipLeavesEntryIntact(t *testing.T) {
	withTempShmRoot(t)

	b, err := Create("iox2_cfg4.node_details", 64, true)
	require.NoError(t, err)
	require.NoError(t, b.Write([]byte("x")))
	b.Unlock()
	b.ReleaseOwnership()
	require.NoError(t, b.Close())

	require.True(t, shm.DoesExist("iox2_cfg4.node_details"))

	reader, err := Open("iox2_cfg4.node_details", true)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.False(t, shm.DoesExist("iox2_cfg4.node_details"))
}
