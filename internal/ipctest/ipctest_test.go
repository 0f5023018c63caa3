package ipctest

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

func TestNewTempScheme_SandboxesRoot(t *testing.T) {
	before := shm.Root
	scheme := NewTempScheme(t)
	require.NotEqual(t, before, shm.Root)
	require.Equal(t, "iox2_", scheme.Prefix)
}

func TestRunConcurrently_AggregatesWork(t *testing.T) {
	var sum int64
	err := RunConcurrently(50, func(idx int) error {
		atomic.AddInt64(&sum, 1)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(50), sum)
}

func TestFilterPrefixSuffix_StripsMatchingNames(t *testing.T) {
	fs := NewMemFS()
	require.NoError(t, fs.MkdirAll("/nodes/n1", 0o700))
	for _, name := range []string{"iox2_service-a.tag", "iox2_service-b.tag", "iox2_node.details"} {
		f, err := fs.Create("/nodes/n1/" + name)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	ids, err := FilterPrefixSuffix(fs, "/nodes/n1", "iox2_", ".tag")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"service-a", "service-b"}, ids)
}

func TestMakeLockedDir_ListingFails(t *testing.T) {
	fs := NewMemFS()
	require.NoError(t, MakeLockedDir(fs, "/locked"))

	_, err := FilterPrefixSuffix(fs, "/locked/missing", "iox2_", ".tag")
	require.Error(t, err)
}
