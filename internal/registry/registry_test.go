package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

func withTempShmRoot(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old := shm.Root
	shm.Root = dir
	t.Cleanup(func() { shm.Root = old })
}

func TestRegistry_ListAndDoesExistAndRemoveIdempotent(t *testing.T) {
	withTempShmRoot(t)

	seg, err := shm.Create(shm.Config{Name: "iox2_alpha.monitor", Size: 64, Mode: shm.CreateExclusive, HasOwnership: true})
	require.NoError(t, err)
	defer seg.Close()

	r := New("", "iox2_", ".monitor")
	require.True(t, r.DoesExistCfg("alpha"))
	require.False(t, r.DoesExistCfg("beta"))

	names, err := r.ListCfg()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, names)

	removed, err := r.RemoveCfg("alpha")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = r.RemoveCfg("alpha")
	require.NoError(t, err)
	require.False(t, removed)

	require.False(t, r.DoesExistCfg("alpha"))
}

func TestRegistry_DisjointSuffixesDoNotCollide(t *testing.T) {
	withTempShmRoot(t)

	seg1, err := shm.Create(shm.Config{Name: "iox2_svc.monitor", Size: 64, Mode: shm.CreateExclusive, HasOwnership: true})
	require.NoError(t, err)
	defer seg1.Close()
	seg2, err := shm.Create(shm.Config{Name: "iox2_svc.dynamic_config", Size: 64, Mode: shm.CreateExclusive, HasOwnership: true})
	require.NoError(t, err)
	defer seg2.Close()

	monitors := New("", "iox2_", ".monitor")
	dynamics := New("", "iox2_", ".dynamic_config")

	mNames, _ := monitors.ListCfg()
	dNames, _ := dynamics.ListCfg()
	require.Equal(t, []string{"svc"}, mNames)
	require.Equal(t, []string{"svc"}, dNames)
}
