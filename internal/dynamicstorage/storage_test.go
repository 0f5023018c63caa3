package dynamicstorage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/bump"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

type payload struct {
	Counter int64
	Flag    bool
}

func withTempShmRoot(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old := shm.Root
	shm.Root = dir
	t.Cleanup(func() { shm.Root = old })
}

func TestDynamicStorage_CreateThenOpenSeesInitializedValue(t *testing.T) {
	withTempShmRoot(t)

	creator, err := Create[payload](CreateOptions[payload]{
		Name:              "iox2_counter",
		SupplementarySize: 64,
		HasOwnership:      true,
		InitialValue:      payload{Counter: 0},
		Initializer: func(v *payload, supp *bump.Allocator) error {
			v.Counter = 42
			v.Flag = true
			b, err := supp.Allocate(8, 8)
			require.NoError(t, err)
			require.Len(t, b, 8)
			return nil
		},
	})
	require.NoError(t, err)
	defer creator.Close()

	require.Equal(t, int64(42), creator.Value().Counter)
	require.True(t, creator.HasOwnership())

	opener, err := Open[payload](OpenOptions{Name: "iox2_counter", Timeout: time.Second})
	require.NoError(t, err)
	defer func() { opener.SetCallDropOnDestruction(false); opener.Close() }()

	require.Equal(t, int64(42), opener.Value().Counter)
	require.True(t, opener.Value().Flag)
}

func TestDynamicStorage_OpenMissingReturnsDoesNotExist(t *testing.T) {
	withTempShmRoot(t)

	_, err := Open[payload](OpenOptions{Name: "iox2_nope", Timeout: 10 * time.Millisecond})
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.DoesNotExist))
}

func TestDynamicStorage_TypeMismatchTreatedAsAbsent(t *testing.T) {
	withTempShmRoot(t)

	creator, err := Create[payload](CreateOptions[payload]{
		Name:         "iox2_typed",
		HasOwnership: true,
	})
	require.NoError(t, err)
	defer creator.Close()

	type otherPayload struct{ X, Y, Z float64 }
	_, err = Open[otherPayload](OpenOptions{Name: "iox2_typed", Timeout: 10 * time.Millisecond})
	require.Error(t, err)
	require.True(t, ipcerr.Is(err, ipcerr.DoesNotExist))
}

// TestDynamicStorage_InitializerRoundTrip implements spec §8 scenario S5:
// an initializer stamps a byte pattern across the supplementary region and
// sets the value, and a second opener observes both in full once
// Initialized is visible.
func TestDynamicStorage_InitializerRoundTrip(t *testing.T) {
	withTempShmRoot(t)

	const suppSize = 134

	creator, err := Create[payload](CreateOptions[payload]{
		Name:              "iox2_patterned",
		SupplementarySize: suppSize,
		HasOwnership:      true,
		Initializer: func(v *payload, supp *bump.Allocator) error {
			b, err := supp.Allocate(suppSize, 1)
			if err != nil {
				return err
			}
			for i := range b {
				b[i] = byte(suppSize - i)
			}
			v.Counter = 8912
			return nil
		},
	})
	require.NoError(t, err)
	defer creator.Close()

	opener, err := Open[payload](OpenOptions{Name: "iox2_patterned", Timeout: time.Second})
	require.NoError(t, err)
	defer func() { opener.SetCallDropOnDestruction(false); opener.Close() }()

	require.Equal(t, int64(8912), opener.Value().Counter)
	supp := opener.Supplementary()
	require.Len(t, supp, suppSize)
	for i, b := range supp {
		require.Equal(t, byte(suppSize-i), b, "byte offset %d", i)
	}
}

func TestDynamicStorage_DropHookRunsOnOwningClose(t *testing.T) {
	withTempShmRoot(t)

	var dropped int64
	creator, err := Create[payload](CreateOptions[payload]{
		Name:         "iox2_hooked",
		HasOwnership: true,
		InitialValue: payload{Counter: 7},
		DropHook: func(v *payload) {
			dropped = v.Counter
		},
	})
	require.NoError(t, err)
	require.NoError(t, creator.Close())
	require.Equal(t, int64(7), dropped)
}
