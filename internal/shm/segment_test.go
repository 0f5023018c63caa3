package shm

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/acl"
)

func withTempRoot(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old := Root
	Root = dir
	t.Cleanup(func() { Root = old })
}

func TestSegment_CreateExclusiveThenDuplicateFails(t *testing.T) {
	withTempRoot(t)

	seg, err := Create(Config{Name: "s1", Size: 4096, Mode: CreateExclusive, HasOwnership: true})
	require.NoError(t, err)
	defer seg.Close()

	require.True(t, DoesExist("s1"))
	require.Equal(t, uint64(4096), seg.Size())

	_, err = Create(Config{Name: "s1", Size: 4096, Mode: CreateExclusive, HasOwnership: true})
	require.Error(t, err)
}

func TestSegment_PurgeAndCreate(t *testing.T) {
	withTempRoot(t)

	seg1, err := Create(Config{Name: "s2", Size: 4096, Mode: CreateExclusive, HasOwnership: true})
	require.NoError(t, err)
	seg1.AsSlice()[0] = 0xFF
	seg1.ReleaseOwnership()
	require.NoError(t, seg1.Close())

	seg2, err := Create(Config{Name: "s2", Size: 4096, Mode: PurgeAndCreate, ZeroMemory: true, HasOwnership: true})
	require.NoError(t, err)
	defer seg2.Close()
	require.Equal(t, byte(0), seg2.AsSlice()[0])
}

func TestSegment_OwnershipUnlinksOnClose(t *testing.T) {
	withTempRoot(t)

	seg, err := Create(Config{Name: "s3", Size: 4096, Mode: CreateExclusive, HasOwnership: true})
	require.NoError(t, err)
	require.NoError(t, seg.Close())
	require.False(t, DoesExist("s3"))
}

func TestSegment_NonOwningCloseLeavesObjectIntact(t *testing.T) {
	withTempRoot(t)

	seg, err := Create(Config{Name: "s4", Size: 4096, Mode: CreateExclusive, HasOwnership: false})
	require.NoError(t, err)
	require.NoError(t, seg.Close())
	require.True(t, DoesExist("s4"))
	_ = os.Remove(pathFor("s4"))
}

func TestSegment_OpenOrCreateFallsBackToOpenOnRace(t *testing.T) {
	withTempRoot(t)

	seg, err := Create(Config{Name: "s5", Size: 4096, Mode: CreateExclusive, HasOwnership: true})
	require.NoError(t, err)
	defer seg.Close()

	seg2, err := Create(Config{Name: "s5", Size: 4096, Mode: OpenOrCreate, HasOwnership: false})
	require.NoError(t, err)
	defer seg2.Close()
	require.Equal(t, seg.Size(), seg2.Size())
}

// TestSegment_CreateWithACLDoesNotFailSegmentCreation guards against a
// filesystem that rejects the ACL xattr (e.g. a tmpfs mounted without the
// "acl" option, common for test sandboxes): applying cfg.ACL is best-effort
// and must never fail Create itself.
func TestSegment_CreateWithACLDoesNotFailSegmentCreation(t *testing.T) {
	withTempRoot(t)

	a := acl.New()
	a.Set(acl.TagOwningUser, acl.Permission{Read: true, Write: true})
	a.Set(acl.TagOther, acl.Permission{Read: true})

	seg, err := Create(Config{Name: "s7", Size: 4096, Mode: CreateExclusive, HasOwnership: true, ACL: a})
	require.NoError(t, err)
	require.NoError(t, seg.Close())
}

func TestSegment_ZeroSizeRejected(t *testing.T) {
	withTempRoot(t)
	_, err := Create(Config{Name: "s6", Size: 0, Mode: CreateExclusive})
	require.Error(t, err)
}
