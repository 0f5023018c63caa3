package acl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessControlList_RoundTrip(t *testing.T) {
	a := New()
	a.Set(TagOwningUser, Permission{Read: true, Write: true, Execute: false})
	a.Set(TagOther, Permission{Read: true})
	require.NoError(t, a.AddQualified(TagUser, 1000, Permission{Read: true, Execute: true}))
	require.NoError(t, a.AddQualified(TagGroup, 2000, Permission{Read: true}))

	str, err := a.AsString()
	require.NoError(t, err)

	parsed, err := FromString(str)
	require.NoError(t, err)
	require.Equal(t, len(a.Entries), len(parsed.Entries))
	for i := range a.Entries {
		require.True(t, a.Entries[i].Equal(parsed.Entries[i]), "entry %d mismatch", i)
	}
}

func TestAccessControlList_XattrRoundTrip(t *testing.T) {
	a := New()
	a.Set(TagOwningUser, Permission{Read: true, Write: true, Execute: false})
	a.Set(TagMask, Permission{Read: true, Execute: true})
	require.NoError(t, a.AddQualified(TagUser, 1000, Permission{Read: true, Execute: true}))
	require.NoError(t, a.AddQualified(TagGroup, 2000, Permission{Read: true}))

	encoded, err := a.MarshalXattr()
	require.NoError(t, err)
	require.Len(t, encoded, 4+8*len(a.Entries))

	decoded, err := UnmarshalXattr(encoded)
	require.NoError(t, err)
	require.Equal(t, len(a.Entries), len(decoded.Entries))
	for i := range a.Entries {
		require.True(t, a.Entries[i].Equal(decoded.Entries[i]), "entry %d mismatch", i)
	}
}

func TestAccessControlList_UnmarshalXattrRejectsBadVersion(t *testing.T) {
	bad := []byte{0x01, 0x00, 0x00, 0x00}
	_, err := UnmarshalXattr(bad)
	require.Error(t, err)
}

func TestAccessControlList_EmptyRoundTrip(t *testing.T) {
	a := New()
	str, err := a.AsString()
	require.NoError(t, err)
	require.Equal(t, "", str)

	parsed, err := FromString(str)
	require.NoError(t, err)
	require.Empty(t, parsed.Entries)
}
