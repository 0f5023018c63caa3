// Package acl implements the POSIX-style access control list supplemental
// type named in spec §8's testable properties ("Round-trip:
// from_string(acl.as_string()) ≈ acl") but never defined by the distilled
// spec. Grounded on
// original_source/iceoryx2_bb/posix/src/access_control_list.rs, which
// backs an AccessControlList with a FixedSizeByteString<4096> textual
// form and entries of (tag, optional numeric id, permission bits) — used
// here by internal/shm to apply non-default permissions to a created
// segment's backing object (spec §4.4's permission-configuration point),
// via the same "system.posix_acl_access" extended attribute libacl itself
// writes.
package acl

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/reloc"
)

// XattrName is the extended attribute libacl/the kernel store a POSIX
// access ACL under; internal/shm writes AccessControlList.MarshalXattr's
// output there directly instead of shelling out to setfacl.
const XattrName = "system.posix_acl_access"

const aclUndefinedID = 0xffffffff

// kernelTag maps Tag onto the acl_tag_t bit values the kernel's binary ACL
// xattr encoding uses, which is a different numbering than Tag's own
// iota (Tag's ordering instead matches the textual form's tag keywords).
func (t Tag) kernelTag() (uint16, bool) {
	switch t {
	case TagOwningUser:
		return 0x01, true
	case TagUser:
		return 0x02, true
	case TagOwningGroup:
		return 0x04, true
	case TagGroup:
		return 0x08, true
	case TagMask:
		return 0x10, true
	case TagOther:
		return 0x20, true
	default:
		return 0, false
	}
}

func kernelTagToTag(v uint16) (Tag, bool) {
	switch v {
	case 0x01:
		return TagOwningUser, true
	case 0x02:
		return TagUser, true
	case 0x04:
		return TagOwningGroup, true
	case 0x08:
		return TagGroup, true
	case 0x10:
		return TagMask, true
	case 0x20:
		return TagOther, true
	default:
		return 0, false
	}
}

func (p Permission) kernelPerm() uint16 {
	var v uint16
	if p.Read {
		v |= 4
	}
	if p.Write {
		v |= 2
	}
	if p.Execute {
		v |= 1
	}
	return v
}

func kernelPermToPermission(v uint16) Permission {
	return Permission{Read: v&4 != 0, Write: v&2 != 0, Execute: v&1 != 0}
}

// StringSize mirrors the source's ACL_STRING_SIZE constant.
const StringSize = 4096

// Tag identifies the kind of ACL entry, following the POSIX tag set.
type Tag int

const (
	TagOwningUser Tag = iota
	TagOwningGroup
	TagUser
	TagGroup
	TagMask
	TagOther
)

func (t Tag) String() string {
	switch t {
	case TagOwningUser:
		return "user"
	case TagOwningGroup:
		return "group"
	case TagUser:
		return "u"
	case TagGroup:
		return "g"
	case TagMask:
		return "m"
	case TagOther:
		return "o"
	default:
		return "?"
	}
}

func parseTag(s string) (Tag, bool) {
	switch s {
	case "user":
		return TagOwningUser, true
	case "group":
		return TagOwningGroup, true
	case "u":
		return TagUser, true
	case "g":
		return TagGroup, true
	case "m":
		return TagMask, true
	case "o":
		return TagOther, true
	default:
		return 0, false
	}
}

// Permission is a POSIX rwx triplet.
type Permission struct {
	Read, Write, Execute bool
}

func (p Permission) String() string {
	rwx := func(set bool, c byte) byte {
		if set {
			return c
		}
		return '-'
	}
	return string([]byte{rwx(p.Read, 'r'), rwx(p.Write, 'w'), rwx(p.Execute, 'x')})
}

func parsePermission(s string) (Permission, error) {
	if len(s) != 3 {
		return Permission{}, ipcerr.New(ipcerr.InvalidCharacter, "acl.parsePermission", fmt.Errorf("bad permission %q", s))
	}
	return Permission{Read: s[0] == 'r', Write: s[1] == 'w', Execute: s[2] == 'x'}, nil
}

// Entry is one ACL entry, compared by (tag, id, permission) per spec §8.
type Entry struct {
	Tag        Tag
	ID         *uint32
	Permission Permission
}

// Equal compares two entries by (tag, id, permission) — the equivalence
// relation spec §8's round-trip property is stated in terms of.
func (e Entry) Equal(o Entry) bool {
	if e.Tag != o.Tag || e.Permission != o.Permission {
		return false
	}
	if (e.ID == nil) != (o.ID == nil) {
		return false
	}
	if e.ID != nil && *e.ID != *o.ID {
		return false
	}
	return true
}

// AccessControlList is an ordered list of Entry.
type AccessControlList struct {
	Entries []Entry
}

// New constructs an empty ACL.
func New() *AccessControlList { return &AccessControlList{} }

// Set adds or replaces the entry for tag (used for the owner/owning-group/
// mask/other singleton tags).
func (a *AccessControlList) Set(tag Tag, perm Permission) {
	for i, e := range a.Entries {
		if e.Tag == tag && e.ID == nil {
			a.Entries[i].Permission = perm
			return
		}
	}
	a.Entries = append(a.Entries, Entry{Tag: tag, Permission: perm})
}

// AddQualified adds a qualified (user/group id) entry.
func (a *AccessControlList) AddQualified(tag Tag, id uint32, perm Permission) error {
	if tag != TagUser && tag != TagGroup {
		return ipcerr.New(ipcerr.InvalidCharacter, "acl.AddQualified", fmt.Errorf("tag %v does not take a qualifier", tag))
	}
	idCopy := id
	a.Entries = append(a.Entries, Entry{Tag: tag, ID: &idCopy, Permission: perm})
	return nil
}

// AsString renders the canonical POSIX textual form
// "tag:qualifier:rwx,tag:qualifier:rwx,...", bounded by StringSize via a
// reloc.FixedSizeByteString exactly as the source does.
func (a *AccessControlList) AsString() (string, error) {
	out := reloc.NewFixedSizeByteString(StringSize)
	for i, e := range a.Entries {
		if i > 0 {
			if err := out.Push(','); err != nil {
				return "", err
			}
		}
		qualifier := ""
		if e.ID != nil {
			qualifier = strconv.FormatUint(uint64(*e.ID), 10)
		}
		entryStr := fmt.Sprintf("%s:%s:%s", e.Tag, qualifier, e.Permission)
		if err := out.PushBytes([]byte(entryStr)); err != nil {
			return "", err
		}
	}
	return string(out.AsBytes()), nil
}

// FromString parses the canonical form back into entries.
func FromString(s string) (*AccessControlList, error) {
	a := New()
	if s == "" {
		return a, nil
	}
	for _, part := range strings.Split(s, ",") {
		fields := strings.SplitN(part, ":", 3)
		if len(fields) != 3 {
			return nil, ipcerr.New(ipcerr.InvalidCharacter, "acl.FromString", fmt.Errorf("malformed entry %q", part))
		}
		tag, ok := parseTag(fields[0])
		if !ok {
			return nil, ipcerr.New(ipcerr.InvalidCharacter, "acl.FromString", fmt.Errorf("unknown tag %q", fields[0]))
		}
		perm, err := parsePermission(fields[2])
		if err != nil {
			return nil, err
		}
		var id *uint32
		if fields[1] != "" {
			v, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, ipcerr.New(ipcerr.InvalidCharacter, "acl.FromString", err)
			}
			v32 := uint32(v)
			id = &v32
		}
		a.Entries = append(a.Entries, Entry{Tag: tag, ID: id, Permission: perm})
	}
	return a, nil
}

// MarshalXattr encodes the ACL in the kernel's binary
// "system.posix_acl_access" format: a little-endian version header (2)
// followed by one 8-byte {tag, perm, id} record per entry, in the layout
// libacl's acl_to_xattr/acl_from_xattr use.
func (a *AccessControlList) MarshalXattr() ([]byte, error) {
	out := make([]byte, 4+8*len(a.Entries))
	binary.LittleEndian.PutUint32(out[0:4], 2)
	for i, e := range a.Entries {
		tag, ok := e.Tag.kernelTag()
		if !ok {
			return nil, ipcerr.New(ipcerr.InvalidCharacter, "acl.MarshalXattr", fmt.Errorf("unmappable tag %v", e.Tag))
		}
		id := uint32(aclUndefinedID)
		if e.ID != nil {
			id = *e.ID
		}
		off := 4 + 8*i
		binary.LittleEndian.PutUint16(out[off:off+2], tag)
		binary.LittleEndian.PutUint16(out[off+2:off+4], e.Permission.kernelPerm())
		binary.LittleEndian.PutUint32(out[off+4:off+8], id)
	}
	return out, nil
}

// UnmarshalXattr decodes the kernel's binary ACL xattr format produced by
// MarshalXattr.
func UnmarshalXattr(b []byte) (*AccessControlList, error) {
	if len(b) < 4 || (len(b)-4)%8 != 0 {
		return nil, ipcerr.New(ipcerr.InvalidCharacter, "acl.UnmarshalXattr", fmt.Errorf("malformed ACL xattr of length %d", len(b)))
	}
	if version := binary.LittleEndian.Uint32(b[0:4]); version != 2 {
		return nil, ipcerr.New(ipcerr.InvalidCharacter, "acl.UnmarshalXattr", fmt.Errorf("unsupported ACL xattr version %d", version))
	}
	a := New()
	for off := 4; off < len(b); off += 8 {
		kTag := binary.LittleEndian.Uint16(b[off : off+2])
		perm := binary.LittleEndian.Uint16(b[off+2 : off+4])
		id := binary.LittleEndian.Uint32(b[off+4 : off+8])

		tag, ok := kernelTagToTag(kTag)
		if !ok {
			return nil, ipcerr.New(ipcerr.InvalidCharacter, "acl.UnmarshalXattr", fmt.Errorf("unknown kernel tag 0x%x", kTag))
		}
		entry := Entry{Tag: tag, Permission: kernelPermToPermission(perm)}
		if id != aclUndefinedID {
			idCopy := id
			entry.ID = &idCopy
		}
		a.Entries = append(a.Entries, entry)
	}
	return a, nil
}
