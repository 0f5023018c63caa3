package reloc

import (
	"bytes"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
)

// FixedSizeByteString is a bounded byte sequence with a trailing NUL for C
// interop (spec §4.2). Go has no const-generic array length, so the bound N
// is a runtime capacity fixed at construction time instead of a type
// parameter; this preserves every operation and invariant the spec
// describes while staying within what the language can express.
type FixedSizeByteString struct {
	capacity int
	buf      []byte
}

// NewFixedSizeByteString constructs an empty string bounded at capacity N.
func NewFixedSizeByteString(n int) *FixedSizeByteString {
	return &FixedSizeByteString{capacity: n, buf: make([]byte, 0, n)}
}

// Capacity returns N.
func (s *FixedSizeByteString) Capacity() int { return s.capacity }

// Len returns the current content length (excluding the trailing NUL).
func (s *FixedSizeByteString) Len() int { return len(s.buf) }

// AsBytes returns the content without the trailing NUL.
func (s *FixedSizeByteString) AsBytes() []byte {
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// AsBytesWithNul returns the content followed by a single NUL byte, as S1
// requires for the empty-string contract.
func (s *FixedSizeByteString) AsBytesWithNul() []byte {
	out := make([]byte, len(s.buf)+1)
	copy(out, s.buf)
	return out
}

func isValidByte(c byte) bool { return c != 0 && c < 128 }

// Push appends a single byte. Fails with InvalidCharacter for c == 0 or
// c >= 128, and with InsertWouldExceedCapacity when already at capacity.
// On failure the string is left unchanged, matching spec §8's quantified
// invariant.
func (s *FixedSizeByteString) Push(c byte) error {
	if !isValidByte(c) {
		return ipcerr.New(ipcerr.InvalidCharacter, "FixedSizeByteString.Push", nil)
	}
	if len(s.buf) >= s.capacity {
		return ipcerr.New(ipcerr.InsertWouldExceedCapacity, "FixedSizeByteString.Push", nil)
	}
	s.buf = append(s.buf, c)
	return nil
}

// PushBytes pushes each byte of b in order, stopping (and returning the
// error) at the first rejected byte; bytes already pushed remain.
func (s *FixedSizeByteString) PushBytes(b []byte) error {
	for _, c := range b {
		if err := s.Push(c); err != nil {
			return err
		}
	}
	return nil
}

// Insert inserts c at index i, shifting subsequent bytes up. Subject to the
// same validation and capacity rules as Push.
func (s *FixedSizeByteString) Insert(i int, c byte) error {
	if !isValidByte(c) {
		return ipcerr.New(ipcerr.InvalidCharacter, "FixedSizeByteString.Insert", nil)
	}
	if len(s.buf) >= s.capacity {
		return ipcerr.New(ipcerr.InsertWouldExceedCapacity, "FixedSizeByteString.Insert", nil)
	}
	if i < 0 || i > len(s.buf) {
		ipcerr.Fatal("FixedSizeByteString.Insert", ipcerr.New(ipcerr.InternalError, "index out of range", nil))
	}
	s.buf = append(s.buf, 0)
	copy(s.buf[i+1:], s.buf[i:len(s.buf)-1])
	s.buf[i] = c
	return nil
}

// Pop removes and returns the last byte, or ok=false if empty.
func (s *FixedSizeByteString) Pop() (byte, bool) {
	if len(s.buf) == 0 {
		return 0, false
	}
	c := s.buf[len(s.buf)-1]
	s.buf = s.buf[:len(s.buf)-1]
	return c, true
}

// Find returns the index of the first occurrence of sub, or ok=false.
func (s *FixedSizeByteString) Find(sub []byte) (int, bool) {
	idx := bytes.Index(s.buf, sub)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// Rfind returns the index of the last occurrence of sub, or ok=false.
func (s *FixedSizeByteString) Rfind(sub []byte) (int, bool) {
	idx := bytes.LastIndex(s.buf, sub)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// StripPrefix removes prefix if present, reporting whether it did.
func (s *FixedSizeByteString) StripPrefix(prefix []byte) bool {
	if bytes.HasPrefix(s.buf, prefix) {
		s.buf = s.buf[len(prefix):]
		return true
	}
	return false
}

// StripSuffix removes suffix if present, reporting whether it did.
func (s *FixedSizeByteString) StripSuffix(suffix []byte) bool {
	if bytes.HasSuffix(s.buf, suffix) {
		s.buf = s.buf[:len(s.buf)-len(suffix)]
		return true
	}
	return false
}

// Retain removes every byte for which remove returns true, preserving the
// order of the remaining bytes (spec §4.2: retain(p) removes bytes for
// which p returns true).
func (s *FixedSizeByteString) Retain(remove func(byte) bool) {
	out := s.buf[:0]
	for _, c := range s.buf {
		if !remove(c) {
			out = append(out, c)
		}
	}
	s.buf = out
}

// Truncate shortens the string to at most n bytes; a no-op if already ≤ n.
func (s *FixedSizeByteString) Truncate(n int) {
	if n < len(s.buf) {
		s.buf = s.buf[:n]
	}
}

// Compare orders two strings lexicographically on content.
func (s *FixedSizeByteString) Compare(o *FixedSizeByteString) int {
	return bytes.Compare(s.buf, o.buf)
}

// Equal reports content equality.
func (s *FixedSizeByteString) Equal(o *FixedSizeByteString) bool {
	return bytes.Equal(s.buf, o.buf)
}

// HashKey returns a value suitable as a Go map key, hashing on content.
func (s *FixedSizeByteString) HashKey() string {
	return string(s.buf)
}
