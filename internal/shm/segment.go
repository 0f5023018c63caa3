// Package shm implements the shared-memory segment of spec §4.4: a named
// byte region with size, permission, memory-lock, and ownership attributes,
// backed by a POSIX shared-memory object. Grounded on the teacher's
// sysio/ionodeFile.go pattern of wrapping an *os.File with a small state
// struct (open/create/size/permissions), generalized here from emulated
// /proc files to real POSIX shared memory under a configurable shm root
// (/dev/shm on Linux).
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/acl"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/logutil"
)

// Root is the directory POSIX shared-memory objects are created under. It
// defaults to /dev/shm (the real POSIX shm mountpoint on Linux) and is
// overridable so tests can sandbox into a temp directory.
var Root = "/dev/shm"

// CreateMode enumerates spec §4.4's creation modes.
type CreateMode int

const (
	CreateExclusive CreateMode = iota
	PurgeAndCreate
	OpenOrCreate
)

// Config carries every construction attribute spec §4.4 names.
type Config struct {
	Name               string
	Size               uint64
	Mode               CreateMode
	MemoryLock         bool
	ZeroMemory         bool
	EnforcedBaseAddr   uintptr // 0 = no enforcement
	MappingOffset      uint64
	HasOwnership       bool
	Permissions        os.FileMode
	// ACL, if non-nil, is written to the backing file's
	// "system.posix_acl_access" extended attribute once created, applying
	// non-default per-user/per-group permissions beyond what Permissions
	// alone can express (spec §4.4's permission-configuration point).
	// Applying it is best-effort: a filesystem mounted without ACL support
	// (e.g. tmpfs without the "acl" mount option) can't take one, so a
	// failure here only logs a warning and continues, mirroring MemoryLock.
	ACL *acl.AccessControlList
}

// Segment is a mapped shared-memory region.
type Segment struct {
	mu           sync.Mutex
	name         string
	file         *os.File
	data         []byte
	size         uint64
	hasOwnership bool
}

func pathFor(name string) string {
	return filepath.Join(Root, name)
}

// DoesExist reports whether a shared-memory object with this name exists.
func DoesExist(name string) bool {
	_, err := os.Stat(pathFor(name))
	return err == nil
}

// List returns the basenames of all shared-memory objects directly present
// in dir (a path relative to Root; "" lists Root itself). It is
// deliberately non-recursive: every resource kind in spec §6's directory
// layout that needs listing (node monitors, under one fixed root/node_dir)
// lives at exactly one known depth, so registry callers pass that depth in
// rather than paying for a full-tree walk.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(Root, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ipcerr.New(ipcerr.InternalError, "shm.List", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Remove unlinks a shared-memory object by name, returning (removed=false,
// nil) rather than an error when it is already absent — cleanup operations
// report existence, not failure, per spec §7.
func Remove(name string) (bool, error) {
	err := os.Remove(pathFor(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, translateErrno(err, "shm.Remove")
	}
	return true, nil
}

// Create establishes a new segment per cfg.Mode, maps it, optionally
// zero-fills and mlocks it, and returns the handle.
func Create(cfg Config) (*Segment, error) {
	if cfg.Size == 0 {
		return nil, ipcerr.New(ipcerr.UnsupportedSizeOfZero, "shm.Create", nil)
	}
	if cfg.Permissions == 0 {
		cfg.Permissions = 0o600
	}

	flags := os.O_RDWR
	switch cfg.Mode {
	case CreateExclusive:
		flags |= os.O_CREATE | os.O_EXCL
	case PurgeAndCreate:
		_, _ = Remove(cfg.Name)
		flags |= os.O_CREATE | os.O_EXCL
	case OpenOrCreate:
		flags |= os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(pathFor(cfg.Name), flags, cfg.Permissions)
	if err != nil {
		if cfg.Mode == OpenOrCreate && os.IsExist(err) {
			// Create race: fall back to open, per spec §4.4.
			return Open(cfg.Name, cfg.HasOwnership)
		}
		return nil, translateErrno(err, "shm.Create")
	}

	if err := f.Truncate(int64(cfg.Size)); err != nil {
		f.Close()
		_, _ = Remove(cfg.Name)
		return nil, translateErrno(err, "shm.Create:truncate")
	}

	seg, err := mapSegment(f, cfg.Name, cfg.Size, cfg.MappingOffset, cfg.EnforcedBaseAddr, cfg.HasOwnership)
	if err != nil {
		f.Close()
		_, _ = Remove(cfg.Name)
		return nil, err
	}

	if cfg.ZeroMemory {
		if err := zeroFill(seg.data); err != nil {
			seg.Close()
			_, _ = Remove(cfg.Name)
			return nil, ipcerr.New(ipcerr.InsufficientMemory, "shm.Create:zerofill", err)
		}
	}
	if cfg.MemoryLock {
		if err := unix.Mlock(seg.data); err != nil {
			logutil.WithComponent("shm").WithError(err).Warn("mlock failed, continuing without memory lock")
		}
	}
	if cfg.ACL != nil {
		if err := applyACL(f, cfg.ACL); err != nil {
			logutil.WithComponent("shm").WithError(err).Warn("failed to apply ACL, continuing with Permissions only")
		}
	}

	return seg, nil
}

// applyACL writes acl's binary xattr encoding onto f's backing inode.
func applyACL(f *os.File, a *acl.AccessControlList) error {
	encoded, err := a.MarshalXattr()
	if err != nil {
		return err
	}
	return unix.Fsetxattr(int(f.Fd()), acl.XattrName, encoded, 0)
}

// Open opens an existing segment without creating it.
func Open(name string, hasOwnership bool) (*Segment, error) {
	f, err := os.OpenFile(pathFor(name), os.O_RDWR, 0)
	if err != nil {
		return nil, translateErrno(err, "shm.Open")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, translateErrno(err, "shm.Open:stat")
	}
	return mapSegment(f, name, uint64(info.Size()), 0, 0, hasOwnership)
}

func mapSegment(f *os.File, name string, size uint64, mappingOffset uint64, enforcedBase uintptr, hasOwnership bool) (*Segment, error) {
	data, err := unix.Mmap(int(f.Fd()), int64(mappingOffset), int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, translateErrno(err, "shm.mapSegment:mmap")
	}
	if enforcedBase != 0 && len(data) > 0 && uintptr(unsafe.Pointer(&data[0])) != enforcedBase {
		_ = unix.Munmap(data)
		return nil, ipcerr.New(ipcerr.UnableToMapAtEnforcedBaseAddress, "shm.mapSegment",
			fmt.Errorf("mapped at a different address than enforced"))
	}
	return &Segment{name: name, file: f, data: data, size: size, hasOwnership: hasOwnership}, nil
}

// zeroFill writes zero to the whole region. In the source design this runs
// under a signal-handling guard so an OOM-on-commit surfaces as
// InsufficientMemory rather than a fatal SIGBUS/SIGSEGV; here
// debug.SetPanicOnFault makes the runtime turn such a fault into a Go panic,
// which the recover below returns as an error that Create reports as
// InsufficientMemory.
func zeroFill(b []byte) (err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("zero-fill commit failed: %v", r)
		}
	}()
	for i := range b {
		b[i] = 0
	}
	return nil
}

// Name returns the segment's logical name.
func (s *Segment) Name() string { return s.name }

// Size returns the segment's byte size.
func (s *Segment) Size() uint64 { return s.size }

// BaseAddress returns the process-local address this segment is mapped at.
func (s *Segment) BaseAddress() uintptr {
	if len(s.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&s.data[0]))
}

// AsSlice returns a read-write view of the mapped bytes.
func (s *Segment) AsSlice() []byte { return s.data }

// HasOwnership reports whether this handle will unlink the segment on Close.
func (s *Segment) HasOwnership() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasOwnership
}

// ReleaseOwnership causes Close to leave the OS object intact.
func (s *Segment) ReleaseOwnership() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasOwnership = false
}

// AcquireOwnership causes Close to unlink the OS object.
func (s *Segment) AcquireOwnership() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasOwnership = true
}

// Close unmaps the segment and, if this handle has ownership, unlinks the
// backing object — the non-owning/owning distinction of spec §3.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data != nil {
		_ = unix.Munmap(s.data)
		s.data = nil
	}
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if s.hasOwnership {
		_, err := Remove(s.name)
		return err
	}
	return nil
}

func translateErrno(err error, op string) error {
	var errno syscall.Errno
	if pe, ok := err.(*os.PathError); ok {
		if e, ok := pe.Err.(syscall.Errno); ok {
			errno = e
		}
	} else if e, ok := err.(syscall.Errno); ok {
		errno = e
	}

	switch errno {
	case syscall.EEXIST:
		return ipcerr.New(ipcerr.AlreadyExists, op, err)
	case syscall.ENOENT:
		return ipcerr.New(ipcerr.DoesNotExist, op, err)
	case syscall.EACCES, syscall.EPERM:
		return ipcerr.New(ipcerr.InsufficientPermissions, op, err)
	case syscall.ENOMEM:
		return ipcerr.New(ipcerr.InsufficientMemory, op, err)
	case syscall.EMFILE:
		return ipcerr.New(ipcerr.PerProcessFileHandleLimitReached, op, err)
	case syscall.ENFILE:
		return ipcerr.New(ipcerr.SystemWideFileHandleLimitReached, op, err)
	case syscall.ENAMETOOLONG:
		return ipcerr.New(ipcerr.NameTooLong, op, err)
	case syscall.EINVAL:
		return ipcerr.New(ipcerr.InvalidName, op, err)
	default:
		if errno != 0 {
			return ipcerr.FromErrno(op, int32(errno), err)
		}
		return ipcerr.New(ipcerr.InternalError, op, err)
	}
}
