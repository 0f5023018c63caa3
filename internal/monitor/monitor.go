// Package monitor implements spec §4.8's monitoring token: a named shared
// handle recording one process's liveness, observed by any other process as
// Alive/Dead/DoesNotExist, and reclaimed exclusively by a single Cleaner.
// Liveness itself is grounded on the teacher's pid.go / process/process.go
// pattern of probing a pid directly via golang.org/x/sys/unix, generalized
// here from "is this container's init pid still running" to "is the holder
// of this token still running."
package monitor

import (
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

// State is the liveness a Monitor observes.
type State int

const (
	Alive State = iota
	Dead
	DoesNotExist
)

func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	default:
		return "does-not-exist"
	}
}

type header struct {
	pid       int32
	claimedBy int32
}

const headerSize = uint64(unsafe.Sizeof(header{}))

func headerOf(seg *shm.Segment) *header {
	return (*header)(unsafe.Pointer(&seg.AsSlice()[0]))
}

// IsProcessAlive reports whether pid currently names a live process,
// mirroring the teacher's kill(pid, 0)-style existence probe. Exported so
// other packages (e.g. internal/node's tests) can probe a pid the same way.
func IsProcessAlive(pid int32) bool {
	err := unix.Kill(int(pid), 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}

func processAlive(pid int32) bool { return IsProcessAlive(pid) }

// Token is held by the process being monitored. It owns the monitor name
// and unlinks it on Close.
type Token struct {
	seg *shm.Segment
}

// CreateToken creates the named monitor and records the calling process as
// its holder.
func CreateToken(name string) (*Token, error) {
	seg, err := shm.Create(shm.Config{
		Name:         name,
		Size:         headerSize,
		Mode:         shm.CreateExclusive,
		ZeroMemory:   true,
		HasOwnership: true,
	})
	if err != nil {
		return nil, err
	}
	headerOf(seg).pid = int32(os.Getpid())
	return &Token{seg: seg}, nil
}

// Close unlinks the monitor, releasing the liveness record.
func (t *Token) Close() error { return t.seg.Close() }

// Monitor observes another process's token without owning it.
type Monitor struct {
	seg *shm.Segment
}

// OpenMonitor opens name for observation. A DoesNotExist error is returned
// verbatim if the monitor has already been removed.
func OpenMonitor(name string) (*Monitor, error) {
	seg, err := shm.Open(name, false)
	if err != nil {
		return nil, err
	}
	return &Monitor{seg: seg}, nil
}

// State reports the holder's liveness.
func (m *Monitor) State() State {
	pid := atomic.LoadInt32(&headerOf(m.seg).pid)
	if processAlive(pid) {
		return Alive
	}
	return Dead
}

// Close releases this observing handle without affecting the monitor.
func (m *Monitor) Close() error { return m.seg.Close() }

// StateOf is a convenience one-shot observation: open, read, close.
func StateOf(name string) (State, error) {
	m, err := OpenMonitor(name)
	if err != nil {
		if ipcerr.Is(err, ipcerr.DoesNotExist) {
			return DoesNotExist, nil
		}
		return DoesNotExist, err
	}
	defer m.Close()
	return m.State(), nil
}

// SetHolderPIDForTesting overwrites name's stored holder pid directly,
// without going through a Token. It exists to let other packages' tests
// simulate a crashed holder (spec §8 scenario S6) without a real process
// exiting mid-test; no non-test code path calls it.
func SetHolderPIDForTesting(name string, pid int32) error {
	seg, err := shm.Open(name, false)
	if err != nil {
		return err
	}
	defer seg.Close()
	atomic.StoreInt32(&headerOf(seg).pid, pid)
	return nil
}

// Cleaner is the exclusive role permitted to reclaim a dead token's
// resources, per spec §4.8 and §4.10.
type Cleaner struct {
	seg *shm.Segment
}

// AcquireCleaner attempts to claim name exclusively for cleanup.
//
// Returns DoesNotExist if the monitor is already gone, InstanceStillAlive
// if the holder is alive, or AlreadyOwnedByAnotherInstance if a different
// cleaner has already claimed it.
func AcquireCleaner(name string) (*Cleaner, error) {
	seg, err := shm.Open(name, false)
	if err != nil {
		return nil, err
	}

	hdr := headerOf(seg)
	pid := atomic.LoadInt32(&hdr.pid)
	if processAlive(pid) {
		_ = seg.Close()
		return nil, ipcerr.New(ipcerr.InstanceStillAlive, "monitor.AcquireCleaner", nil)
	}

	self := int32(os.Getpid())
	if !atomic.CompareAndSwapInt32(&hdr.claimedBy, 0, self) {
		_ = seg.Close()
		return nil, ipcerr.New(ipcerr.AlreadyOwnedByAnotherInstance, "monitor.AcquireCleaner", nil)
	}

	// Re-check existence: the monitor may have been unlinked by a racing
	// cleaner between our open and our claim.
	if !shm.DoesExist(name) {
		_ = seg.Close()
		return nil, ipcerr.New(ipcerr.DoesNotExist, "monitor.AcquireCleaner", nil)
	}

	seg.AcquireOwnership()
	return &Cleaner{seg: seg}, nil
}

// Close drops the cleaner, which removes the monitor name itself, per
// spec §4.8.
func (c *Cleaner) Close() error { return c.seg.Close() }
