package handle

import (
	"sync/atomic"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
)

// RobustMutex models the POSIX robust, process-shared mutex spec §5/§9
// requires: when the owner dies while holding the lock, the next acquirer
// must observe an "inconsistent" state rather than deadlock forever. Go's
// standard sync.Mutex has no robust-attribute equivalent and no pack example
// implements one either (see DESIGN.md), so this is a from-scratch state
// machine over atomics. The fields that would live in the shared segment are
// a lock word, an inconsistent flag and the holder id; ownerAlive is the
// caller-supplied, process-local liveness probe.
type RobustMutex struct {
	locked       int32 // 0 = unlocked, 1 = locked
	inconsistent int32 // 1 once an owner has died while holding the lock
	ownerAlive   func(holder int64) bool
	holder       int64
}

// NewRobustMutex constructs an unlocked, consistent mutex. ownerAlive is
// supplied by the caller (typically backed by internal/monitor) so this
// package stays free of a dependency on process-liveness primitives.
func NewRobustMutex(ownerAlive func(holder int64) bool) *RobustMutex {
	return &RobustMutex{ownerAlive: ownerAlive}
}

// TryLock attempts to acquire the mutex on behalf of holder (e.g. a node id
// or pid). ownerDied is true when the new owner has inherited an
// inconsistent state and must repair-or-abandon per spec §9.
func (m *RobustMutex) TryLock(holder int64) (acquired bool, ownerDied bool) {
	if atomic.CompareAndSwapInt32(&m.locked, 0, 1) {
		atomic.StoreInt64(&m.holder, holder)
		return true, atomic.LoadInt32(&m.inconsistent) == 1
	}

	prevHolder := atomic.LoadInt64(&m.holder)
	if m.ownerAlive != nil && !m.ownerAlive(prevHolder) {
		// The holder recorded in the lock word is dead: recover the lock as
		// inconsistent, the robust-mutex contract of spec §5.
		atomic.StoreInt32(&m.inconsistent, 1)
		atomic.StoreInt64(&m.holder, holder)
		return true, true
	}
	return false, false
}

// MakeConsistent clears the inconsistent flag after the new owner has
// repaired the guarded state, per spec §9's recovery contract.
func (m *RobustMutex) MakeConsistent() {
	atomic.StoreInt32(&m.inconsistent, 0)
}

// Unlock releases the mutex. Per spec §7, a failure here (in the real OS
// binding, an unlock syscall failing) is a fatal structural-invariant
// violation, since continued execution could corrupt state observable by
// peers; here "failure" means unlocking a mutex this process did not hold.
func (m *RobustMutex) Unlock(holder int64) {
	if atomic.LoadInt64(&m.holder) != holder {
		ipcerr.Fatal("RobustMutex.Unlock", ipcerr.New(ipcerr.InternalError, "unlock by non-holder", nil))
	}
	atomic.StoreInt64(&m.holder, 0)
	atomic.StoreInt32(&m.locked, 0)
}

// IsInconsistent reports whether the mutex is currently marked inconsistent.
func (m *RobustMutex) IsInconsistent() bool {
	return atomic.LoadInt32(&m.inconsistent) == 1
}
