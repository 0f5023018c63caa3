// Package ipctest collects the test-harness helpers spec §0.4 calls for:
// a sandboxed shm root, a ready-made naming scheme, a concurrent-harness
// runner for exercising lock-free structures under contention, and an
// in-memory filesystem for tests that only care about directory-entry
// shape (prefix/suffix filtering, locked-directory handling) and would
// otherwise pay for real temp-directory churn.
//
// No production package imports ipctest; it exists solely for _test.go
// files across the module, mirroring the teacher's own test-only helper
// packages.
package ipctest

import (
	"testing"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
)

// NewTempScheme sandboxes internal/shm.Root into a fresh t.TempDir() for the
// duration of the test and returns a default naming scheme rooted at it.
// The other packages' tests do not call it; each still carries its own
// inline root-swap helper.
func NewTempScheme(t *testing.T) config.Scheme {
	t.Helper()
	dir := t.TempDir()
	old := shm.Root
	shm.Root = dir
	t.Cleanup(func() { shm.Root = old })
	return config.Default("")
}

// RunConcurrently starts n goroutines, each invoking fn with its index,
// waits for all of them, and returns the first non-nil error (if any). No
// context is shared, so an error does not cancel the other goroutines.
// Intended for driving several producers/
// consumers at once against a shared lock-free structure (connection
// senders/receivers, event notifiers) the way a real multi-process
// deployment would.
func RunConcurrently(n int, fn func(idx int) error) error {
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}

// NewMemFS returns a fresh in-memory filesystem for tests that exercise
// directory-entry shape (name filtering, locked-directory permission
// errors) without needing real temp-directory I/O.
func NewMemFS() afero.Fs {
	return afero.NewMemMapFs()
}

// MakeLockedDir creates path on fs and revokes all permissions on it,
// simulating the "locked directory" condition a node's details directory
// can be left in by a misconfigured deployment.
func MakeLockedDir(fs afero.Fs, path string) error {
	if err := fs.MkdirAll(path, 0o700); err != nil {
		return err
	}
	return fs.Chmod(path, 0o000)
}

// FilterPrefixSuffix lists the basenames directly inside dir on fs whose
// name carries both prefix and suffix, with both stripped — the same
// filtering internal/node's service-tag scan performs against the real
// filesystem, factored out here so it can be exercised against arbitrary
// fake directory layouts.
func FilterPrefixSuffix(fs afero.Fs, dir, prefix, suffix string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < len(prefix)+len(suffix) {
			continue
		}
		if name[:len(prefix)] != prefix || name[len(name)-len(suffix):] != suffix {
			continue
		}
		names = append(names, name[len(prefix):len(name)-len(suffix)])
	}
	return names, nil
}
