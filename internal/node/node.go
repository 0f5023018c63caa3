// Package node implements spec §4.10: node lifecycle (create, enumerate,
// reclaim-dead-node cleanup) and the service-tag protocol nodes use to
// record which services they hold open. Node id generation is grounded on
// the teacher's go.mod dependency on hashicorp/go-uuid (carried there only
// transitively; exercised here directly for the one place the system needs
// a globally unique identifier).
package node

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	uuid "github.com/hashicorp/go-uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/logutil"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/monitor"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/registry"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/shm"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/staticstorage"
)

func absDir(relative string) string {
	return filepath.Join(shm.Root, relative)
}

// Node is a live, locally-held node handle: it owns the node's details
// entry and monitoring token for as long as it stays open.
type Node struct {
	ID      string
	scheme  config.Scheme
	token   *monitor.Token
	details *staticstorage.Builder
}

// Create generates a unique node id, writes its details entry, and starts
// its monitoring token. Failure at either step rolls back both, per
// spec §4.10.
func Create(scheme config.Scheme, details []byte) (*Node, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, ipcerr.New(ipcerr.InternalError, "node.Create", err)
	}

	if err := os.MkdirAll(absDir(scheme.NodeDetailsDir(id)), 0o700); err != nil {
		return nil, ipcerr.New(ipcerr.InternalError, "node.Create:mkdir", err)
	}

	builder, err := staticstorage.Create(scheme.NodeDetailsName(id), uint64(len(details)), true)
	if err != nil {
		return nil, err
	}
	if err := builder.Write(details); err != nil {
		_ = builder.Close()
		return nil, err
	}
	builder.Unlock()

	token, err := monitor.CreateToken(scheme.NodeMonitorName(id))
	if err != nil {
		_ = builder.Close()
		return nil, err
	}

	return &Node{ID: id, scheme: scheme, token: token, details: builder}, nil
}

// Close shuts the node down cleanly: the monitor and details entry are
// both unlinked, and the now-empty node directory hint is removed.
func (n *Node) Close() error {
	if err := n.token.Close(); err != nil {
		logutil.WithComponent("node").WithError(err).Warn("failed to close monitor token")
	}
	if err := n.details.Close(); err != nil {
		return err
	}
	return registry.RemovePathHint(absDir(n.scheme.NodeDetailsDir(n.ID)))
}

// TagService creates a service tag under this node's directory recording
// that the node holds serviceID open, per spec §4.10's service-tag protocol.
func (n *Node) TagService(serviceID string) error {
	_, err := shm.Create(shm.Config{
		Name:         n.scheme.ServiceTagName(n.ID, serviceID),
		Size:         1,
		Mode:         shm.CreateExclusive,
		HasOwnership: true,
	})
	return err
}

// UntagService removes the tag recorded by TagService on clean close.
func (n *Node) UntagService(serviceID string) error {
	_, err := shm.Remove(n.scheme.ServiceTagName(n.ID, serviceID))
	return err
}

// Info is one enumerated node's observed liveness and, if available, its
// details payload.
type Info struct {
	ID      string
	State   monitor.State
	Details []byte
}

// Enumerate lists every node currently known in scheme's namespace and
// observes each one's liveness. Absence of a details entry (e.g. the node
// has not finished publishing it yet) is non-fatal: Details is left nil.
//
// Each peer's monitor state and details entry are independent shared-memory
// reads, so they fan out across an errgroup the way aistore's xaction layer
// fans out per-target work, rather than probing peers one at a time.
func Enumerate(scheme config.Scheme) ([]Info, error) {
	reg := registry.Scoped(scheme, filepath.Join(scheme.RootPath, scheme.NodeDir), scheme.MonitorSuffix)
	names, err := reg.ListCfg()
	if err != nil {
		return nil, err
	}

	results := make([]Info, len(names))
	present := make([]bool, len(names))
	var mu sync.Mutex // guards nothing shared beyond per-index writes; kept for clarity under -race

	var g errgroup.Group
	for i, id := range names {
		i, id := i, id
		g.Go(func() error {
			state, err := monitor.StateOf(scheme.NodeMonitorName(id))
			if err != nil {
				return err
			}
			if state == monitor.DoesNotExist {
				return nil
			}

			info := Info{ID: id, State: state}
			if reader, err := staticstorage.Open(scheme.NodeDetailsName(id), false); err == nil {
				info.Details = make([]byte, reader.Len())
				_ = reader.Read(info.Details)
				_ = reader.Close()
			}

			mu.Lock()
			results[i] = info
			present[i] = true
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(names))
	for i, ok := range present {
		if ok {
			infos = append(infos, results[i])
		}
	}
	return infos, nil
}

// serviceTagIDs lists the service ids this dead node still holds tags for,
// by stripping the node's own directory prefix and the tag suffix from
// every file directly inside its details directory.
func serviceTagIDs(scheme config.Scheme, nodeID string) ([]string, error) {
	dir := absDir(scheme.NodeDetailsDir(nodeID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ipcerr.New(ipcerr.InternalError, "node.serviceTagIDs", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), scheme.Prefix) && strings.HasSuffix(e.Name(), scheme.ServiceTagSuffix) {
			ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(e.Name(), scheme.Prefix), scheme.ServiceTagSuffix))
		}
	}
	return ids, nil
}

// ReclaimDeadNode implements spec §4.10's reclaim sequence: acquire a
// cleaner for nodeID, decrement every service it still held a tag for, then
// remove its details directory and monitor. Returns (false, nil) without
// error if the cleaner could not be acquired (already alive, already
// cleaned, or gone) — cleanup reports presence, not failure, per spec §7.
func ReclaimDeadNode(scheme config.Scheme, nodeID string, onServiceUntag func(serviceID string) error) (bool, error) {
	cleaner, err := monitor.AcquireCleaner(scheme.NodeMonitorName(nodeID))
	if err != nil {
		if ipcerr.Is(err, ipcerr.InstanceStillAlive) || ipcerr.Is(err, ipcerr.AlreadyOwnedByAnotherInstance) || ipcerr.Is(err, ipcerr.DoesNotExist) {
			return false, nil
		}
		return false, err
	}
	defer cleaner.Close()

	tagIDs, err := serviceTagIDs(scheme, nodeID)
	if err != nil {
		return false, err
	}
	for _, serviceID := range tagIDs {
		if onServiceUntag != nil {
			if err := onServiceUntag(serviceID); err != nil {
				logutil.WithComponent("node").WithError(err).Warn("failed to untag service during dead-node reclaim")
			}
		}
		if _, err := shm.Remove(scheme.ServiceTagName(nodeID, serviceID)); err != nil {
			logutil.WithComponent("node").WithError(err).Warn("failed to remove service tag during dead-node reclaim")
		}
	}

	if _, err := shm.Remove(scheme.NodeDetailsName(nodeID)); err != nil {
		logutil.WithComponent("node").WithError(err).Warn("failed to remove node details during dead-node reclaim")
	}
	if err := registry.RemovePathHint(absDir(scheme.NodeDetailsDir(nodeID))); err != nil {
		logutil.WithComponent("node").WithError(err).Warn("failed to remove node directory during dead-node reclaim")
	}

	return true, nil
}

