// Package config implements spec §4.11's Config record (named Scheme here
// to avoid colliding with this package's own name — see SPEC_FULL.md
// glossary): the derivation of storage and connection names and paths from
// a single configuration record, plus the default per-pattern capacities.
package config

import "path/filepath"

// Capacities carries the default capacities spec §4.11 assigns per
// messaging pattern.
type Capacities struct {
	PublishSubscribeBufferSize  uint64
	PublishSubscribeMaxBorrowed uint64
	PublishSubscribeSubscribers uint64
	PublishSubscribePublishers  uint64
	EventListeners              uint64
	EventNotifiers              uint64
	RequestResponseBufferSize   uint64
	MaxNodes                    uint64
}

// DefaultCapacities mirrors typical iceoryx2-style defaults.
func DefaultCapacities() Capacities {
	return Capacities{
		PublishSubscribeBufferSize:  256,
		PublishSubscribeMaxBorrowed: 256,
		PublishSubscribeSubscribers: 8,
		PublishSubscribePublishers:  2,
		EventListeners:              8,
		EventNotifiers:              8,
		RequestResponseBufferSize:   64,
		MaxNodes:                    64,
	}
}

// Scheme is spec §4.11's Config record. RootPath is relative to
// internal/shm.Root (the actual POSIX shm mountpoint): every composed name
// below embeds RootPath as part of the resource name itself, which
// internal/shm then joins onto its own Root — RootPath is a namespace
// folder *within* the shm mount, not a restatement of the mount path.
type Scheme struct {
	RootPath   string
	NodeDir    string
	ServiceDir string
	Prefix     string

	MonitorSuffix             string
	StaticConfigSuffix        string
	DynamicConfigSuffix       string
	DataSegmentSuffix         string
	EventConnectionSuffix     string
	ConnectionSuffix          string
	BlackboardMgmtSuffix      string
	BlackboardDataSuffix      string
	ServiceTagSuffix          string
	StaticConfigStorageSuffix string

	Capacities Capacities
}

// Default returns a Scheme with the teacher-style conventional defaults:
// a single root, "node"/"service" subdirectories, and one distinct suffix
// per resource kind so that, per spec §6, distinct kinds never collide
// even when they share a filesystem-like namespace.
func Default(root string) Scheme {
	return Scheme{
		RootPath:                  root,
		NodeDir:                   "node",
		ServiceDir:                "service",
		Prefix:                    "iox2_",
		MonitorSuffix:             ".monitor",
		StaticConfigSuffix:        ".node_details",
		DynamicConfigSuffix:       ".dynamic_config",
		DataSegmentSuffix:         ".data",
		EventConnectionSuffix:     ".event",
		ConnectionSuffix:          ".connection",
		BlackboardMgmtSuffix:      ".bb_mgmt",
		BlackboardDataSuffix:      ".bb_data",
		ServiceTagSuffix:          ".tag",
		StaticConfigStorageSuffix: ".service_config",
		Capacities:                DefaultCapacities(),
	}
}

// ComposeName builds the full resource name
// <path_hint><prefix><logical_name><suffix> per spec §6.
func (s Scheme) ComposeName(pathHint, logicalName, suffix string) string {
	return pathHint + s.Prefix + logicalName + suffix
}

// NodeDetailsDir returns the per-node directory <root>/<node_dir>/<id>.
func (s Scheme) NodeDetailsDir(nodeID string) string {
	return filepath.Join(s.RootPath, s.NodeDir, nodeID)
}

// NodeDetailsName returns the node details resource name within its
// directory hint.
func (s Scheme) NodeDetailsName(nodeID string) string {
	return s.ComposeName(s.NodeDetailsDir(nodeID)+"/", "node", s.StaticConfigSuffix)
}

// NodeMonitorName returns the monitor token's name for nodeID, scoped at
// <root>/<node_dir> (monitors are listed together across all nodes, per spec §4.10's
// Enumerate).
func (s Scheme) NodeMonitorName(nodeID string) string {
	return s.ComposeName(filepath.Join(s.RootPath, s.NodeDir)+"/", nodeID, s.MonitorSuffix)
}

// ServiceTagName returns the name of the tag a node creates under its own
// directory to record that it holds serviceID open (spec §4.10).
func (s Scheme) ServiceTagName(nodeID, serviceID string) string {
	return s.ComposeName(s.NodeDetailsDir(nodeID)+"/", serviceID, s.ServiceTagSuffix)
}

// ServiceDirFor returns <root>/<service_dir>/<service_uuid>.
func (s Scheme) ServiceDirFor(serviceID string) string {
	return filepath.Join(s.RootPath, s.ServiceDir, serviceID)
}

// ServiceStaticConfigName returns the service's static-storage resource name.
func (s Scheme) ServiceStaticConfigName(serviceID string) string {
	return s.ComposeName(s.ServiceDirFor(serviceID)+"/", "static", s.StaticConfigStorageSuffix)
}

// ServiceDynamicConfigName returns the service's dynamic-config
// shared-memory resource name.
func (s Scheme) ServiceDynamicConfigName(serviceID string) string {
	return s.ComposeName(s.ServiceDirFor(serviceID)+"/", "dynamic", s.DynamicConfigSuffix)
}

// ConnectionName returns the per-(publisher,subscriber) connection name.
func (s Scheme) ConnectionName(serviceID, connectionID string) string {
	return s.ComposeName(s.ServiceDirFor(serviceID)+"/", connectionID, s.ConnectionSuffix)
}

// DataSegmentName returns a publisher's payload-pool segment name.
func (s Scheme) DataSegmentName(serviceID, publisherID string) string {
	return s.ComposeName(s.ServiceDirFor(serviceID)+"/", publisherID, s.DataSegmentSuffix)
}

// EventConnectionName returns an event channel's resource name.
func (s Scheme) EventConnectionName(serviceID, channelID string) string {
	return s.ComposeName(s.ServiceDirFor(serviceID)+"/", channelID, s.EventConnectionSuffix)
}
