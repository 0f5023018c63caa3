// Package service implements spec §4.12's service state machine: the
// builder's create/open/open_or_create paths over a static-storage entry
// (the service's serialized configuration) and a dynamic-storage entry
// (live participant counts), named and namespaced via internal/config.
package service

import (
	"bytes"
	"encoding/gob"
	"sync/atomic"
	"time"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/dynamicstorage"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/ipcerr"
	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/staticstorage"
)

// Pattern identifies which of the three messaging patterns a service
// implements.
type Pattern string

const (
	PublishSubscribe Pattern = "publish_subscribe"
	Event            Pattern = "event"
	RequestResponse  Pattern = "request_response"
)

// AttributeRequirement is one entry of an open-time attribute verifier: a
// bare Key (Value == "") requires only that the key be present; a
// Key/Value pair requires that value to be among the existing values for
// that key (spec §6: "multi-valued keys").
type AttributeRequirement struct {
	Key   string
	Value string
}

// StaticConfig is the service's immutable, gob-serialized configuration —
// the payload placed into static storage at create time (spec §0.3 names
// gob as this module's serialization format).
type StaticConfig struct {
	Name        string
	Pattern     Pattern
	TypeDetails string
	Capacities  config.Capacities
	Attributes  map[string][]string
}

// DynamicConfig is the live, mutable participant-count record placed in a
// dynamicstorage.Storage — the same package used for publisher sample
// pools, reused here for the service's own bookkeeping.
type DynamicConfig struct {
	ParticipantCount     int64
	MarkedForDestruction int32
}

const maxStaticConfigSize = 8192

// Service is an attached handle: a static-config reader plus the dynamic
// config's live handle. A service resource outlives any single attached
// handle — Close only detaches this process's view; deliberate teardown
// goes through Remove, mirroring spec §4.7's registry's explicit,
// handle-bypassing remove_cfg.
type Service struct {
	scheme        config.Scheme
	name          string
	Static        StaticConfig
	staticBuilder *staticstorage.Builder // non-nil only for the creating handle
	dynamic       *dynamicstorage.Storage[DynamicConfig]
}

func encodeStaticConfig(cfg StaticConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, ipcerr.New(ipcerr.InternalError, "service.encodeStaticConfig", err)
	}
	return buf.Bytes(), nil
}

func decodeStaticConfig(b []byte) (StaticConfig, error) {
	var cfg StaticConfig
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&cfg); err != nil {
		return StaticConfig{}, ipcerr.New(ipcerr.ServiceInCorruptedState, "service.decodeStaticConfig", err)
	}
	return cfg, nil
}

// DoesExist probes whether a service with this name has published its
// static configuration.
func DoesExist(scheme config.Scheme, name string) bool {
	reader, err := staticstorage.Open(scheme.ServiceStaticConfigName(name), false)
	if err != nil {
		return false
	}
	_ = reader.Close()
	return true
}

// Create implements spec §4.12's create path.
func Create(scheme config.Scheme, name string, pattern Pattern, typeDetails string, attributes map[string][]string, capacities config.Capacities) (*Service, error) {
	if DoesExist(scheme, name) {
		return nil, ipcerr.New(ipcerr.AlreadyExists, "service.Create", nil)
	}

	staticCfg := StaticConfig{
		Name:        name,
		Pattern:     pattern,
		TypeDetails: typeDetails,
		Capacities:  capacities,
		Attributes:  attributes,
	}
	encoded, err := encodeStaticConfig(staticCfg)
	if err != nil {
		return nil, err
	}
	if len(encoded) > maxStaticConfigSize {
		return nil, ipcerr.New(ipcerr.SizeDoesNotFit, "service.Create", nil)
	}

	builder, err := staticstorage.Create(scheme.ServiceStaticConfigName(name), maxStaticConfigSize, true)
	if err != nil {
		return nil, err
	}

	dyn, err := dynamicstorage.Create[DynamicConfig](dynamicstorage.CreateOptions[DynamicConfig]{
		Name:         scheme.ServiceDynamicConfigName(name),
		HasOwnership: true,
	})
	if err != nil {
		_ = builder.Close()
		return nil, err
	}

	if err := builder.Write(encoded); err != nil {
		_ = dyn.Close()
		_ = builder.Close()
		return nil, err
	}
	builder.Unlock()

	return &Service{scheme: scheme, name: name, Static: staticCfg, staticBuilder: builder, dynamic: dyn}, nil
}

// OpenOptions configures the compatibility checks spec §4.12's open path
// performs.
type OpenOptions struct {
	RequiredTypeDetails string
	RequiredAttributes  []AttributeRequirement
	RequiredCapacities  config.Capacities
	RetryBound          int
	RetryBackoff        time.Duration
}

func verifyAttributes(existing map[string][]string, required []AttributeRequirement) error {
	for _, req := range required {
		values, ok := existing[req.Key]
		if !ok || len(values) == 0 {
			return ipcerr.New(ipcerr.IncompatibleAttributes, "service.verifyAttributes", nil)
		}
		if req.Value == "" {
			continue
		}
		found := false
		for _, v := range values {
			if v == req.Value {
				found = true
				break
			}
		}
		if !found {
			return ipcerr.New(ipcerr.IncompatibleAttributes, "service.verifyAttributes", nil)
		}
	}
	return nil
}

func verifyCapacities(existing, required config.Capacities) error {
	switch {
	case existing.PublishSubscribeBufferSize < required.PublishSubscribeBufferSize,
		existing.PublishSubscribeMaxBorrowed < required.PublishSubscribeMaxBorrowed,
		existing.PublishSubscribeSubscribers < required.PublishSubscribeSubscribers,
		existing.PublishSubscribePublishers < required.PublishSubscribePublishers,
		existing.EventListeners < required.EventListeners,
		existing.EventNotifiers < required.EventNotifiers,
		existing.RequestResponseBufferSize < required.RequestResponseBufferSize,
		existing.MaxNodes < required.MaxNodes:
		return ipcerr.New(ipcerr.DoesNotSupportRequestedAmount, "service.verifyCapacities", nil)
	default:
		return nil
	}
}

// Open implements spec §4.12's open path, retrying a bounded number of
// times on IsLocked to tolerate a concurrent creator.
func Open(scheme config.Scheme, name string, opts OpenOptions) (*Service, error) {
	if opts.RetryBound <= 0 {
		opts.RetryBound = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Millisecond
	}

	var reader *staticstorage.Reader
	var err error
	for attempt := 0; attempt < opts.RetryBound; attempt++ {
		reader, err = staticstorage.Open(scheme.ServiceStaticConfigName(name), false)
		if err == nil {
			break
		}
		if !ipcerr.Is(err, ipcerr.IsLocked) {
			return nil, err
		}
		time.Sleep(opts.RetryBackoff)
	}
	if err != nil {
		return nil, err
	}

	payload := make([]byte, reader.Len())
	readErr := reader.Read(payload)
	_ = reader.Close()
	if readErr != nil {
		return nil, readErr
	}

	staticCfg, err := decodeStaticConfig(payload)
	if err != nil {
		return nil, err
	}

	if opts.RequiredTypeDetails != "" && staticCfg.TypeDetails != opts.RequiredTypeDetails {
		return nil, ipcerr.New(ipcerr.IncompatibleTypes, "service.Open", nil)
	}
	if err := verifyAttributes(staticCfg.Attributes, opts.RequiredAttributes); err != nil {
		return nil, err
	}
	if err := verifyCapacities(staticCfg.Capacities, opts.RequiredCapacities); err != nil {
		return nil, err
	}

	dyn, err := dynamicstorage.Open[DynamicConfig](dynamicstorage.OpenOptions{
		Name:    scheme.ServiceDynamicConfigName(name),
		Timeout: time.Second,
	})
	if err != nil {
		return nil, err
	}
	if atomic.LoadInt32(&dyn.Value().MarkedForDestruction) != 0 {
		_ = dyn.Close()
		return nil, ipcerr.New(ipcerr.IsMarkedForDestruction, "service.Open", nil)
	}
	if atomic.LoadInt64(&dyn.Value().ParticipantCount) >= int64(staticCfg.Capacities.MaxNodes) {
		_ = dyn.Close()
		return nil, ipcerr.New(ipcerr.ExceedsMaxNumberOfNodes, "service.Open", nil)
	}

	return &Service{scheme: scheme, name: name, Static: staticCfg, dynamic: dyn}, nil
}

// OpenOrCreate implements spec §4.12's third builder mode.
func OpenOrCreate(scheme config.Scheme, name string, pattern Pattern, typeDetails string, attributes map[string][]string, capacities config.Capacities, opts OpenOptions) (*Service, error) {
	opts.RequiredTypeDetails = typeDetails
	svc, err := Open(scheme, name, opts)
	if err == nil {
		return svc, nil
	}
	if !ipcerr.Is(err, ipcerr.DoesNotExist) {
		return nil, err
	}
	svc, createErr := Create(scheme, name, pattern, typeDetails, attributes, capacities)
	if createErr != nil {
		if ipcerr.Is(createErr, ipcerr.AlreadyExists) {
			return Open(scheme, name, opts)
		}
		return nil, createErr
	}
	return svc, nil
}

// AttachParticipant increments the live participant count — called once a
// node has registered its service tag (internal/node.TagService). The
// count lives in shared memory and is written by every attached process,
// hence the atomic add.
func (s *Service) AttachParticipant() {
	atomic.AddInt64(&s.dynamic.Value().ParticipantCount, 1)
}

// DetachParticipant decrements the live participant count.
func (s *Service) DetachParticipant() {
	atomic.AddInt64(&s.dynamic.Value().ParticipantCount, -1)
}

// ParticipantCount returns the current live participant count.
func (s *Service) ParticipantCount() int64 {
	return atomic.LoadInt64(&s.dynamic.Value().ParticipantCount)
}

// Close detaches this process's view of the service. It releases ownership
// on both the static and dynamic config entries first, so the service
// resource itself persists for other attached participants — deliberate
// teardown goes through Remove instead.
func (s *Service) Close() error {
	s.dynamic.ReleaseOwnership()
	if err := s.dynamic.Close(); err != nil {
		return err
	}
	if s.staticBuilder != nil {
		s.staticBuilder.ReleaseOwnership()
		return s.staticBuilder.Close()
	}
	return nil
}

// Remove forcibly unlinks a service's static and dynamic config entries by
// name, bypassing any in-process handle — the service-level analogue of
// internal/registry's remove_cfg (spec §4.7), used by dead-node cleanup
// once a service's participant count has dropped to zero.
func Remove(scheme config.Scheme, name string) (bool, error) {
	removedStatic, err := func() (bool, error) {
		if !DoesExist(scheme, name) {
			return false, nil
		}
		reader, err := staticstorage.Open(scheme.ServiceStaticConfigName(name), true)
		if err != nil {
			return false, err
		}
		return true, reader.Close()
	}()
	if err != nil {
		return false, err
	}

	dyn, err := dynamicstorage.Open[DynamicConfig](dynamicstorage.OpenOptions{Name: scheme.ServiceDynamicConfigName(name)})
	if err != nil {
		if ipcerr.Is(err, ipcerr.DoesNotExist) {
			return removedStatic, nil
		}
		return removedStatic, err
	}
	dyn.AcquireOwnership()
	dyn.SetCallDropOnDestruction(false)
	return true, dyn.Close()
}
