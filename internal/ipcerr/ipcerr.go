// Package ipcerr defines the error taxonomy shared across the shared-memory
// IPC substrate (spec §7), grounded on the teacher's fuse/error.go IOerror:
// a typed error carrying a machine-checkable kind plus a human message,
// rather than ad hoc fmt.Errorf strings scattered across packages.
package ipcerr

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eclipse-iceoryx/iceoryx2-sub001/internal/logutil"
)

// Kind enumerates the error taxonomy from spec.md §7, grouped identically.
type Kind int

const (
	Unknown Kind = iota

	// Resource-existence
	DoesNotExist
	AlreadyExists
	IsMarkedForDestruction
	HangsInCreation

	// Compatibility
	IncompatibleTypes
	IncompatibleAttributes
	IncompatibleMessagingPattern
	IncompatibleOverflowSetting
	IncompatibleSampleSize
	IncompatibleBufferSize
	IncompatibleBorrowMax
	IncompatibleNumberOfSamples
	DoesNotSupportRequestedAmount
	ExceedsMaxNumberOfNodes

	// Capacity / backpressure
	ReceiveBufferFull
	ReceiveWouldExceedMaxBorrowValue
	InsufficientMemory
	InsufficientResources
	ExceedsMaximumNumberOfEntries

	// Permission
	InsufficientPermissions

	// Timeout / liveness
	Interrupt
	Timeout
	InitializationNotYetFinalized

	// Corruption / internal
	ServiceInCorruptedState
	InternalError

	// Validation
	InvalidCharacter
	InsertWouldExceedCapacity
	NameTooLong
	InvalidName

	// Shared-memory-segment specific (spec §4.4)
	UnsupportedSizeOfZero
	SizeDoesNotFit
	MappedRegionLimitReached
	PerProcessFileHandleLimitReached
	SystemWideFileHandleLimitReached
	UnableToMapAtEnforcedBaseAddress

	// Static/dynamic-storage specific
	IsLocked
	VersionMismatch
	InitializationFailed

	// Connection specific
	AnotherInstanceIsAlreadyConnected

	// Monitoring-token specific
	AlreadyOwnedByAnotherInstance
	InstanceStillAlive
	AlreadyInitialized

	// Catch-all for raw OS failures that don't map onto the above.
	UnknownErrno
)

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

var kindNames = map[Kind]string{
	Unknown:                           "Unknown",
	DoesNotExist:                      "DoesNotExist",
	AlreadyExists:                     "AlreadyExists",
	IsMarkedForDestruction:            "IsMarkedForDestruction",
	HangsInCreation:                   "HangsInCreation",
	IncompatibleTypes:                 "IncompatibleTypes",
	IncompatibleAttributes:            "IncompatibleAttributes",
	IncompatibleMessagingPattern:      "IncompatibleMessagingPattern",
	IncompatibleOverflowSetting:       "IncompatibleOverflowSetting",
	IncompatibleSampleSize:            "IncompatibleSampleSize",
	IncompatibleBufferSize:            "IncompatibleBufferSize",
	IncompatibleBorrowMax:             "IncompatibleBorrowMax",
	IncompatibleNumberOfSamples:       "IncompatibleNumberOfSamples",
	DoesNotSupportRequestedAmount:     "DoesNotSupportRequestedAmountOf",
	ExceedsMaxNumberOfNodes:           "ExceedsMaxNumberOfNodes",
	ReceiveBufferFull:                 "ReceiveBufferFull",
	ReceiveWouldExceedMaxBorrowValue:  "ReceiveWouldExceedMaxBorrowValue",
	InsufficientMemory:                "InsufficientMemory",
	InsufficientResources:             "InsufficientResources",
	ExceedsMaximumNumberOfEntries:     "ExceedsMaximumNumberOfEntries",
	InsufficientPermissions:           "InsufficientPermissions",
	Interrupt:                         "Interrupt",
	Timeout:                           "Timeout",
	InitializationNotYetFinalized:     "InitializationNotYetFinalized",
	ServiceInCorruptedState:           "ServiceInCorruptedState",
	InternalError:                     "InternalError",
	InvalidCharacter:                  "InvalidCharacter",
	InsertWouldExceedCapacity:         "InsertWouldExceedCapacity",
	NameTooLong:                       "NameTooLong",
	InvalidName:                       "InvalidName",
	UnsupportedSizeOfZero:             "UnsupportedSizeOfZero",
	SizeDoesNotFit:                    "SizeDoesNotFit",
	MappedRegionLimitReached:          "MappedRegionLimitReached",
	PerProcessFileHandleLimitReached:  "PerProcessFileHandleLimitReached",
	SystemWideFileHandleLimitReached:  "SystemWideFileHandleLimitReached",
	UnableToMapAtEnforcedBaseAddress:  "UnableToMapAtEnforcedBaseAddress",
	IsLocked:                          "IsLocked",
	VersionMismatch:                   "VersionMismatch",
	InitializationFailed:              "InitializationFailed",
	AnotherInstanceIsAlreadyConnected: "AnotherInstanceIsAlreadyConnected",
	AlreadyOwnedByAnotherInstance:     "AlreadyOwnedByAnotherInstance",
	InstanceStillAlive:                "InstanceStillAlive",
	AlreadyInitialized:                "AlreadyInitialized",
	UnknownErrno:                      "UnknownErrno",
}

// Error is the concrete error type returned at every package boundary in
// this module.
type Error struct {
	Kind Kind   `json:"kind"`
	Op   string `json:"op"`
	Errno int32 `json:"errno,omitempty"`
	Err  error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// MarshalJSON mirrors the teacher's IOerror.MarshalJSON specialization. No
// package in this module calls it; node details are stored as raw bytes and
// service configuration as gob.
func (e *Error) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind    string `json:"kind"`
		Op      string `json:"op"`
		Errno   int32  `json:"errno,omitempty"`
		Message string `json:"message"`
	}
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(wire{Kind: e.Kind.String(), Op: e.Op, Errno: e.Errno, Message: msg})
}

// New constructs an *Error, attaching a stack trace to the wrapped cause the
// way the teacher's indirect pkg/errors dependency implies for its
// ecosystem, so error logs emitted through logutil carry provenance.
func New(kind Kind, op string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// FromErrno wraps a raw OS errno that didn't translate to a named kind.
func FromErrno(op string, errno int32, cause error) *Error {
	return &Error{Kind: UnknownErrno, Op: op, Errno: errno, Err: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Fatal is the single chokepoint for structural-invariant violations that
// must abort the process per spec §7 ("Fatal conditions"), rather than
// scattering raw panic() calls across packages.
func Fatal(op string, err error) {
	logutil.Get().WithFields(logrus.Fields{"op": op}).Panic(err)
}
