// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/mctp-mux/lib/linklayer"
	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// ErrUnknownBinding is returned by New for a name no binding answers to.
var ErrUnknownBinding = errors.New("unknown binding")

// AddressResolver maps a remote endpoint to a bus address. Lookups
// never fail; implementations return a default address on a miss.
type AddressResolver interface {
	ResolveAddress(eid mctp.EID) uint8
}

// Binding is one bus transport.
type Binding interface {
	// Name is the binding's registered name.
	Name() string

	// Init opens the bus and attaches it to engine. params are the
	// transport-specific positional parameters from the command line.
	// A failed Init leaves nothing open. Calling Init on an
	// initialized binding releases the previous state first.
	Init(engine linklayer.Engine, local mctp.EID, params []string) error

	// InputFD is the descriptor to poll for inbound traffic, or -1
	// when the binding is not initialized.
	InputFD() int

	// InputEvents is the poll event mask for InputFD.
	InputEvents() int16

	// OutputFD is the descriptor used for transmits, or -1.
	OutputFD() int

	// Process is called when InputFD is ready. It pumps pending input
	// through the engine, which may deliver zero or more messages to
	// the engine's receiver before Process returns.
	Process() error

	// TransmitParams builds the bus addressing for a message to dest.
	TransmitParams(dest mctp.EID, resolver AddressResolver) linklayer.TxParams

	// Close detaches from the engine and closes every descriptor the
	// binding opened. Safe to call on an uninitialized binding.
	Close() error
}

// HotJoiner is implemented by bindings whose bus can ask devices to
// announce themselves. The mux triggers it while waiting for a bus that
// failed to initialize.
type HotJoiner interface {
	HotJoin() error
}

// Paths locates device nodes. Tests point these at a temporary tree.
type Paths struct {
	// DevRoot holds character device nodes. Default: /dev
	DevRoot string

	// SysfsRoot is the sysfs mount. Default: /sys
	SysfsRoot string
}

// DefaultPaths returns the standard device locations.
func DefaultPaths() Paths {
	return Paths{DevRoot: "/dev", SysfsRoot: "/sys"}
}

type entry struct {
	name        string
	parameters  string
	constructor func(Paths) Binding
}

var bindings = []entry{
	{name: "smbus", parameters: "<bus> <bmc_addr_hex>", constructor: func(paths Paths) Binding { return NewSMBus(paths) }},
	{name: "asti3c", parameters: "<bus> <pid>", constructor: func(paths Paths) Binding { return NewASTI3C(paths) }},
}

// New returns the uninitialized binding registered as name.
func New(name string, paths Paths) (Binding, error) {
	for _, candidate := range bindings {
		if candidate.name == name {
			return candidate.constructor(paths), nil
		}
	}
	return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownBinding, name, strings.Join(Names(), ", "))
}

// Names lists the registered binding names.
func Names() []string {
	names := make([]string, 0, len(bindings))
	for _, candidate := range bindings {
		names = append(names, candidate.name)
	}
	return names
}

// Parameters returns the positional parameter synopsis for a binding,
// or "" for an unknown name.
func Parameters(name string) string {
	for _, candidate := range bindings {
		if candidate.name == name {
			return candidate.parameters
		}
	}
	return ""
}
