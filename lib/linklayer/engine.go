// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linklayer

import "github.com/bureau-foundation/mctp-mux/lib/mctp"

// ReceiveFunc is called once for every complete message the engine
// reassembles. payload starts with the message type byte and must not
// be retained after the call returns.
type ReceiveFunc func(source mctp.EID, payload []byte, tagOwner bool, tag mctp.Tag)

// Engine is the MCTP link layer. Bus bindings attach their file
// descriptors to it; the mux transmits through it and receives from it.
type Engine interface {
	// AttachSMBus registers an SMBus bus with the engine at the
	// configured local EID.
	AttachSMBus(config SMBusConfig) (Port, error)

	// AttachI3C registers an I3C bus with the engine. The bus takes a
	// dynamically assigned EID.
	AttachI3C(config I3CConfig) (Port, error)

	// SetReceiver installs the callback for reassembled messages.
	// Replaces any earlier receiver.
	SetReceiver(receiver ReceiveFunc)

	// Transmit sends payload to dest. params carries the bus-specific
	// addressing for this one message.
	Transmit(dest mctp.EID, payload []byte, tagOwner bool, tag mctp.Tag, params TxParams) error

	// Close releases the engine.
	Close() error
}

// Port is one bus attached to an engine.
type Port interface {
	// Pump reads whatever the bus has ready and feeds it through the
	// engine. Completed messages reach the engine's receiver before
	// Pump returns.
	Pump() error

	// Close detaches the bus from the engine. It does not close the
	// caller's file descriptors.
	Close() error
}

// SMBusConfig describes an SMBus bus to attach.
type SMBusConfig struct {
	// InFD is the slave message queue the controller's own slave
	// address receives packets on.
	InFD int

	// OutFD is the i2c-dev node used for master writes.
	OutFD int

	// SourceSlaveAddr is the 8-bit source slave address placed in
	// outgoing packets (7-bit address shifted left, read bit set).
	SourceSlaveAddr uint8

	// LocalEID is the endpoint ID the engine answers to on this bus.
	LocalEID mctp.EID
}

// I3CConfig describes an I3C bus to attach.
type I3CConfig struct {
	// FD is the IBI message queue, used in both directions.
	FD int
}

// TxParams is the per-message, bus-specific transmit addressing. The
// concrete types are [SMBusParams] and [I3CParams].
type TxParams interface {
	txParams()
}

// SMBusParams addresses one SMBus transmit.
type SMBusParams struct {
	FD             int
	SlaveAddr      uint8
	MuxHoldTimeout uint32
	MuxFlags       uint16
}

// I3CParams addresses one I3C transmit.
type I3CParams struct {
	FD int
}

func (SMBusParams) txParams() {}
func (I3CParams) txParams()   {}
