// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linklayer

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// mockPacketSize bounds one read in MockPort.Pump.
const mockPacketSize = 4096

// Transmission records one call to MockEngine.Transmit.
type Transmission struct {
	Dest     mctp.EID
	Payload  []byte
	TagOwner bool
	Tag      mctp.Tag
	Params   TxParams
}

// MockEngine is an in-process Engine for tests. It records
// transmissions and attachments, and supports error injection.
//
// Ports returned by MockEngine read raw packets from the attached input
// file descriptor. A mock packet is one read's worth of bytes: the
// first byte is the source EID and the rest is the message payload.
type MockEngine struct {
	mu sync.Mutex

	receiver ReceiveFunc

	transmitErr      error
	failTransmits    int
	attachErr        error
	transmissions    []Transmission
	transmitAttempts int

	smbusAttachments []SMBusConfig
	i3cAttachments   []I3CConfig
	openPorts        int
	closed           bool
}

// MockEngineOption configures a MockEngine.
type MockEngineOption func(*MockEngine)

// WithTransmitError makes every Transmit fail with err.
func WithTransmitError(err error) MockEngineOption {
	return func(m *MockEngine) {
		m.transmitErr = err
		m.failTransmits = -1
	}
}

// WithTransmitFailures makes the next count calls to Transmit fail with
// err; later calls succeed.
func WithTransmitFailures(count int, err error) MockEngineOption {
	return func(m *MockEngine) {
		m.transmitErr = err
		m.failTransmits = count
	}
}

// WithAttachError makes AttachSMBus and AttachI3C fail with err.
func WithAttachError(err error) MockEngineOption {
	return func(m *MockEngine) {
		m.attachErr = err
	}
}

// NewMockEngine creates a MockEngine.
func NewMockEngine(options ...MockEngineOption) *MockEngine {
	m := &MockEngine{}
	for _, option := range options {
		option(m)
	}
	return m
}

// AttachSMBus records config and returns a port reading config.InFD.
func (m *MockEngine) AttachSMBus(config SMBusConfig) (Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrEngineClosed
	}
	if m.attachErr != nil {
		return nil, m.attachErr
	}
	m.smbusAttachments = append(m.smbusAttachments, config)
	m.openPorts++
	return &MockPort{engine: m, fd: config.InFD}, nil
}

// AttachI3C records config and returns a port reading config.FD.
func (m *MockEngine) AttachI3C(config I3CConfig) (Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrEngineClosed
	}
	if m.attachErr != nil {
		return nil, m.attachErr
	}
	m.i3cAttachments = append(m.i3cAttachments, config)
	m.openPorts++
	return &MockPort{engine: m, fd: config.FD}, nil
}

// SetReceiver installs the inbound message callback.
func (m *MockEngine) SetReceiver(receiver ReceiveFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiver = receiver
}

// Transmit records the call. It fails according to the configured
// error injection; failed attempts are counted but not recorded as
// transmissions.
func (m *MockEngine) Transmit(dest mctp.EID, payload []byte, tagOwner bool, tag mctp.Tag, params TxParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrEngineClosed
	}
	m.transmitAttempts++

	if m.transmitErr != nil && m.failTransmits != 0 {
		if m.failTransmits > 0 {
			m.failTransmits--
		}
		return m.transmitErr
	}

	m.transmissions = append(m.transmissions, Transmission{
		Dest:     dest,
		Payload:  bytes.Clone(payload),
		TagOwner: tagOwner,
		Tag:      tag,
		Params:   params,
	})
	return nil
}

// SetTransmitError changes the transmit error injection. A nil err
// makes every later Transmit succeed.
func (m *MockEngine) SetTransmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transmitErr = err
	m.failTransmits = -1
}

// Inject delivers a message to the receiver as if the engine had just
// reassembled it. Call it from the goroutine that drives the engine.
func (m *MockEngine) Inject(source mctp.EID, payload []byte, tagOwner bool, tag mctp.Tag) {
	m.mu.Lock()
	receiver := m.receiver
	m.mu.Unlock()

	if receiver != nil {
		receiver(source, payload, tagOwner, tag)
	}
}

// Transmissions returns the successful transmissions in call order.
func (m *MockEngine) Transmissions() []Transmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transmission(nil), m.transmissions...)
}

// TransmitAttempts returns the number of Transmit calls, successful or
// not.
func (m *MockEngine) TransmitAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transmitAttempts
}

// SMBusAttachments returns every config passed to AttachSMBus.
func (m *MockEngine) SMBusAttachments() []SMBusConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SMBusConfig(nil), m.smbusAttachments...)
}

// I3CAttachments returns every config passed to AttachI3C.
func (m *MockEngine) I3CAttachments() []I3CConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]I3CConfig(nil), m.i3cAttachments...)
}

// OpenPorts returns the number of attached ports not yet closed.
func (m *MockEngine) OpenPorts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPorts
}

// Close marks the engine closed.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockPort is the Port returned by MockEngine.
type MockPort struct {
	engine *MockEngine
	fd     int
	closed bool
}

// Pump reads one mock packet from the port's descriptor and injects it.
// An empty read reports io.EOF. A one-byte packet carries no payload
// and is ignored.
func (p *MockPort) Pump() error {
	if p.closed {
		return errors.New("linklayer: port closed")
	}
	if p.fd < 0 {
		return errors.New("linklayer: port has no input descriptor")
	}

	packet := make([]byte, mockPacketSize)
	count, err := unix.Read(p.fd, packet)
	if err != nil {
		return err
	}
	if count == 0 {
		return io.EOF
	}
	if count < 2 {
		return nil
	}
	p.engine.Inject(mctp.EID(packet[0]), packet[1:count], false, 0)
	return nil
}

// Close detaches the port.
func (p *MockPort) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.engine.mu.Lock()
	p.engine.openPorts--
	p.engine.mu.Unlock()
	return nil
}
