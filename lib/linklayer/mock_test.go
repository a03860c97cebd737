// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package linklayer

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

func TestMockEngineRecordsTransmissions(t *testing.T) {
	engine := NewMockEngine()
	params := SMBusParams{FD: 7, SlaveAddr: 0x64}

	if err := engine.Transmit(0x1d, []byte{0x01, 0x80}, true, 3, params); err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	transmissions := engine.Transmissions()
	if len(transmissions) != 1 {
		t.Fatalf("got %d transmissions, want 1", len(transmissions))
	}
	got := transmissions[0]
	if got.Dest != 0x1d || !got.TagOwner || got.Tag != 3 || got.Params != params {
		t.Errorf("transmission = %+v", got)
	}
	if !bytes.Equal(got.Payload, []byte{0x01, 0x80}) {
		t.Errorf("payload = % x", got.Payload)
	}
}

func TestMockEngineTransmitFailures(t *testing.T) {
	injected := errors.New("bus busy")
	engine := NewMockEngine(WithTransmitFailures(2, injected))

	for attempt := 1; attempt <= 2; attempt++ {
		if err := engine.Transmit(9, []byte{0x01, 0x00}, false, 0, I3CParams{}); !errors.Is(err, injected) {
			t.Fatalf("attempt %d: err = %v, want %v", attempt, err, injected)
		}
	}
	if err := engine.Transmit(9, []byte{0x01, 0x00}, false, 0, I3CParams{}); err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if got := engine.TransmitAttempts(); got != 3 {
		t.Errorf("TransmitAttempts() = %d, want 3", got)
	}
	if got := len(engine.Transmissions()); got != 1 {
		t.Errorf("recorded %d transmissions, want 1", got)
	}
}

func TestMockEngineAttachError(t *testing.T) {
	injected := errors.New("no bus")
	engine := NewMockEngine(WithAttachError(injected))
	if _, err := engine.AttachSMBus(SMBusConfig{}); !errors.Is(err, injected) {
		t.Fatalf("AttachSMBus err = %v", err)
	}
	if _, err := engine.AttachI3C(I3CConfig{}); !errors.Is(err, injected) {
		t.Fatalf("AttachI3C err = %v", err)
	}
}

func TestMockPortPump(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])

	engine := NewMockEngine()
	var gotSource mctp.EID
	var gotPayload []byte
	engine.SetReceiver(func(source mctp.EID, payload []byte, tagOwner bool, tag mctp.Tag) {
		gotSource = source
		gotPayload = bytes.Clone(payload)
	})

	port, err := engine.AttachI3C(I3CConfig{FD: fds[0]})
	if err != nil {
		t.Fatalf("AttachI3C: %v", err)
	}
	if engine.OpenPorts() != 1 {
		t.Fatalf("OpenPorts() = %d", engine.OpenPorts())
	}

	if _, err := unix.Write(fds[1], []byte{0x1d, 0x05, 0x11, 0xe0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := port.Pump(); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if gotSource != 0x1d || !bytes.Equal(gotPayload, []byte{0x05, 0x11, 0xe0}) {
		t.Fatalf("received source %d payload % x", gotSource, gotPayload)
	}

	unix.Close(fds[1])
	if err := port.Pump(); !errors.Is(err, io.EOF) {
		t.Fatalf("Pump after writer closed: %v, want EOF", err)
	}

	port.Close()
	if engine.OpenPorts() != 0 {
		t.Errorf("OpenPorts() after Close = %d", engine.OpenPorts())
	}
}
