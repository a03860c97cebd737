// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binding

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/mctp-mux/lib/linklayer"
	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// ASTI3C is the ASPEED I3C binding. A single IBI message queue
// descriptor carries both directions.
type ASTI3C struct {
	paths Paths

	bus string
	pid string

	fd   int
	port linklayer.Port
}

// NewASTI3C returns an uninitialized ASPEED I3C binding.
func NewASTI3C(paths Paths) *ASTI3C {
	return &ASTI3C{paths: paths, fd: -1}
}

func (b *ASTI3C) Name() string { return "asti3c" }

// Init parses "<bus> <pid>", opens the target's IBI message queue, and
// attaches it to engine with a dynamically assigned EID. The local EID
// is unused: the bus owner assigns ours.
func (b *ASTI3C) Init(engine linklayer.Engine, local mctp.EID, params []string) error {
	b.Close()

	if len(params) != 2 {
		return fmt.Errorf("asti3c binding requires <bus> <pid>, got %d parameters", len(params))
	}
	if _, err := strconv.ParseUint(params[0], 10, 8); err != nil {
		return fmt.Errorf("asti3c: invalid bus %q", params[0])
	}
	if _, err := strconv.ParseUint(params[1], 16, 64); err != nil {
		return fmt.Errorf("asti3c: invalid provisioned ID %q", params[1])
	}
	b.bus = params[0]
	b.pid = params[1]

	queuePath := filepath.Join(b.paths.SysfsRoot, "bus", "i3c", "devices", b.bus+"-"+b.pid, "ibi-mqueue")
	if err := unix.Access(queuePath, unix.W_OK); err != nil {
		return fmt.Errorf("asti3c: %s not writable: %w", queuePath, err)
	}
	fd, err := unix.Open(queuePath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("asti3c: opening %s: %w", queuePath, err)
	}

	port, err := engine.AttachI3C(linklayer.I3CConfig{FD: fd})
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("asti3c: attaching %s: %w", b.bus+"-"+b.pid, err)
	}

	b.fd = fd
	b.port = port
	return nil
}

func (b *ASTI3C) InputFD() int { return b.fd }

func (b *ASTI3C) InputEvents() int16 { return unix.POLLPRI }

func (b *ASTI3C) OutputFD() int { return b.fd }

// Process rewinds the message queue attribute and pumps it.
func (b *ASTI3C) Process() error {
	if b.port == nil {
		return errors.New("asti3c: not initialized")
	}
	if _, err := unix.Seek(b.fd, 0, io.SeekStart); err != nil {
		return fmt.Errorf("asti3c: rewinding message queue: %w", err)
	}
	return b.port.Pump()
}

func (b *ASTI3C) TransmitParams(dest mctp.EID, resolver AddressResolver) linklayer.TxParams {
	return linklayer.I3CParams{FD: b.fd}
}

// HotJoin enables broadcast hot-join on the bus controller so a target
// that was not yet present can join. Init must have been called, even
// if it failed after parsing its parameters.
func (b *ASTI3C) HotJoin() error {
	if b.bus == "" {
		return errors.New("asti3c: bus unknown, cannot hot-join")
	}
	path := filepath.Join(b.paths.SysfsRoot, "bus", "i3c", "devices", "i3c-"+b.bus, "broadcast_hj_enable")
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("asti3c: opening %s: %w", path, err)
	}
	defer unix.Close(fd)

	written, err := unix.Pwrite(fd, []byte("1"), 0)
	if err != nil {
		return fmt.Errorf("asti3c: enabling hot-join: %w", err)
	}
	if written != 1 {
		return fmt.Errorf("asti3c: enabling hot-join: short write")
	}
	return nil
}

func (b *ASTI3C) Close() error {
	var errs []error
	if b.port != nil {
		errs = append(errs, b.port.Close())
		b.port = nil
	}
	if b.fd >= 0 {
		errs = append(errs, unix.Close(b.fd))
		b.fd = -1
	}
	return errors.Join(errs...)
}
