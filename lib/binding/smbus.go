// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binding

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/mctp-mux/lib/linklayer"
	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// i2cSlaveFlag marks a slave-side client in i2c device names.
const i2cSlaveFlag = 0x1000

// SMBus is the SMBus binding.
type SMBus struct {
	paths Paths

	bus     int
	address uint8

	inFD  int
	outFD int
	port  linklayer.Port
}

// NewSMBus returns an uninitialized SMBus binding.
func NewSMBus(paths Paths) *SMBus {
	return &SMBus{paths: paths, inFD: -1, outFD: -1}
}

func (b *SMBus) Name() string { return "smbus" }

// Init parses "<bus> <bmc_addr_hex>", opens the i2c-dev node and the
// slave message queue for the controller's address, and attaches both
// to engine.
func (b *SMBus) Init(engine linklayer.Engine, local mctp.EID, params []string) error {
	b.Close()

	if len(params) != 2 {
		return fmt.Errorf("smbus binding requires <bus> <bmc_addr_hex>, got %d parameters", len(params))
	}
	bus, err := strconv.Atoi(params[0])
	if err != nil || bus < 0 {
		return fmt.Errorf("smbus: invalid bus %q", params[0])
	}
	address, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(params[1]), "0x"), 16, 7)
	if err != nil {
		return fmt.Errorf("smbus: invalid 7-bit address %q", params[1])
	}
	b.bus = bus
	b.address = uint8(address)

	devicePath := filepath.Join(b.paths.DevRoot, fmt.Sprintf("i2c-%d", bus))
	outFD, err := unix.Open(devicePath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("smbus: opening %s: %w", devicePath, err)
	}

	queuePath := b.slaveQueuePath()
	inFD, err := unix.Open(queuePath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		unix.Close(outFD)
		return fmt.Errorf("smbus: opening %s: %w", queuePath, err)
	}

	port, err := engine.AttachSMBus(linklayer.SMBusConfig{
		InFD:            inFD,
		OutFD:           outFD,
		SourceSlaveAddr: b.address<<1 | 1,
		LocalEID:        local,
	})
	if err != nil {
		unix.Close(inFD)
		unix.Close(outFD)
		return fmt.Errorf("smbus: attaching bus %d: %w", bus, err)
	}

	b.inFD = inFD
	b.outFD = outFD
	b.port = port
	return nil
}

// slaveQueuePath is the sysfs message queue the i2c slave backend
// exposes for the controller's own address on the bus.
func (b *SMBus) slaveQueuePath() string {
	device := fmt.Sprintf("%d-%04x", b.bus, i2cSlaveFlag|int(b.address))
	return filepath.Join(b.paths.SysfsRoot, "bus", "i2c", "devices", device, "slave-mqueue")
}

func (b *SMBus) InputFD() int { return b.inFD }

// InputEvents is POLLPRI: the slave queue signals new packets with
// sysfs_notify, and a sysfs attribute always polls readable.
func (b *SMBus) InputEvents() int16 { return unix.POLLPRI }

func (b *SMBus) OutputFD() int { return b.outFD }

func (b *SMBus) Process() error {
	if b.port == nil {
		return errors.New("smbus: not initialized")
	}
	return b.port.Pump()
}

// TransmitParams addresses dest at the slave address resolver returns.
func (b *SMBus) TransmitParams(dest mctp.EID, resolver AddressResolver) linklayer.TxParams {
	return linklayer.SMBusParams{
		FD:        b.outFD,
		SlaveAddr: resolver.ResolveAddress(dest),
	}
}

func (b *SMBus) Close() error {
	var errs []error
	if b.port != nil {
		errs = append(errs, b.port.Close())
		b.port = nil
	}
	if b.inFD >= 0 {
		errs = append(errs, unix.Close(b.inFD))
		b.inFD = -1
	}
	if b.outFD >= 0 {
		errs = append(errs, unix.Close(b.outFD))
		b.outFD = -1
	}
	return errors.Join(errs...)
}
