// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build libmctp

package linklayer

/*
#cgo LDFLAGS: -lmctp
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
#include <libmctp.h>
#include <libmctp-smbus.h>
#include <libmctp-asti3c.h>

extern void goLinkLayerReceive(uint8_t eid, void *data, void *msg, size_t len, bool tag_owner, uint8_t tag, void *prv);

static void linklayer_set_rx_all(struct mctp *mctp)
{
	mctp_set_rx_all(mctp, goLinkLayerReceive, NULL);
}

static int linklayer_register_asti3c(struct mctp *mctp, struct mctp_binding_asti3c *asti3c)
{
	int rc = mctp_register_bus_dynamic_eid(mctp, &asti3c->binding);
	if (rc == 0)
		mctp_binding_set_tx_enabled(&asti3c->binding, true);
	return rc;
}

static int linklayer_tx_smbus(struct mctp *mctp, uint8_t eid, void *msg, size_t len,
			      bool tag_owner, uint8_t tag, int fd, uint8_t slave_addr,
			      uint32_t hold_timeout, uint16_t mux_flags)
{
	struct mctp_smbus_pkt_private prv = { 0 };

	prv.fd = fd;
	prv.slave_addr = slave_addr;
	prv.mux_hold_timeout = hold_timeout;
	prv.mux_flags = mux_flags;
	return mctp_message_tx(mctp, eid, msg, len, tag_owner, tag, &prv);
}

static int linklayer_tx_asti3c(struct mctp *mctp, uint8_t eid, void *msg, size_t len,
			       bool tag_owner, uint8_t tag, int fd)
{
	struct mctp_asti3c_pkt_private prv = { 0 };

	prv.fd = fd;
	return mctp_message_tx(mctp, eid, msg, len, tag_owner, tag, &prv);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// libmctp has a single receive callback per context with no Go-safe
// user data pointer, so the active engine is published here for the
// exported callback to find.
var (
	activeEngineMu sync.Mutex
	activeEngine   *libmctpEngine
)

// Available reports whether the libmctp engine is built in.
func Available() bool {
	return true
}

// New initializes a libmctp context. Only one engine may exist per
// process.
func New() (Engine, error) {
	activeEngineMu.Lock()
	defer activeEngineMu.Unlock()

	if activeEngine != nil {
		return nil, errors.New("linklayer: libmctp engine already initialized")
	}

	handle := C.mctp_init()
	if handle == nil {
		return nil, errors.New("linklayer: mctp_init failed")
	}

	engine := &libmctpEngine{handle: handle}
	activeEngine = engine
	C.linklayer_set_rx_all(handle)
	return engine, nil
}

type libmctpEngine struct {
	handle   *C.struct_mctp
	receiver ReceiveFunc
}

func (e *libmctpEngine) AttachSMBus(config SMBusConfig) (Port, error) {
	if e.handle == nil {
		return nil, ErrEngineClosed
	}

	smbus := C.mctp_smbus_init()
	if smbus == nil {
		return nil, errors.New("linklayer: mctp_smbus_init failed")
	}
	C.mctp_smbus_set_src_slave_addr(smbus, C.uint8_t(config.SourceSlaveAddr))
	C.mctp_smbus_set_out_fd(smbus, C.int(config.OutFD))
	C.mctp_smbus_set_in_fd(smbus, C.int(config.InFD))

	if rc := C.mctp_smbus_register_bus(smbus, e.handle, C.mctp_eid_t(config.LocalEID)); rc != 0 {
		C.mctp_smbus_free(smbus)
		return nil, fmt.Errorf("linklayer: registering smbus binding: rc %d", int(rc))
	}
	return &smbusPort{smbus: smbus}, nil
}

func (e *libmctpEngine) AttachI3C(config I3CConfig) (Port, error) {
	if e.handle == nil {
		return nil, ErrEngineClosed
	}

	asti3c := C.mctp_asti3c_init()
	if asti3c == nil {
		return nil, errors.New("linklayer: mctp_asti3c_init failed")
	}
	if rc := C.linklayer_register_asti3c(e.handle, asti3c); rc != 0 {
		C.mctp_asti3c_free(asti3c)
		return nil, fmt.Errorf("linklayer: registering asti3c binding: rc %d", int(rc))
	}
	return &asti3cPort{asti3c: asti3c, fd: config.FD}, nil
}

func (e *libmctpEngine) SetReceiver(receiver ReceiveFunc) {
	activeEngineMu.Lock()
	defer activeEngineMu.Unlock()
	e.receiver = receiver
}

func (e *libmctpEngine) Transmit(dest mctp.EID, payload []byte, tagOwner bool, tag mctp.Tag, params TxParams) error {
	if e.handle == nil {
		return ErrEngineClosed
	}
	if len(payload) == 0 {
		return errors.New("linklayer: empty payload")
	}

	message := C.CBytes(payload)
	defer C.free(message)

	var rc C.int
	switch p := params.(type) {
	case SMBusParams:
		rc = C.linklayer_tx_smbus(e.handle, C.uint8_t(dest), message, C.size_t(len(payload)),
			C.bool(tagOwner), C.uint8_t(tag), C.int(p.FD), C.uint8_t(p.SlaveAddr),
			C.uint32_t(p.MuxHoldTimeout), C.uint16_t(p.MuxFlags))
	case I3CParams:
		rc = C.linklayer_tx_asti3c(e.handle, C.uint8_t(dest), message, C.size_t(len(payload)),
			C.bool(tagOwner), C.uint8_t(tag), C.int(p.FD))
	default:
		return fmt.Errorf("linklayer: unsupported transmit parameters %T", params)
	}
	if rc < 0 {
		return fmt.Errorf("linklayer: mctp_message_tx to eid %d: rc %d", dest, int(rc))
	}
	return nil
}

func (e *libmctpEngine) Close() error {
	activeEngineMu.Lock()
	defer activeEngineMu.Unlock()

	if e.handle == nil {
		return nil
	}
	C.mctp_destroy(e.handle)
	e.handle = nil
	if activeEngine == e {
		activeEngine = nil
	}
	return nil
}

type smbusPort struct {
	smbus *C.struct_mctp_binding_smbus
}

func (p *smbusPort) Pump() error {
	if p.smbus == nil {
		return errors.New("linklayer: smbus port closed")
	}
	if rc := C.mctp_smbus_read(p.smbus); rc < 0 {
		return fmt.Errorf("linklayer: mctp_smbus_read: rc %d", int(rc))
	}
	return nil
}

// Close frees the binding. libmctp has no call to unregister a bus,
// so the mctp context still references it; a later AttachSMBus on the
// same engine registers a second bus rather than replacing this one.
func (p *smbusPort) Close() error {
	if p.smbus != nil {
		C.mctp_smbus_free(p.smbus)
		p.smbus = nil
	}
	return nil
}

type asti3cPort struct {
	asti3c *C.struct_mctp_binding_asti3c
	fd     int
}

func (p *asti3cPort) Pump() error {
	if p.asti3c == nil {
		return errors.New("linklayer: asti3c port closed")
	}
	if rc := C.mctp_asti3c_rx(p.asti3c, C.int(p.fd)); rc < 0 {
		return fmt.Errorf("linklayer: mctp_asti3c_rx: rc %d", int(rc))
	}
	return nil
}

// Close frees the binding. As with smbusPort, the bus stays
// registered with the mctp context because libmctp cannot unregister
// it.
func (p *asti3cPort) Close() error {
	if p.asti3c != nil {
		C.mctp_asti3c_free(p.asti3c)
		p.asti3c = nil
	}
	return nil
}

// deliver hands a message from the C callback to the active receiver.
func deliver(source mctp.EID, message unsafe.Pointer, length int, tagOwner bool, tag mctp.Tag) {
	activeEngineMu.Lock()
	engine := activeEngine
	var receiver ReceiveFunc
	if engine != nil {
		receiver = engine.receiver
	}
	activeEngineMu.Unlock()

	if receiver == nil || message == nil || length <= 0 {
		return
	}
	// libmctp reuses its reassembly buffer, so copy before handing off.
	payload := C.GoBytes(message, C.int(length))
	receiver(source, payload, tagOwner, tag)
}
