// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"errors"
	"math/bits"
	"slices"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// DefaultSlaveAddress is the SMBus slave address used for any
// endpoint missing from the address map.
const DefaultSlaveAddress uint8 = 0x64

// ErrNoFreeTag is returned by AllocateTag when every tag of a message
// type is already held.
var ErrNoFreeTag = errors.New("no free tag")

// Registry tracks the tags held by registered clients and the bus
// address of each known remote endpoint.
//
// Tags are held per message type: each type has an independent 8-bit
// set, so a PLDM requester and an SPDM requester may both hold tag 0.
type Registry struct {
	tags [256]uint8

	addresses      map[mctp.EID]uint8
	defaultAddress uint8
}

// NewRegistry creates a registry resolving unknown endpoints to
// defaultAddress. addresses is copied.
func NewRegistry(defaultAddress uint8, addresses map[mctp.EID]uint8) *Registry {
	registry := &Registry{
		addresses:      make(map[mctp.EID]uint8, len(addresses)),
		defaultAddress: defaultAddress,
	}
	for eid, address := range addresses {
		registry.addresses[eid] = address
	}
	return registry
}

// AllocateTag marks the lowest free tag of messageType as held and
// returns it.
func (r *Registry) AllocateTag(messageType mctp.MessageType) (mctp.Tag, error) {
	held := r.tags[messageType]
	if held == 0xff {
		return 0, ErrNoFreeTag
	}
	tag := bits.TrailingZeros8(^held)
	r.tags[messageType] = held | 1<<tag
	return mctp.Tag(tag), nil
}

// ReleaseTag frees tag for messageType. Releasing a free tag is a
// no-op.
func (r *Registry) ReleaseTag(messageType mctp.MessageType, tag mctp.Tag) {
	if tag >= mctp.TagCount {
		return
	}
	r.tags[messageType] &^= 1 << tag
}

// HeldTags returns the tags of messageType currently held, ascending.
func (r *Registry) HeldTags(messageType mctp.MessageType) []mctp.Tag {
	var held []mctp.Tag
	for tag := range mctp.Tag(mctp.TagCount) {
		if r.tags[messageType]&(1<<tag) != 0 {
			held = append(held, tag)
		}
	}
	return held
}

// ResolveAddress returns the bus address of eid, or the default
// address when eid is not in the map.
func (r *Registry) ResolveAddress(eid mctp.EID) uint8 {
	if address, ok := r.addresses[eid]; ok {
		return address
	}
	return r.defaultAddress
}

// LearnAddress records the bus address of eid, replacing any earlier
// entry.
func (r *Registry) LearnAddress(eid mctp.EID, address uint8) {
	r.addresses[eid] = address
}

// KnownEndpoints returns the EIDs with a mapped address, ascending.
func (r *Registry) KnownEndpoints() []mctp.EID {
	eids := make([]mctp.EID, 0, len(r.addresses))
	for eid := range r.addresses {
		eids = append(eids, eid)
	}
	slices.Sort(eids)
	return eids
}
