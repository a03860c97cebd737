// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import "github.com/bureau-foundation/mctp-mux/lib/codec"

// Status is the daemon snapshot served on the status socket.
type Status struct {
	State      string `json:"state"`
	Binding    string `json:"binding"`
	LocalEID   uint8  `json:"local_eid"`
	SocketName string `json:"socket_name"`

	// Initializations counts successful binding initializations.
	// Anything above one means the bus was lost and reacquired.
	Initializations uint64 `json:"initializations"`

	Clients  []ClientStatus `json:"clients"`
	Counters Counters       `json:"counters"`

	// Addresses maps each known EID to its bus address.
	Addresses map[uint8]uint8 `json:"addresses,omitempty"`
}

// ClientStatus describes one connected client.
type ClientStatus struct {
	ID          uint64 `json:"id"`
	Registered  bool   `json:"registered"`
	MessageType string `json:"message_type,omitempty"`
	Tag         uint8  `json:"tag"`
}

// EncodeStatus encodes status for the status socket.
func EncodeStatus(status Status) ([]byte, error) {
	return codec.Marshal(status)
}

// DecodeStatus decodes a status socket packet.
func DecodeStatus(data []byte) (Status, error) {
	var status Status
	err := codec.Unmarshal(data, &status)
	return status, err
}

// snapshot assembles the daemon's current Status.
func (d *Daemon) snapshot() Status {
	status := Status{
		State:           d.State().String(),
		Binding:         d.binding.Name(),
		LocalEID:        uint8(d.local),
		SocketName:      d.socketName,
		Initializations: d.initializations,
		Clients:         make([]ClientStatus, 0, d.clients.Len()),
		Counters:        d.router.Counters(),
	}
	for _, client := range d.clients.clients {
		entry := ClientStatus{ID: client.id, Registered: client.registered}
		if client.registered {
			entry.MessageType = client.messageType.String()
			entry.Tag = uint8(client.tag)
		}
		status.Clients = append(status.Clients, entry)
	}
	if known := d.registry.KnownEndpoints(); len(known) > 0 {
		status.Addresses = make(map[uint8]uint8, len(known))
		for _, eid := range known {
			status.Addresses[uint8(eid)] = d.registry.ResolveAddress(eid)
		}
	}
	return status
}
