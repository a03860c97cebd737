// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// Client is one local process connected to the mux. A client starts
// unregistered and becomes registered for exactly one message type
// when its first byte arrives.
type Client struct {
	id   uint64
	conn Conn

	registered  bool
	messageType mctp.MessageType
	tag         mctp.Tag

	inactive bool
}

// ID is a per-daemon sequence number for log correlation.
func (c *Client) ID() uint64 { return c.id }

func (c *Client) Conn() Conn { return c.conn }

func (c *Client) Registered() bool { return c.registered }

// Type is the registered message type. Meaningless until Registered.
func (c *Client) Type() mctp.MessageType { return c.messageType }

// Tag is the tag allocated at registration. Meaningless until
// Registered.
func (c *Client) Tag() mctp.Tag { return c.tag }

// Inactive reports whether the client is marked for removal.
func (c *Client) Inactive() bool { return c.inactive }

// ClientTable owns every client connection. Removal is two-phase:
// MarkInactive flags a client and Sweep later releases its tag,
// closes its connection, and drops it. Clients are enumerated in
// acceptance order.
type ClientTable struct {
	registry *Registry
	logger   *slog.Logger

	clients []*Client
	nextID  uint64
}

// NewClientTable creates an empty table allocating tags from registry.
func NewClientTable(registry *Registry, logger *slog.Logger) *ClientTable {
	return &ClientTable{registry: registry, logger: logger}
}

// Accept adds a new, unregistered client owning conn.
func (t *ClientTable) Accept(conn Conn) *Client {
	t.nextID++
	client := &Client{id: t.nextID, conn: conn}
	t.clients = append(t.clients, client)
	t.logger.Debug("client connected", "client", client.id)
	return client
}

// Register binds client to the message type in typeByte and allocates
// it a tag. If no tag is free the client is marked inactive and the
// allocation error is returned.
func (t *ClientTable) Register(client *Client, typeByte byte) error {
	if client.registered {
		return fmt.Errorf("client %d already registered for %s", client.id, client.messageType)
	}
	messageType := mctp.MessageType(typeByte)
	tag, err := t.registry.AllocateTag(messageType)
	if err != nil {
		t.MarkInactive(client)
		return fmt.Errorf("registering client %d for %s: %w", client.id, messageType, err)
	}
	client.registered = true
	client.messageType = messageType
	client.tag = tag
	t.logger.Info("client registered",
		"client", client.id,
		"message_type", messageType.String(),
		"tag", tag,
	)
	return nil
}

// MarkInactive flags client for removal by the next Sweep.
func (t *ClientTable) MarkInactive(client *Client) {
	client.inactive = true
}

// Sweep removes every inactive client: its tag is released, its
// connection closed, and the remaining clients keep their order.
// Returns the number removed.
func (t *ClientTable) Sweep() int {
	kept := t.clients[:0]
	removed := 0
	for _, client := range t.clients {
		if !client.inactive {
			kept = append(kept, client)
			continue
		}
		t.remove(client)
		removed++
	}
	clear(t.clients[len(kept):])
	t.clients = kept
	return removed
}

func (t *ClientTable) remove(client *Client) {
	if client.registered {
		t.registry.ReleaseTag(client.messageType, client.tag)
	}
	if err := client.conn.Close(); err != nil {
		t.logger.Warn("closing client connection", "client", client.id, "error", err)
	}
	t.logger.Debug("client removed", "client", client.id)
}

// Clients returns the current clients in acceptance order. The slice
// is a copy; the clients are not.
func (t *ClientTable) Clients() []*Client {
	return append([]*Client(nil), t.clients...)
}

// Len returns the number of clients, including any marked inactive.
func (t *ClientTable) Len() int { return len(t.clients) }

// Close removes every client regardless of its state.
func (t *ClientTable) Close() error {
	var errs []error
	for _, client := range t.clients {
		if client.registered {
			t.registry.ReleaseTag(client.messageType, client.tag)
		}
		errs = append(errs, client.conn.Close())
	}
	clear(t.clients)
	t.clients = t.clients[:0]
	return errors.Join(errs...)
}
