// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

func newTestTable() (*ClientTable, *Registry) {
	registry := NewRegistry(DefaultSlaveAddress, nil)
	return NewClientTable(registry, testLogger()), registry
}

func TestAcceptAndRegister(t *testing.T) {
	table, registry := newTestTable()
	conn, _ := connPair(t)

	client := table.Accept(conn)
	if client.Registered() || client.Inactive() {
		t.Fatalf("new client registered=%v inactive=%v", client.Registered(), client.Inactive())
	}
	if table.Len() != 1 {
		t.Fatalf("Len() = %d", table.Len())
	}

	if err := table.Register(client, byte(mctp.MessageTypeSPDM)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !client.Registered() || client.Type() != mctp.MessageTypeSPDM || client.Tag() != 0 {
		t.Errorf("client after Register: registered=%v type=%v tag=%d", client.Registered(), client.Type(), client.Tag())
	}
	if held := registry.HeldTags(mctp.MessageTypeSPDM); !slices.Equal(held, []mctp.Tag{0}) {
		t.Errorf("held tags = %v", held)
	}

	if err := table.Register(client, byte(mctp.MessageTypePLDM)); err == nil {
		t.Error("second Register succeeded")
	}
}

func TestRegisterRefusesNinthClient(t *testing.T) {
	table, _ := newTestTable()

	var clients []*Client
	for range mctp.TagCount {
		conn, _ := connPair(t)
		client := table.Accept(conn)
		if err := table.Register(client, byte(mctp.MessageTypePLDM)); err != nil {
			t.Fatalf("Register: %v", err)
		}
		clients = append(clients, client)
	}

	conn, peer := connPair(t)
	ninth := table.Accept(conn)
	err := table.Register(ninth, byte(mctp.MessageTypePLDM))
	if !errors.Is(err, ErrNoFreeTag) {
		t.Fatalf("ninth Register err = %v, want ErrNoFreeTag", err)
	}
	if !ninth.Inactive() {
		t.Fatal("refused client not marked inactive")
	}

	if removed := table.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, err := recvPacket(t, peer); !errors.Is(err, io.EOF) {
		t.Errorf("refused client's peer read err = %v, want EOF", err)
	}
	for index, client := range clients {
		if client.Inactive() || client.Tag() != mctp.Tag(index) {
			t.Errorf("existing client %d disturbed: inactive=%v tag=%d", index, client.Inactive(), client.Tag())
		}
	}
}

func TestSweepReleasesAndPreservesOrder(t *testing.T) {
	table, registry := newTestTable()

	var clients []*Client
	var peers []int
	for range 4 {
		conn, peer := connPair(t)
		client := table.Accept(conn)
		table.Register(client, byte(mctp.MessageTypePLDM))
		clients = append(clients, client)
		peers = append(peers, peer)
	}

	table.MarkInactive(clients[0])
	table.MarkInactive(clients[2])
	if table.Len() != 4 {
		t.Fatalf("MarkInactive removed clients immediately: Len() = %d", table.Len())
	}

	if removed := table.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
	if got := table.Clients(); !slices.Equal(got, []*Client{clients[1], clients[3]}) {
		t.Errorf("remaining clients out of order")
	}
	if held := registry.HeldTags(mctp.MessageTypePLDM); !slices.Equal(held, []mctp.Tag{1, 3}) {
		t.Errorf("held tags after sweep = %v, want [1 3]", held)
	}
	for _, index := range []int{0, 2} {
		if _, err := recvPacket(t, peers[index]); !errors.Is(err, io.EOF) {
			t.Errorf("swept client %d peer err = %v, want EOF", index, err)
		}
	}

	if removed := table.Sweep(); removed != 0 {
		t.Errorf("second Sweep removed %d", removed)
	}
}

func TestLowestFreeTagReuse(t *testing.T) {
	table, _ := newTestTable()

	register := func() *Client {
		conn, _ := connPair(t)
		client := table.Accept(conn)
		if err := table.Register(client, byte(mctp.MessageTypePLDM)); err != nil {
			t.Fatalf("Register: %v", err)
		}
		return client
	}

	first := register()
	second := register()
	if first.Tag() != 0 || second.Tag() != 1 {
		t.Fatalf("tags = %d, %d, want 0, 1", first.Tag(), second.Tag())
	}

	table.MarkInactive(first)
	table.Sweep()

	third := register()
	if third.Tag() != 0 {
		t.Errorf("third client tag = %d, want 0", third.Tag())
	}
}

func TestUnregisteredClientHoldsNoTag(t *testing.T) {
	table, registry := newTestTable()
	conn, _ := connPair(t)
	client := table.Accept(conn)
	table.MarkInactive(client)
	table.Sweep()

	for value := range 256 {
		if held := registry.HeldTags(mctp.MessageType(value)); len(held) != 0 {
			t.Fatalf("type %#x holds %v", value, held)
		}
	}
}

func TestClientTableClose(t *testing.T) {
	table, registry := newTestTable()
	conn, peer := connPair(t)
	client := table.Accept(conn)
	table.Register(client, byte(mctp.MessageTypeNCSI))

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() after Close = %d", table.Len())
	}
	if held := registry.HeldTags(mctp.MessageTypeNCSI); len(held) != 0 {
		t.Errorf("tags held after Close: %v", held)
	}
	if _, err := recvPacket(t, peer); !errors.Is(err, io.EOF) {
		t.Errorf("peer err = %v, want EOF", err)
	}
}
