// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"bytes"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/mctp-mux/lib/clock"
	"github.com/bureau-foundation/mctp-mux/lib/linklayer"
	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

const testLocalEID mctp.EID = 8

type routerFixture struct {
	router   *Router
	table    *ClientTable
	registry *Registry
	engine   *linklayer.MockEngine
	binding  *fakeBinding
	clock    *clock.FakeClock
}

func newRouterFixture(t *testing.T, options ...linklayer.MockEngineOption) *routerFixture {
	t.Helper()
	registry := NewRegistry(DefaultSlaveAddress, map[mctp.EID]uint8{0x1d: 0x40})
	table := NewClientTable(registry, testLogger())
	engine := linklayer.NewMockEngine(options...)
	fake := newFakeBinding(0)
	if err := fake.Init(engine, testLocalEID, nil); err != nil {
		t.Fatalf("binding Init: %v", err)
	}
	t.Cleanup(func() { fake.Close() })

	fakeClock := clock.Fake(time.Unix(1700000000, 0))
	router := NewRouter(RouterConfig{
		LocalEID: testLocalEID,
		Clients:  table,
		Registry: registry,
		Engine:   engine,
		Binding:  fake,
		Retry:    DefaultRetryPolicy(),
		Clock:    fakeClock,
		Logger:   testLogger(),
	})
	engine.SetReceiver(router.RouteInbound)
	return &routerFixture{
		router:   router,
		table:    table,
		registry: registry,
		engine:   engine,
		binding:  fake,
		clock:    fakeClock,
	}
}

// addClient accepts and registers a client for messageType, returning
// it and the test's end of its connection.
func (f *routerFixture) addClient(t *testing.T, messageType mctp.MessageType) (*Client, int) {
	t.Helper()
	conn, peer := connPair(t)
	client := f.table.Accept(conn)
	if err := f.table.Register(client, byte(messageType)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return client, peer
}

func TestRouteInboundFanOut(t *testing.T) {
	f := newRouterFixture(t)
	_, pldmA := f.addClient(t, mctp.MessageTypePLDM)
	_, spdm := f.addClient(t, mctp.MessageTypeSPDM)
	_, pldmB := f.addClient(t, mctp.MessageTypePLDM)
	conn, unregistered := connPair(t)
	f.table.Accept(conn)

	payload := []byte{byte(mctp.MessageTypePLDM), 0x00, 0x02, 0x11, 0x00}
	f.router.RouteInbound(0x1d, payload, false, 3)

	want := append([]byte{0x1d}, payload...)
	for name, peer := range map[string]int{"first": pldmA, "second": pldmB} {
		if got := requirePacket(t, peer); !bytes.Equal(got, want) {
			t.Errorf("%s PLDM client got %x, want %x", name, got, want)
		}
	}
	requireNoPacket(t, spdm)
	requireNoPacket(t, unregistered)

	if counters := f.router.Counters(); counters.Inbound != 1 || counters.Delivered != 2 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRouteInboundDropsShortPayload(t *testing.T) {
	f := newRouterFixture(t)
	_, peer := f.addClient(t, mctp.MessageTypePLDM)

	f.router.RouteInbound(0x1d, []byte{byte(mctp.MessageTypePLDM)}, false, 0)
	f.router.RouteInbound(0x1d, nil, false, 0)

	requireNoPacket(t, peer)
	if counters := f.router.Counters(); counters.Dropped != 2 || counters.Inbound != 0 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRouteInboundFanOutIsolation(t *testing.T) {
	f := newRouterFixture(t)
	clientA, peerA := f.addClient(t, mctp.MessageTypePLDM)
	clientB, peerB := f.addClient(t, mctp.MessageTypePLDM)
	_, peerC := f.addClient(t, mctp.MessageTypePLDM)

	shutdownPeer(t, peerA)

	payload := []byte{byte(mctp.MessageTypePLDM), 0x01, 0x02}
	f.router.RouteInbound(0x1d, payload, false, 0)

	if !clientA.Inactive() {
		t.Error("client A not marked inactive after failed delivery")
	}
	if clientB.Inactive() {
		t.Error("client B marked inactive")
	}
	for name, peer := range map[string]int{"B": peerB, "C": peerC} {
		if got := requirePacket(t, peer); !bytes.Equal(got, append([]byte{0x1d}, payload...)) {
			t.Errorf("client %s got %x", name, got)
		}
	}
	if counters := f.router.Counters(); counters.DeliveryFailures != 1 || counters.Delivered != 2 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRouteOutboundLoopback(t *testing.T) {
	f := newRouterFixture(t)
	sender, senderPeer := f.addClient(t, mctp.MessageTypePLDM)
	_, otherPeer := f.addClient(t, mctp.MessageTypePLDM)

	payload := []byte{byte(mctp.MessageTypePLDM), 0x80, 0x02, 0x3a}
	f.router.RouteOutbound(sender, testLocalEID, payload)

	if attempts := f.engine.TransmitAttempts(); attempts != 0 {
		t.Fatalf("loopback reached the engine: %d transmit attempts", attempts)
	}
	want := append([]byte{byte(testLocalEID)}, payload...)
	for name, peer := range map[string]int{"sender": senderPeer, "other": otherPeer} {
		if got := requirePacket(t, peer); !bytes.Equal(got, want) {
			t.Errorf("%s got %x, want %x", name, got, want)
		}
	}
	if counters := f.router.Counters(); counters.Loopback != 1 || counters.Outbound != 0 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRouteOutboundTransmit(t *testing.T) {
	tests := []struct {
		name         string
		messageType  mctp.MessageType
		payload      []byte
		wantTagOwner bool
	}{
		{"pldm request", mctp.MessageTypePLDM, []byte{0x01, 0x81, 0x02, 0x3a}, true},
		{"pldm response", mctp.MessageTypePLDM, []byte{0x01, 0x01, 0x02, 0x3a, 0x00}, false},
		{"ncsi command", mctp.MessageTypeNCSI, []byte{0x02, 0x00, 0x01, 0x00, 0x10, 0x08, 0x00}, true},
		{"spdm request", mctp.MessageTypeSPDM, []byte{0x05, 0x10, 0x84}, true},
		{"vendor", mctp.MessageTypeVendorPCI, []byte{0x7e, 0xff, 0xff, 0xff}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.addClient(t, test.messageType)
			client, _ := f.addClient(t, test.messageType)

			f.router.RouteOutbound(client, 0x1d, test.payload)

			transmissions := f.engine.Transmissions()
			if len(transmissions) != 1 {
				t.Fatalf("%d transmissions, want 1", len(transmissions))
			}
			got := transmissions[0]
			if got.Dest != 0x1d || !bytes.Equal(got.Payload, test.payload) {
				t.Errorf("transmitted dest %#x payload %x", got.Dest, got.Payload)
			}
			if got.TagOwner != test.wantTagOwner {
				t.Errorf("TagOwner = %v, want %v", got.TagOwner, test.wantTagOwner)
			}
			if got.Tag != 1 {
				t.Errorf("Tag = %d, want the client's tag 1", got.Tag)
			}
			params, ok := got.Params.(linklayer.SMBusParams)
			if !ok || params.SlaveAddr != 0x40 {
				t.Errorf("Params = %#v, want slave address 0x40 from the address map", got.Params)
			}
			if f.clock.WaitCount() != 0 {
				t.Errorf("successful transmit waited: %v", f.clock.Waits())
			}
		})
	}
}

func TestRouteOutboundRetryBound(t *testing.T) {
	f := newRouterFixture(t, linklayer.WithTransmitError(errors.New("bus nak")))
	client, peer := f.addClient(t, mctp.MessageTypePLDM)

	request := []byte{byte(mctp.MessageTypePLDM), 0x85, 0x02, 0x3a, 0x04, 0x00}
	original := bytes.Clone(request)
	f.router.RouteOutbound(client, 0x30, request)

	if attempts := f.engine.TransmitAttempts(); attempts != 4 {
		t.Fatalf("transmit attempts = %d, want 4", attempts)
	}
	wantWaits := []time.Duration{DefaultRetryDelay, DefaultRetryDelay, DefaultRetryDelay}
	if waits := f.clock.Waits(); !slices.Equal(waits, wantWaits) {
		t.Errorf("waits = %v, want %v", waits, wantWaits)
	}

	// The synthetic response appears to come from the unreachable
	// destination.
	want := []byte{0x30, byte(mctp.MessageTypePLDM), 0x05, 0x02, 0x3a, mctp.PLDMCompletionError}
	if got := requirePacket(t, peer); !bytes.Equal(got, want) {
		t.Errorf("synthetic response %x, want %x", got, want)
	}
	if !bytes.Equal(request, original) {
		t.Errorf("request modified: %x", request)
	}

	counters := f.router.Counters()
	if counters.Retries != 3 || counters.TransmitFailures != 1 || counters.SyntheticResponses != 1 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRouteOutboundRecoversWithinRetries(t *testing.T) {
	f := newRouterFixture(t, linklayer.WithTransmitFailures(2, errors.New("arbitration lost")))
	client, peer := f.addClient(t, mctp.MessageTypePLDM)

	f.router.RouteOutbound(client, 0x1d, []byte{byte(mctp.MessageTypePLDM), 0x80, 0x02, 0x3a})

	if attempts := f.engine.TransmitAttempts(); attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(f.engine.Transmissions()) != 1 {
		t.Errorf("transmissions = %d, want 1", len(f.engine.Transmissions()))
	}
	requireNoPacket(t, peer)
	if counters := f.router.Counters(); counters.Outbound != 1 || counters.Retries != 2 || counters.SyntheticResponses != 0 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRouteOutboundNonPLDMFailureDropped(t *testing.T) {
	f := newRouterFixture(t, linklayer.WithTransmitError(errors.New("bus nak")))
	client, peer := f.addClient(t, mctp.MessageTypeSPDM)

	f.router.RouteOutbound(client, 0x1d, []byte{byte(mctp.MessageTypeSPDM), 0x11, 0x84})

	if attempts := f.engine.TransmitAttempts(); attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	requireNoPacket(t, peer)
	if counters := f.router.Counters(); counters.Dropped != 1 || counters.SyntheticResponses != 0 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRouteOutboundEmptyPayload(t *testing.T) {
	f := newRouterFixture(t)
	client, _ := f.addClient(t, mctp.MessageTypePLDM)

	f.router.RouteOutbound(client, 0x1d, nil)

	if attempts := f.engine.TransmitAttempts(); attempts != 0 {
		t.Errorf("empty payload transmitted (%d attempts)", attempts)
	}
	if counters := f.router.Counters(); counters.Dropped != 1 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRouteInboundFromBinding(t *testing.T) {
	f := newRouterFixture(t)
	_, peer := f.addClient(t, mctp.MessageTypeSPDM)

	payload := []byte{byte(mctp.MessageTypeSPDM), 0x11, 0x04, 0x00, 0x00}
	f.binding.Inject(t, 0x1d, payload)
	if !waitReadable(t, f.binding.InputFD(), packetTimeout) {
		t.Fatal("bus packet never arrived")
	}
	if err := f.binding.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := requirePacket(t, peer); !bytes.Equal(got, append([]byte{0x1d}, payload...)) {
		t.Errorf("client got %x", got)
	}
}
