// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"log/slog"
	"time"

	"github.com/bureau-foundation/mctp-mux/lib/binding"
	"github.com/bureau-foundation/mctp-mux/lib/clock"
	"github.com/bureau-foundation/mctp-mux/lib/linklayer"
	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// Transmit retry defaults.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 30 * time.Millisecond
)

// minimumInboundLength is the shortest inbound payload worth
// delivering.
const minimumInboundLength = 2

// RetryPolicy bounds transmit retries. A message is attempted
// Retries+1 times with Delay between attempts.
type RetryPolicy struct {
	Retries int
	Delay   time.Duration
}

// DefaultRetryPolicy is three retries 30 ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: DefaultRetries, Delay: DefaultRetryDelay}
}

// Counters are cumulative router statistics.
type Counters struct {
	// Inbound counts messages routed to clients, from the bus or
	// locally.
	Inbound uint64 `json:"inbound"`

	// Delivered counts individual client deliveries.
	Delivered uint64 `json:"delivered"`

	// Outbound counts client messages handed to the engine
	// successfully.
	Outbound uint64 `json:"outbound"`

	Loopback uint64 `json:"loopback"`

	// Retries counts transmit attempts after the first.
	Retries uint64 `json:"retries"`

	// TransmitFailures counts messages that exhausted every attempt.
	TransmitFailures uint64 `json:"transmit_failures"`

	SyntheticResponses uint64 `json:"synthetic_responses"`

	// Dropped counts messages discarded as malformed or undeliverable.
	Dropped uint64 `json:"dropped"`

	DeliveryFailures      uint64 `json:"delivery_failures"`
	RejectedRegistrations uint64 `json:"rejected_registrations"`
}

// RouterConfig wires a Router.
type RouterConfig struct {
	LocalEID mctp.EID
	Clients  *ClientTable
	Registry *Registry
	Engine   linklayer.Engine
	Binding  binding.Binding
	Retry    RetryPolicy
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Router moves messages between clients and the link layer.
type Router struct {
	local    mctp.EID
	clients  *ClientTable
	registry *Registry
	engine   linklayer.Engine
	binding  binding.Binding
	retry    RetryPolicy
	clock    clock.Clock
	logger   *slog.Logger

	counters Counters
}

// NewRouter creates a router. A nil Clock means the real clock.
func NewRouter(config RouterConfig) *Router {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Router{
		local:    config.LocalEID,
		clients:  config.Clients,
		registry: config.Registry,
		engine:   config.Engine,
		binding:  config.Binding,
		retry:    config.Retry,
		clock:    config.Clock,
		logger:   config.Logger,
	}
}

// Counters returns a snapshot of the router statistics.
func (r *Router) Counters() Counters { return r.counters }

// RouteInbound fans a message out to every active client registered for
// its type. A client whose delivery fails is marked inactive and the
// fan-out continues. Payloads shorter than two bytes are discarded.
//
// RouteInbound has the signature of [linklayer.ReceiveFunc] and is
// installed as the engine's receiver.
func (r *Router) RouteInbound(source mctp.EID, payload []byte, tagOwner bool, tag mctp.Tag) {
	if len(payload) < minimumInboundLength {
		r.counters.Dropped++
		return
	}
	r.counters.Inbound++
	messageType := mctp.MessageType(payload[0])

	for _, client := range r.clients.clients {
		if client.inactive || !client.registered || client.messageType != messageType {
			continue
		}
		if err := client.conn.Send(source, payload); err != nil {
			r.counters.DeliveryFailures++
			r.logger.Warn("delivering to client failed",
				"client", client.id,
				"message_type", messageType.String(),
				"error", err,
			)
			r.clients.MarkInactive(client)
			continue
		}
		r.counters.Delivered++
	}
}

// RouteOutbound sends payload from client to dest. A message for the
// local EID is looped back to local clients without touching the
// engine. Otherwise the message is transmitted, retried per the retry
// policy, and on final failure answered with a synthetic PLDM error
// response (PLDM only) or dropped.
//
// Retries block the caller. Since the daemon reads a client's next
// message only after this returns, one client's messages are never
// reordered.
func (r *Router) RouteOutbound(client *Client, dest mctp.EID, payload []byte) {
	messageType, ok := mctp.TypeOf(payload)
	if !ok {
		r.counters.Dropped++
		r.logger.Warn("dropping empty message from client", "client", client.id, "dest", dest)
		return
	}

	if dest == r.local {
		r.counters.Loopback++
		r.RouteInbound(r.local, payload, false, 0)
		return
	}

	tagOwner := mctp.TagOwner(payload)
	params := r.binding.TransmitParams(dest, r.registry)

	var err error
	for attempt := 0; attempt <= r.retry.Retries; attempt++ {
		if attempt > 0 {
			r.counters.Retries++
			r.clock.Sleep(r.retry.Delay)
		}
		err = r.engine.Transmit(dest, payload, tagOwner, client.tag, params)
		if err == nil {
			r.counters.Outbound++
			r.logger.Debug("transmitted",
				"client", client.id,
				"dest", dest,
				"message_type", messageType.String(),
				"tag", client.tag,
				"tag_owner", tagOwner,
				"length", len(payload),
			)
			return
		}
	}

	r.counters.TransmitFailures++
	r.logger.Warn("transmit failed",
		"client", client.id,
		"dest", dest,
		"message_type", messageType.String(),
		"attempts", r.retry.Retries+1,
		"error", err,
	)

	if messageType != mctp.MessageTypePLDM {
		r.counters.Dropped++
		return
	}
	r.counters.SyntheticResponses++
	r.RouteInbound(dest, mctp.PLDMErrorResponse(payload), false, 0)
}
