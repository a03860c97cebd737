// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mux is the MCTP demultiplexer core: it lets any number of
// local processes share one MCTP bus binding.
//
// Local clients connect to a SOCK_SEQPACKET socket and send a single
// byte naming the MCTP message type they handle. From then on every
// packet a client sends is "[dest EID] + payload" and every packet it
// receives is "[source EID] + payload". The mux routes the payloads
// through the link-layer engine and the active [binding.Binding].
//
// The package is split along the lines of the data it owns:
//
//   - [Registry] holds the per-message-type tag bitmaps and the
//     EID-to-bus-address map.
//   - [ClientTable] owns client connections and removes them in two
//     phases (mark, then sweep) so that iteration never sees a
//     half-removed client.
//   - [Router] moves messages between clients and the engine,
//     including loopback to the local EID, transmit retries, and the
//     synthetic PLDM error response sent when a destination cannot be
//     reached.
//   - [Daemon] is the single-threaded poll loop that drives all of the
//     above through the Uninitialized, JoinWait, and Running states.
//
// Nothing in this package is safe for concurrent use except
// [Daemon.State]. All other state is touched only by the goroutine
// running [Daemon.Run].
package mux
