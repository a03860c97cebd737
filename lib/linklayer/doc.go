// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package linklayer is the boundary between the mux and the MCTP
// link-layer engine: packetization, reassembly, transport headers, and
// bus-specific framing all live behind [Engine].
//
// # Implementations
//
//   - libmctp: the production engine, a cgo binding to libmctp with
//     its SMBus and ASPEED I3C bus bindings. Built only with the
//     libmctp build tag, since it needs the C library and headers.
//   - stub: without the build tag, [New] returns
//     [ErrLibMCTPNotAvailable].
//   - [MockEngine]: an in-process engine for tests. It records every
//     transmission, can be told to fail transmits, and delivers
//     inbound messages either directly ([MockEngine.Inject]) or from
//     a file descriptor through a [Port].
//
// # Threading
//
// The engine is driven from a single goroutine. [Port.Pump] invokes
// the registered [ReceiveFunc] synchronously, on the caller's
// goroutine, zero or more times. The payload passed to the receiver is
// only valid for the duration of the call.
package linklayer
