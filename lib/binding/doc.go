// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binding adapts physical buses to the MCTP link-layer engine.
//
// A [Binding] owns the device nodes for one bus, attaches them to a
// [linklayer.Engine], exposes the input descriptor the mux polls, and
// builds the bus-specific transmit parameters for each outgoing
// message. Exactly one binding is active in a mux process; it is chosen
// by name with [New] at startup.
//
// # Bindings
//
//   - smbus: parameters <bus> <bmc_addr_hex>. Transmits through
//     /dev/i2c-<bus> and receives from the i2c slave message queue
//     registered at the controller's own address.
//   - asti3c: parameters <bus> <pid>. Uses the ASPEED I3C IBI message
//     queue of the target device in both directions and supports
//     broadcast hot-join ([HotJoiner]).
//
// Device paths are resolved under [Paths] so tests can point a binding
// at a temporary directory tree.
package binding
