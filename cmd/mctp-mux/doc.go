// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// mctp-mux lets local processes share one MCTP bus binding.
//
// Usage:
//
//	mctp-mux [flags] <binding> [binding parameters...]
//	mctp-mux smbus 1 10
//	mctp-mux --eid 9 asti3c 0 7ec05031000
//
// Each client connects to the SOCK_SEQPACKET socket (abstract name
// "mctp-mux<bus>" by default), sends one byte naming the MCTP message
// type it handles, and then exchanges "[EID] + payload" packets with
// the mux. The daemon runs until SIGINT or SIGTERM; a bus that is not
// ready, or that disappears, is retried every two seconds rather than
// ending the process.
//
// Configuration comes from a YAML file (--config or MCTP_MUX_CONFIG)
// with flags taking precedence. Logs go to stderr: text on a terminal,
// JSON otherwise.
package main
