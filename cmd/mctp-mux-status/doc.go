// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// mctp-mux-status prints a running mux's state: its binding, the
// connected clients with their message types and tags, the routing
// counters, and the EID address map.
//
// Usage:
//
//	mctp-mux-status                          # mctp-mux1-status
//	mctp-mux-status --socket mctp-mux3-status
//	mctp-mux-status --json
//	mctp-mux-status --raw                    # CBOR diagnostic notation
package main
