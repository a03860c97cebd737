// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The mux's event loop is single-threaded and its only waits are short
// fixed delays (the transmit retry delay and the hot-join interval), so
// the abstraction is small: [Clock] offers Now, Sleep, and After.
// Production code uses [Real]. Tests use [Fake], which never blocks:
// every Sleep or After advances the fake time by the requested
// duration immediately and records it, so a test can assert on the
// exact sequence of delays the code under test asked for.
package clock
