// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for mctp-mux packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un) and t.TempDir() can exceed it.
//
// [SocketName] returns an abstract-namespace socket name that no other
// test, in this process or any other, is using. The abstract namespace
// is shared by every process in the network namespace, so names carry
// the process ID as well as a counter.
//
// [RequireReceive] and [WaitFor] encapsulate the
// timeout safety valve pattern so that individual tests do not need
// direct time.After calls. These are the only place in the test suite
// where real wall-clock timeouts are used.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no mctp-mux dependencies.
package testutil
