// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version describes the running mctp-mux binary.
//
// Release builds inject [Version], [GitCommit], [GitDirty], and
// [BuildTime] with -ldflags -X. Variables left empty fall back to the
// vcs.* settings the Go toolchain stamps into module builds, so a
// plain go build from a checkout still reports its commit.
//
//	go build -ldflags "-X github.com/bureau-foundation/mctp-mux/lib/version.Version=1.0.0" ./cmd/mctp-mux
//
// [Current] returns a [Build]; its String form goes in the startup
// log line and Detail in --version output.
package version
