// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
)

var socketCounter atomic.Uint64

// SocketName returns a unique abstract-namespace socket name of the
// form "mctp-mux-test-<pid>-<prefix>-<n>".
func SocketName(prefix string) string {
	return fmt.Sprintf("mctp-mux-test-%d-%s-%d", os.Getpid(), prefix, socketCounter.Add(1))
}

// SocketDir creates a short-named temporary directory in /tmp for
// filesystem socket paths. The directory is removed when the test
// completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "mctp-mux-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}
