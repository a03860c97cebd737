// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// This file has no build tags so errors are available in all build configurations.

package linklayer

import "errors"

// ErrLibMCTPNotAvailable is returned by New when the binary was built
// without the libmctp build tag.
var ErrLibMCTPNotAvailable = errors.New("linklayer: libmctp engine not built in (rebuild with -tags libmctp)")

// ErrEngineClosed is returned by operations on a closed engine.
var ErrEngineClosed = errors.New("linklayer: engine closed")
