// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !libmctp

package linklayer

// Available reports whether the libmctp engine is built in.
func Available() bool {
	return false
}

// New returns ErrLibMCTPNotAvailable on builds without the libmctp tag.
func New() (Engine, error) {
	return nil, ErrLibMCTPNotAvailable
}
