// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the mux's standard CBOR encoding
// configuration.
//
// The status socket speaks CBOR: the daemon writes one encoded
// [mux.Status] per connection and tools decode it. The encoder uses
// Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items. Same logical
// data always produces identical bytes, so two snapshots of an idle
// daemon compare equal byte for byte.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// [Diagnose] renders raw packets in CBOR diagnostic notation for
// debugging.
//
// # Struct Tag Rules
//
// Types that are only ever CBOR carry `cbor` tags. Types that may also
// be printed as JSON (the status snapshot, for --json output) carry
// only `json` tags: fxamacker/cbor v2 reads `json` tags as fallback
// when `cbor` tags are absent, so one tag controls field naming and
// omitempty for both formats. Never use both on the same field.
package codec
