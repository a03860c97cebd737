// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build libmctp

package linklayer

/*
#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>
*/
import "C"

import (
	"unsafe"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// goLinkLayerReceive is libmctp's rx-all callback. It runs on the
// goroutine that called Port.Pump.
//
//export goLinkLayerReceive
func goLinkLayerReceive(eid C.uint8_t, data unsafe.Pointer, message unsafe.Pointer, length C.size_t, tagOwner C.bool, tag C.uint8_t, private unsafe.Pointer) {
	deliver(mctp.EID(eid), message, int(length), bool(tagOwner), mctp.Tag(tag))
}
