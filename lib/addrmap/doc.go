// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package addrmap loads the EID-to-SMBus-address map the mux uses to
// address outbound packets.
//
// The file is JSONC: JSON extended with // line comments, /* block
// comments */, and trailing commas, so operators can annotate which
// board device each entry belongs to.
//
//	{
//	  "addresses": {
//	    // retimer on the riser card
//	    "0x1d": "0x40",
//	    "30": 82,
//	  },
//	}
//
// Keys are endpoint IDs and values are 7-bit slave addresses. Both
// accept any Go integer literal (decimal, 0x hex, 0o octal, 0b binary);
// values may also be bare JSON numbers. The reserved EIDs 0 (null) and
// 255 (broadcast) are rejected.
package addrmap
