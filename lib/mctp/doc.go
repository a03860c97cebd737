// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mctp defines the small slice of MCTP protocol vocabulary the
// mux needs: endpoint identifiers, message tags, message types, and the
// few fixed-offset byte inspections used for routing decisions.
//
// Nothing here interprets upper-layer payloads beyond what is needed to
// decide tag ownership ([TagOwner]) and to synthesize a PLDM error
// response when a request cannot be transmitted ([PLDMErrorResponse]).
// Payloads handled by this package always start with the message type
// byte; the destination/source EID prefix used on the client socket is
// stripped before any function here sees the message.
//
// This package depends on no other packages in this module.
package mctp
