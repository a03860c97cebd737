// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package muxclient is the Go client for the mctp-mux sockets.
//
// A [Client] registers for one MCTP message type and then exchanges
// messages with remote endpoints through the mux:
//
//	client, err := muxclient.Dial(ctx, "mctp-mux1", mctp.MessageTypePLDM)
//	...
//	err = client.Send(0x1d, request)
//	source, response, err := client.Recv(ctx)
//
// The mux sends no acknowledgment for a registration. A refused
// registration (all eight tags of the type are held) shows up as
// io.EOF from the first Recv.
//
// [QueryStatus] reads the daemon's status snapshot from its status
// socket.
package muxclient
