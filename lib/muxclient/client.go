// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package muxclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
	"github.com/bureau-foundation/mctp-mux/mux"
)

// dialTimeout bounds the connect phase.
const dialTimeout = 5 * time.Second

// statusReadTimeout is how long QueryStatus waits for the snapshot.
// The daemon answers on its next poll iteration.
const statusReadTimeout = 5 * time.Second

// maxMessageSize is the largest message Recv accepts. MCTP messages
// are reassembled by the link layer and are far smaller in practice.
const maxMessageSize = 64 * 1024

// address maps a mux socket name to a net address: a leading "/" is a
// filesystem path, anything else is abstract.
func address(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "@" + name
}

// Client is a connection to the mux registered for one message type.
// A Client is not safe for concurrent use.
type Client struct {
	conn        *net.UnixConn
	messageType mctp.MessageType
	buffer      []byte
}

// Dial connects to the mux socket and registers for messageType.
func Dial(ctx context.Context, socketName string, messageType mctp.MessageType) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unixpacket", address(socketName))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", socketName, err)
	}
	unixConn := conn.(*net.UnixConn)

	if _, err := unixConn.Write([]byte{byte(messageType)}); err != nil {
		unixConn.Close()
		return nil, fmt.Errorf("registering for %s: %w", messageType, err)
	}
	return &Client{
		conn:        unixConn,
		messageType: messageType,
		buffer:      make([]byte, maxMessageSize),
	}, nil
}

// MessageType is the type this client registered for.
func (c *Client) MessageType() mctp.MessageType { return c.messageType }

// Send sends payload to dest. payload starts with the message type
// byte.
func (c *Client) Send(dest mctp.EID, payload []byte) error {
	if len(payload) == 0 {
		return errors.New("empty payload")
	}
	packet := append([]byte{byte(dest)}, payload...)
	if _, err := c.conn.Write(packet); err != nil {
		return fmt.Errorf("sending to %#x: %w", dest, err)
	}
	return nil
}

// Recv waits for the next message and returns its source and payload.
// It returns io.EOF when the mux closes the connection and ctx.Err()
// when ctx ends first.
func (c *Client) Recv(ctx context.Context) (mctp.EID, []byte, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, nil, err
	}
	// Unblock the read if ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	count, _, flags, _, err := c.conn.ReadMsgUnix(c.buffer, nil)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, io.EOF
	}
	if flags&unix.MSG_TRUNC != 0 {
		return 0, nil, fmt.Errorf("message larger than %d bytes", maxMessageSize)
	}
	return mctp.EID(c.buffer[0]), bytes.Clone(c.buffer[1:count]), nil
}

// Close closes the connection, releasing the client's tag in the mux.
func (c *Client) Close() error {
	return c.conn.Close()
}

// QueryStatus reads one status snapshot from the mux status socket.
func QueryStatus(ctx context.Context, statusSocketName string) (mux.Status, error) {
	raw, err := QueryStatusRaw(ctx, statusSocketName)
	if err != nil {
		return mux.Status{}, err
	}
	status, err := mux.DecodeStatus(raw)
	if err != nil {
		return mux.Status{}, fmt.Errorf("decoding status: %w", err)
	}
	return status, nil
}

// QueryStatusRaw reads one status snapshot without decoding it.
func QueryStatusRaw(ctx context.Context, statusSocketName string) ([]byte, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unixpacket", address(statusSocketName))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", statusSocketName, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(statusReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)

	buffer := make([]byte, maxMessageSize)
	count, err := conn.Read(buffer)
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("reading status: %w", io.EOF)
	}
	return buffer[:count], nil
}
