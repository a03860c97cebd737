// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// Conn is one client connection. Every method is non-blocking; the
// daemon calls the read methods only after poll reports the descriptor
// ready.
type Conn interface {
	// FD is the descriptor to poll.
	FD() int

	// ReadType reads the single registration byte.
	ReadType() (byte, error)

	// ReadMessage reads one framed client message into buffer and
	// returns it. The result aliases buffer and is valid until the
	// next read.
	ReadMessage(buffer *InboundBuffer) ([]byte, error)

	// Send delivers "[source] + payload" as one packet.
	Send(source mctp.EID, payload []byte) error

	Close() error
}

// InboundBuffer is the receive buffer shared by every client read. It
// grows to the largest message seen and is never shrunk.
type InboundBuffer struct {
	data []byte
}

// Bytes returns a slice of exactly size bytes, growing the buffer if
// needed.
func (b *InboundBuffer) Bytes(size int) []byte {
	if cap(b.data) < size {
		b.data = make([]byte, size)
	}
	return b.data[:size]
}

// Cap reports the current capacity.
func (b *InboundBuffer) Cap() int { return cap(b.data) }

// SeqpacketConn is a Conn over a SOCK_SEQPACKET socket descriptor.
type SeqpacketConn struct {
	fd int
}

// NewSeqpacketConn wraps fd. The conn takes ownership of fd.
func NewSeqpacketConn(fd int) *SeqpacketConn {
	return &SeqpacketConn{fd: fd}
}

func (c *SeqpacketConn) FD() int { return c.fd }

// ReadType reads one byte. Anything after the first byte of the packet
// is discarded by the socket.
func (c *SeqpacketConn) ReadType() (byte, error) {
	var typeByte [1]byte
	count, err := unix.Read(c.fd, typeByte[:])
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, io.EOF
	}
	return typeByte[0], nil
}

// ReadMessage peeks at the size of the pending packet, sizes buffer to
// fit, and reads the packet. A zero-length packet is how SOCK_SEQPACKET
// reports an orderly shutdown by the peer, so it returns io.EOF.
func (c *SeqpacketConn) ReadMessage(buffer *InboundBuffer) ([]byte, error) {
	size, _, err := unix.Recvfrom(c.fd, nil, unix.MSG_PEEK|unix.MSG_TRUNC)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		// Consume the empty packet so poll does not report it again.
		unix.Read(c.fd, nil)
		return nil, io.EOF
	}

	data := buffer.Bytes(size)
	count, err := unix.Read(c.fd, data)
	if err != nil {
		return nil, err
	}
	if count != size {
		return nil, fmt.Errorf("short read: got %d of %d bytes", count, size)
	}
	return data, nil
}

// Send writes the source byte and payload as one packet without
// copying the payload.
func (c *SeqpacketConn) Send(source mctp.EID, payload []byte) error {
	_, err := unix.SendmsgBuffers(c.fd, [][]byte{{byte(source)}, payload}, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
	return err
}

func (c *SeqpacketConn) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}
