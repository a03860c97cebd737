// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// listenBacklog matches the original daemon. Clients connect once at
// startup, so a deep queue buys nothing.
const listenBacklog = 1

// SocketAddress maps a socket name to an address. A name starting with
// "/" is a filesystem path; anything else lives in the abstract
// namespace.
func SocketAddress(name string) *unix.SockaddrUnix {
	if strings.HasPrefix(name, "/") {
		return &unix.SockaddrUnix{Name: name}
	}
	return &unix.SockaddrUnix{Name: "@" + name}
}

// Listener is a listening SOCK_SEQPACKET socket.
type Listener struct {
	name string
	fd   int
}

// Listen opens a non-blocking listening socket at name. A stale socket
// file at a filesystem path is removed first.
func Listen(name string) (*Listener, error) {
	if name == "" {
		return nil, errors.New("empty socket name")
	}
	if strings.HasPrefix(name, "/") {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("removing stale socket %s: %w", name, err)
		}
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating socket: %w", err)
	}
	if err := unix.Bind(fd, SocketAddress(name)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding %q: %w", name, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listening on %q: %w", name, err)
	}
	return &Listener{name: name, fd: fd}, nil
}

// Dial connects a blocking SOCK_SEQPACKET socket to name and returns
// its descriptor.
func Dial(name string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("creating socket: %w", err)
	}
	if err := unix.Connect(fd, SocketAddress(name)); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("connecting to %q: %w", name, err)
	}
	return fd, nil
}

func (l *Listener) Name() string { return l.name }

func (l *Listener) FD() int { return l.fd }

// Accept returns the next pending connection, non-blocking and
// close-on-exec.
func (l *Listener) Accept() (*SeqpacketConn, error) {
	fd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return NewSeqpacketConn(fd), nil
}

// Close closes the socket and removes a filesystem socket file.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	if strings.HasPrefix(l.name, "/") {
		os.Remove(l.name)
	}
	return err
}
