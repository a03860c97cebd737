// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/mctp-mux/lib/binding"
	"github.com/bureau-foundation/mctp-mux/lib/linklayer"
	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// packetTimeout bounds every wait for a packet in these tests.
const packetTimeout = 5 * time.Second

var errFakeInit = errors.New("bus not ready")

// fakeBinding is a Binding backed by a SOCK_SEQPACKET pair. The daemon
// polls one end; the test writes mock link-layer packets ("[source] +
// payload") into the other with Inject.
type fakeBinding struct {
	failInits int32

	inits    atomic.Int32
	closes   atomic.Int32
	hotJoins atomic.Int32

	busFD  int
	peerFD atomic.Int32
	port   linklayer.Port
}

func newFakeBinding(failInits int32) *fakeBinding {
	b := &fakeBinding{failInits: failInits, busFD: -1}
	b.peerFD.Store(-1)
	return b
}

func (b *fakeBinding) Name() string { return "fake" }

func (b *fakeBinding) Init(engine linklayer.Engine, local mctp.EID, params []string) error {
	b.Close()
	if b.inits.Add(1) <= b.failInits {
		return errFakeInit
	}
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	port, err := engine.AttachSMBus(linklayer.SMBusConfig{InFD: fds[0], OutFD: fds[0], LocalEID: local})
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return err
	}
	b.busFD = fds[0]
	b.port = port
	b.peerFD.Store(int32(fds[1]))
	return nil
}

func (b *fakeBinding) InputFD() int       { return b.busFD }
func (b *fakeBinding) InputEvents() int16 { return unix.POLLIN }
func (b *fakeBinding) OutputFD() int      { return b.busFD }

func (b *fakeBinding) Process() error { return b.port.Pump() }

func (b *fakeBinding) TransmitParams(dest mctp.EID, resolver binding.AddressResolver) linklayer.TxParams {
	return linklayer.SMBusParams{FD: b.busFD, SlaveAddr: resolver.ResolveAddress(dest)}
}

func (b *fakeBinding) Close() error {
	if b.port == nil {
		return nil
	}
	b.closes.Add(1)
	b.port.Close()
	b.port = nil
	unix.Close(b.busFD)
	b.busFD = -1
	unix.Close(int(b.peerFD.Swap(-1)))
	return nil
}

// Inject sends a mock bus packet to the daemon.
func (b *fakeBinding) Inject(t *testing.T, source mctp.EID, payload []byte) {
	t.Helper()
	fd := int(b.peerFD.Load())
	if fd < 0 {
		t.Fatal("fake binding not initialized")
	}
	if _, err := unix.Write(fd, append([]byte{byte(source)}, payload...)); err != nil {
		t.Fatalf("injecting bus packet: %v", err)
	}
}

// hotJoinBinding adds HotJoin to fakeBinding.
type hotJoinBinding struct {
	*fakeBinding
}

func (b hotJoinBinding) HotJoin() error {
	b.hotJoins.Add(1)
	return nil
}

// connPair returns a mux-side conn and the test-side peer descriptor.
func connPair(t *testing.T) (*SeqpacketConn, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	conn := NewSeqpacketConn(fds[0])
	t.Cleanup(func() {
		conn.Close()
		unix.Close(fds[1])
	})
	return conn, fds[1]
}

// recvPacket waits for one packet on fd. It returns io.EOF when the
// other end has closed.
func recvPacket(t *testing.T, fd int) ([]byte, error) {
	t.Helper()
	if !waitReadable(t, fd, packetTimeout) {
		t.Fatalf("no packet on fd %d within %v", fd, packetTimeout)
	}
	buffer := make([]byte, 4096)
	count, err := unix.Read(fd, buffer)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, io.EOF
	}
	return buffer[:count], nil
}

// requirePacket is recvPacket for packets that must arrive.
func requirePacket(t *testing.T, fd int) []byte {
	t.Helper()
	packet, err := recvPacket(t, fd)
	if err != nil {
		t.Fatalf("reading packet: %v", err)
	}
	return packet
}

// requireNoPacket fails if fd becomes readable within a short window.
func requireNoPacket(t *testing.T, fd int) {
	t.Helper()
	if waitReadable(t, fd, 50*time.Millisecond) {
		packet, err := recvPacket(t, fd)
		t.Fatalf("unexpected packet %x (err %v)", packet, err)
	}
}

func waitReadable(t *testing.T, fd int, timeout time.Duration) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		ready, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		return ready > 0
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// shutdownPeer shuts down the test's end of a connection so that the
// mux's next send to it fails with EPIPE. The descriptor stays open
// until the test's cleanup closes it.
func shutdownPeer(t *testing.T, fd int) {
	t.Helper()
	if err := unix.Shutdown(fd, unix.SHUT_RDWR); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
