// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/mctp-mux/lib/binding"
	"github.com/bureau-foundation/mctp-mux/lib/clock"
	"github.com/bureau-foundation/mctp-mux/lib/linklayer"
	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// Event loop defaults.
const (
	DefaultPollTimeout  = 200 * time.Millisecond
	DefaultJoinInterval = 2 * time.Second
)

// State is the daemon lifecycle state.
type State int32

const (
	// StateUninitialized: the binding and listener are closed and
	// about to be opened.
	StateUninitialized State = iota

	// StateJoinWait: initialization failed; the daemon is waiting
	// (after asking the bus to hot-join, when supported) before the
	// next attempt.
	StateJoinWait

	// StateRunning: serving clients.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateJoinWait:
		return "join-wait"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config configures a Daemon. Binding, BindingParams, Engine, and
// SocketName are required.
type Config struct {
	Binding       binding.Binding
	BindingParams []string
	Engine        linklayer.Engine

	LocalEID mctp.EID

	// SocketName is the client socket: abstract namespace unless it
	// starts with "/".
	SocketName string

	// StatusSocketName serves one Status per connection. Empty
	// disables the status socket.
	StatusSocketName string

	// Addresses seeds the EID-to-bus-address map. DefaultAddress
	// answers for every EID not in it. Zero means DefaultSlaveAddress;
	// 0x00 is the I2C general call address and never a valid target.
	Addresses      map[mctp.EID]uint8
	DefaultAddress uint8

	// Retry nil means DefaultRetryPolicy. A non-nil policy is used as
	// given, so &RetryPolicy{} makes one attempt per message.
	Retry *RetryPolicy

	// PollTimeout and JoinInterval fall back to the package defaults
	// when zero.
	PollTimeout  time.Duration
	JoinInterval time.Duration

	// Clock drives retry delays and the join interval. Nil means the
	// real clock. The poll timeout is always wall-clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Daemon is the mux event loop.
type Daemon struct {
	binding       binding.Binding
	bindingParams []string
	engine        linklayer.Engine
	local         mctp.EID

	socketName       string
	statusSocketName string

	pollTimeout  time.Duration
	joinInterval time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	registry *Registry
	clients  *ClientTable
	router   *Router

	state           atomic.Int32
	initializations uint64

	listener       *Listener
	statusListener *Listener

	// watch is the poll set: the binding input, the listener, the
	// status listener if any, then one entry per client in watched.
	watch        []unix.PollFd
	watched      []*Client
	watchChanged bool

	inbound InboundBuffer
}

// New validates config and builds a daemon. Nothing is opened until
// Run.
func New(config Config) (*Daemon, error) {
	var errs []error
	if config.Binding == nil {
		errs = append(errs, errors.New("binding is required"))
	}
	if config.Engine == nil {
		errs = append(errs, errors.New("engine is required"))
	}
	if config.SocketName == "" {
		errs = append(errs, errors.New("socket name is required"))
	}
	if config.Retry != nil && (config.Retry.Retries < 0 || config.Retry.Delay < 0) {
		errs = append(errs, fmt.Errorf("invalid retry policy %+v", *config.Retry))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	retry := DefaultRetryPolicy()
	if config.Retry != nil {
		retry = *config.Retry
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
	if config.JoinInterval <= 0 {
		config.JoinInterval = DefaultJoinInterval
	}
	if config.DefaultAddress == 0 {
		config.DefaultAddress = DefaultSlaveAddress
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	d := &Daemon{
		binding:          config.Binding,
		bindingParams:    config.BindingParams,
		engine:           config.Engine,
		local:            config.LocalEID,
		socketName:       config.SocketName,
		statusSocketName: config.StatusSocketName,
		pollTimeout:      config.PollTimeout,
		joinInterval:     config.JoinInterval,
		clock:            config.Clock,
		logger:           config.Logger,
		registry:         NewRegistry(config.DefaultAddress, config.Addresses),
	}
	d.clients = NewClientTable(d.registry, d.logger)
	d.router = NewRouter(RouterConfig{
		LocalEID: d.local,
		Clients:  d.clients,
		Registry: d.registry,
		Engine:   d.engine,
		Binding:  d.binding,
		Retry:    retry,
		Clock:    d.clock,
		Logger:   d.logger,
	})
	return d, nil
}

// State returns the current lifecycle state. Safe to call from any
// goroutine.
func (d *Daemon) State() State { return State(d.state.Load()) }

func (d *Daemon) setState(state State) {
	previous := State(d.state.Swap(int32(state)))
	if previous != state {
		d.logger.Debug("state change", "from", previous.String(), "to", state.String())
	}
}

// Registry exposes the tag and address registry. Only the goroutine
// running Run may use it once Run has started.
func (d *Daemon) Registry() *Registry { return d.registry }

// Run drives the daemon until ctx is cancelled, then closes every
// client, the sockets, and the binding, and returns nil. Binding and
// socket failures never end Run: they send the daemon back through
// JoinWait and Uninitialized.
func (d *Daemon) Run(ctx context.Context) error {
	d.engine.SetReceiver(d.router.RouteInbound)
	defer d.shutdown()

	d.logger.Info("mux starting",
		"binding", d.binding.Name(),
		"params", d.bindingParams,
		"local_eid", d.local,
		"socket", d.socketName,
	)

	for ctx.Err() == nil {
		switch d.State() {
		case StateUninitialized:
			if err := d.initialize(); err != nil {
				d.logger.Warn("initialization failed", "binding", d.binding.Name(), "error", err)
				d.setState(StateJoinWait)
				continue
			}
			d.initializations++
			d.logger.Info("mux running",
				"binding", d.binding.Name(),
				"socket", d.socketName,
				"initializations", d.initializations,
			)
			d.setState(StateRunning)

		case StateJoinWait:
			if joiner, ok := d.binding.(binding.HotJoiner); ok {
				if err := joiner.HotJoin(); err != nil {
					d.logger.Warn("hot-join failed", "binding", d.binding.Name(), "error", err)
				}
			}
			select {
			case <-ctx.Done():
			case <-d.clock.After(d.joinInterval):
			}
			d.setState(StateUninitialized)

		case StateRunning:
			if err := d.serve(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("event loop failed, reinitializing", "error", err)
				d.release()
				d.setState(StateUninitialized)
			}
		}
	}

	d.logger.Info("mux stopping")
	return nil
}

// initialize opens the binding and the listening sockets. On failure
// everything opened so far is released.
func (d *Daemon) initialize() error {
	if err := d.binding.Init(d.engine, d.local, d.bindingParams); err != nil {
		return fmt.Errorf("initializing %s binding: %w", d.binding.Name(), err)
	}

	listener, err := Listen(d.socketName)
	if err != nil {
		d.release()
		return fmt.Errorf("opening client socket: %w", err)
	}
	d.listener = listener

	if d.statusSocketName != "" {
		statusListener, err := Listen(d.statusSocketName)
		if err != nil {
			d.release()
			return fmt.Errorf("opening status socket: %w", err)
		}
		d.statusListener = statusListener
	}

	d.watchChanged = true
	return nil
}

// release closes the binding and listeners. Clients are kept.
func (d *Daemon) release() {
	if d.listener != nil {
		d.listener.Close()
		d.listener = nil
	}
	if d.statusListener != nil {
		d.statusListener.Close()
		d.statusListener = nil
	}
	if err := d.binding.Close(); err != nil {
		d.logger.Warn("closing binding", "binding", d.binding.Name(), "error", err)
	}
	d.watchChanged = true
}

func (d *Daemon) shutdown() {
	if err := d.clients.Close(); err != nil {
		d.logger.Warn("closing clients", "error", err)
	}
	d.release()
	d.setState(StateUninitialized)
}

// Fixed poll set slots.
const (
	watchBinding = iota
	watchListener
	watchStatus
)

func (d *Daemon) rebuildWatchList() {
	d.watch = d.watch[:0]
	d.watch = append(d.watch,
		unix.PollFd{Fd: int32(d.binding.InputFD()), Events: d.binding.InputEvents()},
		unix.PollFd{Fd: int32(d.listener.FD()), Events: unix.POLLIN},
	)
	// A negative descriptor is ignored by poll, which keeps the client
	// entries at a fixed offset.
	statusFD := -1
	if d.statusListener != nil {
		statusFD = d.statusListener.FD()
	}
	d.watch = append(d.watch, unix.PollFd{Fd: int32(statusFD), Events: unix.POLLIN})

	d.watched = d.clients.Clients()
	for _, client := range d.watched {
		d.watch = append(d.watch, unix.PollFd{Fd: int32(client.conn.FD()), Events: unix.POLLIN})
	}
	d.watchChanged = false
}

// serve runs poll iterations until ctx is cancelled or poll fails.
func (d *Daemon) serve(ctx context.Context) error {
	timeout := int(d.pollTimeout / time.Millisecond)
	for ctx.Err() == nil {
		if d.watchChanged {
			d.rebuildWatchList()
		}

		ready, err := unix.Poll(d.watch, timeout)
		if err != nil && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("poll: %w", err)
		}
		if ready > 0 {
			d.dispatch()
		}

		if removed := d.clients.Sweep(); removed > 0 {
			d.watchChanged = true
		}
	}
	return ctx.Err()
}

// dispatch handles every descriptor poll reported ready.
func (d *Daemon) dispatch() {
	if d.watch[watchBinding].Revents != 0 {
		if err := d.binding.Process(); err != nil {
			d.logger.Warn("processing binding input", "binding", d.binding.Name(), "error", err)
		}
	}

	for index, client := range d.watched {
		if d.watch[watchStatus+1+index].Revents == 0 || client.inactive {
			continue
		}
		d.serviceClient(client)
	}

	if d.watch[watchListener].Revents != 0 {
		d.acceptClient()
	}
	if d.watch[watchStatus].Revents != 0 {
		d.serveStatus()
	}
}

// serviceClient reads from a ready client: its registration byte if it
// has not registered yet, or one message otherwise.
func (d *Daemon) serviceClient(client *Client) {
	if !client.registered {
		typeByte, err := client.conn.ReadType()
		if errors.Is(err, unix.EAGAIN) {
			return
		}
		if err != nil {
			d.logger.Debug("client closed before registering", "client", client.id, "error", err)
			d.clients.MarkInactive(client)
			return
		}
		if err := d.clients.Register(client, typeByte); err != nil {
			d.router.counters.RejectedRegistrations++
			d.logger.Warn("registration refused", "client", client.id, "error", err)
		}
		return
	}

	message, err := client.conn.ReadMessage(&d.inbound)
	if errors.Is(err, unix.EAGAIN) {
		return
	}
	if err != nil {
		d.logger.Debug("client read failed", "client", client.id, "error", err)
		d.clients.MarkInactive(client)
		return
	}
	d.router.RouteOutbound(client, mctp.EID(message[0]), message[1:])
}

func (d *Daemon) acceptClient() {
	conn, err := d.listener.Accept()
	if err != nil {
		if !errors.Is(err, unix.EAGAIN) {
			d.logger.Warn("accepting client", "error", err)
		}
		return
	}
	d.clients.Accept(conn)
	d.watchChanged = true
}

// serveStatus answers one status connection and closes it.
func (d *Daemon) serveStatus() {
	conn, err := d.statusListener.Accept()
	if err != nil {
		if !errors.Is(err, unix.EAGAIN) {
			d.logger.Warn("accepting status connection", "error", err)
		}
		return
	}
	defer conn.Close()

	data, err := EncodeStatus(d.snapshot())
	if err != nil {
		d.logger.Error("encoding status", "error", err)
		return
	}
	if _, err := unix.SendmsgBuffers(conn.FD(), [][]byte{data}, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT); err != nil {
		d.logger.Debug("sending status", "error", err)
	}
}
