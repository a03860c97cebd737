// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/mctp-mux/lib/addrmap"
	"github.com/bureau-foundation/mctp-mux/lib/binding"
	"github.com/bureau-foundation/mctp-mux/lib/config"
	"github.com/bureau-foundation/mctp-mux/lib/linklayer"
	"github.com/bureau-foundation/mctp-mux/lib/mctp"
	"github.com/bureau-foundation/mctp-mux/lib/version"
	"github.com/bureau-foundation/mctp-mux/mux"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options is the parsed command line.
type options struct {
	verbose          bool
	localEID         uint8
	configPath       string
	addressMapPath   string
	socketName       string
	statusSocketName string
	showVersion      bool
	showHelp         bool

	// changed records which flags were given explicitly, so that only
	// those override the config file.
	changed map[string]bool

	bindingName   string
	bindingParams []string
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("mctp-mux", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.SetInterspersed(false)
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	flagSet.Uint8VarP(&opts.localEID, "eid", "e", uint8(mctp.DefaultLocalEID), "local endpoint ID")
	flagSet.StringVar(&opts.configPath, "config", "", "YAML config file (default: $"+config.EnvironmentVariable+" if set)")
	flagSet.StringVar(&opts.addressMapPath, "address-map", "", "JSONC file mapping EIDs to SMBus slave addresses")
	flagSet.StringVar(&opts.socketName, "socket", "", "client socket name; a leading / makes it a filesystem path (default: mctp-mux<bus>)")
	flagSet.StringVar(&opts.statusSocketName, "status-socket", "", `status socket name, "-" to disable (default: <socket>-status)`)
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.showHelp, "help", "h", false, "show help")
	return flagSet
}

// parseArgs parses the command line. Flags must precede the binding
// name; everything after it is passed to the binding untouched.
func parseArgs(args []string) (*options, error) {
	opts := &options{changed: make(map[string]bool)}
	flagSet := newFlagSet(opts)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.showHelp = true
			return opts, nil
		}
		return nil, err
	}
	flagSet.Visit(func(flag *pflag.Flag) {
		opts.changed[flag.Name] = true
	})
	if opts.showHelp || opts.showVersion {
		return opts, nil
	}

	positional := flagSet.Args()
	if len(positional) == 0 {
		return nil, fmt.Errorf("missing binding name (available: %s)", strings.Join(binding.Names(), ", "))
	}
	opts.bindingName = positional[0]
	opts.bindingParams = positional[1:]
	return opts, nil
}

// loadConfig reads the config file named by --config or
// MCTP_MUX_CONFIG, falling back to the defaults, then applies
// explicit flags on top.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	switch {
	case opts.configPath != "":
		loaded, err := config.LoadFile(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	case os.Getenv(config.EnvironmentVariable) != "":
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if opts.changed["eid"] {
		cfg.LocalEID = opts.localEID
	}
	if opts.changed["address-map"] {
		cfg.AddressMapFile = opts.addressMapPath
	}
	if opts.changed["socket"] {
		cfg.SocketName = opts.socketName
	}
	if opts.changed["status-socket"] {
		cfg.StatusSocketName = opts.statusSocketName
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// daemonConfig assembles everything the daemon needs except the
// engine, which only exists in libmctp builds.
func daemonConfig(opts *options, cfg *config.Config, logger *slog.Logger) (mux.Config, error) {
	bound, err := binding.New(opts.bindingName, binding.Paths{DevRoot: cfg.DevRoot, SysfsRoot: cfg.SysfsRoot})
	if err != nil {
		return mux.Config{}, err
	}

	var addresses map[mctp.EID]uint8
	if cfg.AddressMapFile != "" {
		addresses, err = addrmap.ReadFile(cfg.AddressMapFile)
		if err != nil {
			return mux.Config{}, err
		}
	}

	bus := ""
	if len(opts.bindingParams) > 0 {
		bus = opts.bindingParams[0]
	}
	socketName, statusSocketName := cfg.SocketNames(bus)

	return mux.Config{
		Binding:          bound,
		BindingParams:    opts.bindingParams,
		LocalEID:         mctp.EID(cfg.LocalEID),
		SocketName:       socketName,
		StatusSocketName: statusSocketName,
		Addresses:        addresses,
		DefaultAddress:   cfg.DefaultSlaveAddress,
		Retry:            &mux.RetryPolicy{Retries: cfg.Retry.Retries, Delay: cfg.Retry.Delay},
		PollTimeout:      cfg.PollTimeout,
		JoinInterval:     cfg.JoinInterval,
		Logger:           logger,
	}, nil
}

func run(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.showHelp {
		printHelp()
		return nil
	}
	if opts.showVersion {
		build := version.Current()
		build.LinkLayer = "none (built without libmctp)"
		if linklayer.Available() {
			build.LinkLayer = "libmctp"
		}
		fmt.Printf("mctp-mux %s\n", build.Detail())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()

	logger := newLogger(level)
	slog.SetDefault(logger)

	muxConfig, err := daemonConfig(opts, cfg, logger)
	if err != nil {
		return err
	}

	engine, err := linklayer.New()
	if err != nil {
		return err
	}
	defer engine.Close()
	muxConfig.Engine = engine

	daemon, err := mux.New(muxConfig)
	if err != nil {
		return err
	}

	logger.Info("starting mctp-mux",
		"version", version.Info(),
		"binding", opts.bindingName,
		"local_eid", cfg.LocalEID,
		"socket", muxConfig.SocketName,
		"status_socket", muxConfig.StatusSocketName,
		"mapped_endpoints", len(muxConfig.Addresses),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.Run(ctx)
}

// newLogger writes text logs when stderr is a terminal and JSON
// otherwise, which is the normal case under a service manager.
func newLogger(level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

func printHelp() {
	opts := &options{}
	flagSet := newFlagSet(opts)

	var bindings strings.Builder
	for _, name := range binding.Names() {
		fmt.Fprintf(&bindings, "  %-8s %s\n", name, binding.Parameters(name))
	}

	fmt.Fprintf(os.Stderr, `mctp-mux: share one MCTP bus binding between local processes.

Usage:
  mctp-mux [flags] <binding> [binding parameters...]

Bindings:
%s
Flags:
%s`, bindings.String(), flagSet.FlagUsages())
}
