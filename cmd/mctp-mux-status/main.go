// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/mctp-mux/lib/codec"
	"github.com/bureau-foundation/mctp-mux/lib/muxclient"
	"github.com/bureau-foundation/mctp-mux/lib/version"
	"github.com/bureau-foundation/mctp-mux/mux"
)

const (
	defaultStatusSocket = "mctp-mux1-status"
	queryTimeout        = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var (
		socketName  string
		jsonOutput  bool
		rawOutput   bool
		showVersion bool
		showHelp    bool
	)

	flagSet := pflag.NewFlagSet("mctp-mux-status", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&socketName, "socket", "s", defaultStatusSocket, "status socket name; a leading / makes it a filesystem path")
	flagSet.BoolVar(&jsonOutput, "json", false, "print the status as JSON")
	flagSet.BoolVar(&rawOutput, "raw", false, "print the CBOR response in diagnostic notation")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&showHelp, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			showHelp = true
		} else {
			return err
		}
	}
	if showHelp {
		fmt.Fprintf(out, "mctp-mux-status: print a running mctp-mux's state.\n\nUsage:\n  mctp-mux-status [flags]\n\nFlags:\n%s", flagSet.FlagUsages())
		return nil
	}
	if showVersion {
		fmt.Fprintf(out, "mctp-mux-status %s\n", version.Info())
		return nil
	}
	if jsonOutput && rawOutput {
		return errors.New("--json and --raw are mutually exclusive")
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", flagSet.Arg(0))
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if rawOutput {
		data, err := muxclient.QueryStatusRaw(ctx, socketName)
		if err != nil {
			return err
		}
		diagnostic, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("decoding status: %w", err)
		}
		fmt.Fprintln(out, diagnostic)
		return nil
	}

	status, err := muxclient.QueryStatus(ctx, socketName)
	if err != nil {
		return err
	}
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	}
	return printStatus(out, status)
}

// printStatus writes the human-readable report.
func printStatus(out io.Writer, status mux.Status) error {
	fmt.Fprintf(out, "state:      %s\n", status.State)
	fmt.Fprintf(out, "binding:    %s\n", status.Binding)
	fmt.Fprintf(out, "local EID:  0x%02x\n", status.LocalEID)
	fmt.Fprintf(out, "socket:     %s\n", status.SocketName)
	fmt.Fprintf(out, "bus joins:  %d\n", status.Initializations)

	fmt.Fprintf(out, "\nclients (%d):\n", len(status.Clients))
	tw := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	if len(status.Clients) > 0 {
		fmt.Fprintf(tw, "  ID\tTYPE\tTAG\n")
		for _, client := range status.Clients {
			if !client.Registered {
				fmt.Fprintf(tw, "  %d\t(registering)\t-\n", client.ID)
				continue
			}
			fmt.Fprintf(tw, "  %d\t%s\t%d\n", client.ID, client.MessageType, client.Tag)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counters := status.Counters
	fmt.Fprintf(out, "\ncounters:\n")
	tw = tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	for _, row := range []struct {
		name  string
		value uint64
	}{
		{"inbound", counters.Inbound},
		{"delivered", counters.Delivered},
		{"outbound", counters.Outbound},
		{"loopback", counters.Loopback},
		{"retries", counters.Retries},
		{"transmit failures", counters.TransmitFailures},
		{"synthetic responses", counters.SyntheticResponses},
		{"dropped", counters.Dropped},
		{"delivery failures", counters.DeliveryFailures},
		{"rejected registrations", counters.RejectedRegistrations},
	} {
		fmt.Fprintf(tw, "  %s\t%d\n", row.name, row.value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(status.Addresses) == 0 {
		return nil
	}
	endpoints := make([]int, 0, len(status.Addresses))
	for eid := range status.Addresses {
		endpoints = append(endpoints, int(eid))
	}
	sort.Ints(endpoints)

	fmt.Fprintf(out, "\naddresses:\n")
	tw = tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "  EID\tADDRESS\n")
	for _, eid := range endpoints {
		fmt.Fprintf(tw, "  0x%02x\t0x%02x\n", eid, status.Addresses[uint8(eid)])
	}
	return tw.Flush()
}
