// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package addrmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

type file struct {
	Addresses map[string]json.RawMessage `json:"addresses"`
}

// Parse strips JSONC comments and trailing commas from data and
// decodes the address map. Every malformed entry is reported.
func Parse(data []byte) (map[mctp.EID]uint8, error) {
	var content file
	if err := json.Unmarshal(jsonc.ToJSON(data), &content); err != nil {
		return nil, fmt.Errorf("parsing address map: %w", err)
	}

	addresses := make(map[mctp.EID]uint8, len(content.Addresses))
	var errs []error
	for key, raw := range content.Addresses {
		eid, err := strconv.ParseUint(key, 0, 8)
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %q: not an 8-bit integer", key))
			continue
		}
		if mctp.EID(eid) == mctp.EIDNull || mctp.EID(eid) == mctp.EIDBroadcast {
			errs = append(errs, fmt.Errorf("endpoint %q: reserved EID", key))
			continue
		}
		address, err := parseAddress(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %q: %w", key, err))
			continue
		}
		addresses[mctp.EID(eid)] = address
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("parsing address map: %w", err)
	}
	return addresses, nil
}

// parseAddress accepts a JSON number or a string holding any Go
// integer literal.
func parseAddress(raw json.RawMessage) (uint8, error) {
	text := string(raw)
	base := 10
	var quoted string
	if err := json.Unmarshal(raw, &quoted); err == nil {
		text = quoted
		base = 0
	}
	address, err := strconv.ParseUint(text, base, 7)
	if err != nil {
		return 0, fmt.Errorf("address %s is not a 7-bit integer", raw)
	}
	return uint8(address), nil
}

// ReadFile reads and parses the address map at path.
func ReadFile(path string) (map[mctp.EID]uint8, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading address map: %w", err)
	}
	addresses, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return addresses, nil
}
