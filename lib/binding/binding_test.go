// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binding

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/bureau-foundation/mctp-mux/lib/mctp"
)

// staticResolver resolves every EID from a fixed table.
type staticResolver map[mctp.EID]uint8

func (r staticResolver) ResolveAddress(eid mctp.EID) uint8 {
	if address, ok := r[eid]; ok {
		return address
	}
	return 0x64
}

// writeFile creates path (and its parents) under root with content.
func writeFile(t *testing.T, root, path string, content []byte) string {
	t.Helper()
	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", full, err)
	}
	return full
}

func testPaths(t *testing.T) Paths {
	t.Helper()
	root := t.TempDir()
	return Paths{
		DevRoot:   filepath.Join(root, "dev"),
		SysfsRoot: filepath.Join(root, "sys"),
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"smbus", "asti3c"} {
		binding, err := New(name, DefaultPaths())
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if binding.Name() != name {
			t.Errorf("New(%q).Name() = %q", name, binding.Name())
		}
		if binding.InputFD() != -1 || binding.OutputFD() != -1 {
			t.Errorf("%s: uninitialized binding has descriptors %d/%d", name, binding.InputFD(), binding.OutputFD())
		}
		if err := binding.Close(); err != nil {
			t.Errorf("%s: Close on uninitialized binding: %v", name, err)
		}
	}

	if _, err := New("pcie-vdm", DefaultPaths()); !errors.Is(err, ErrUnknownBinding) {
		t.Fatalf("New(unknown) err = %v, want ErrUnknownBinding", err)
	}
}

func TestNamesAndParameters(t *testing.T) {
	if got := Names(); !slices.Equal(got, []string{"smbus", "asti3c"}) {
		t.Errorf("Names() = %v", got)
	}
	if got := Parameters("smbus"); got != "<bus> <bmc_addr_hex>" {
		t.Errorf("Parameters(smbus) = %q", got)
	}
	if got := Parameters("nope"); got != "" {
		t.Errorf("Parameters(nope) = %q", got)
	}
}

func TestASTI3CIsHotJoiner(t *testing.T) {
	var binding Binding = NewASTI3C(DefaultPaths())
	if _, ok := binding.(HotJoiner); !ok {
		t.Error("asti3c does not implement HotJoiner")
	}
	binding = NewSMBus(DefaultPaths())
	if _, ok := binding.(HotJoiner); ok {
		t.Error("smbus unexpectedly implements HotJoiner")
	}
}
