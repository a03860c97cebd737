// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for mctp-mux.
//
// Configuration is loaded from a single file named by either the
// MCTP_MUX_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. A daemon
// started without a file runs on [Default], and command-line flags
// override whichever values were loaded.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No environment
// variable overrides a config value directly.
//
// Key exports:
//
//   - [Config] -- the daemon configuration
//   - [Default] -- the built-in defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every invalid field at once
//
// This package depends on no other mctp-mux packages.
package config
