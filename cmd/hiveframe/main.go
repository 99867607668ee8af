// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

// Command hiveframe runs the HiveFrame game session service.
package main

import (
	"os"
)

// Populated at build time via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
