// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the hiveframe command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hiveframe",
		Short:        "Two player game session service",
		Long:         "HiveFrame hosts two player game sessions with matchmaking and\nhash gated move application over HTTP.",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "path to YAML config file")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
