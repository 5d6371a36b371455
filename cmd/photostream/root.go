// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the PhotoStream CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photostream",
		Short: "PhotoStream - photo sharing backend",
		Long: `PhotoStream is a photo sharing backend. This binary serves the
REST API and provides database migration, seeding, and status tooling.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
