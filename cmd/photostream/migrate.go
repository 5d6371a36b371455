// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/photostream/photostream/internal/config"
	"github.com/photostream/photostream/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect database schema migrations.`,
		RunE:  runMigrateUp,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE:  runMigrateDown,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			RunE:  runMigrateVersion,
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE:  runMigrateForce,
		},
	)

	return cmd
}

// openMigrator loads configuration and builds a migrator for it.
func openMigrator() (*store.Migrator, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return store.NewMigrator(cfg.Database.URL)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator()
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "migrate up").Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator()
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	cmd.Println("Rolling back migrations...")
	if err := migrator.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "migrate down").Wrap(err)
	}

	cmd.Println("Rollback completed successfully")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator()
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	version, dirty, err := migrator.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}

	if version == 0 && !dirty {
		cmd.Println("No migrations applied")
		return nil
	}
	if dirty {
		cmd.Printf("Version: %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("Version: %d\n", version)
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	target, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("MIGRATION_FAILED").Errorf("invalid version %q", args[0])
	}

	migrator, err := openMigrator()
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Force(target); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "force version").Wrap(err)
	}

	cmd.Printf("Forced schema version to %d\n", target)
	return nil
}
