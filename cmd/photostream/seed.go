// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/photostream/photostream/internal/auth"
	authpg "github.com/photostream/photostream/internal/auth/postgres"
	"github.com/photostream/photostream/internal/config"
	"github.com/photostream/photostream/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedFile is the YAML layout for bootstrap accounts.
type seedFile struct {
	Admins []seedAccount `yaml:"admins"`
}

type seedAccount struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bootstrap admin accounts",
		Long: `Creates confirmed admin accounts from a YAML file.
This command is idempotent - accounts that already exist are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "", "seed file path (required)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, seedCfg *seedConfig) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	data, err := os.ReadFile(seedCfg.file)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "read seed file").Wrap(err)
	}

	var seeds seedFile
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return oops.Code("SEED_FAILED").With("operation", "parse seed file").Wrap(err)
	}
	if len(seeds.Admins) == 0 {
		return oops.Code("SEED_FAILED").Errorf("seed file lists no admin accounts")
	}

	// Add timeout to prevent indefinite hangs
	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, cfg.Database.URL, nil)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	if err := migrateUp(cfg.Database.URL); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	users := authpg.NewUserRepository(pool)
	hasher := auth.NewArgon2idHasher()

	created := 0
	for _, account := range seeds.Admins {
		hash, err := hasher.Hash(account.Password)
		if err != nil {
			return oops.Code("SEED_FAILED").
				With("operation", "hash password").
				With("email", account.Email).
				Wrap(err)
		}

		user, err := auth.NewUser(account.Email, hash)
		if err != nil {
			return oops.Code("SEED_FAILED").With("email", account.Email).Wrap(err)
		}
		user.Confirmed = true
		user.Admin = true

		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, auth.ErrDuplicateEmail) {
				cmd.Printf("Account %s already exists, skipping\n", account.Email)
				continue
			}
			return oops.Code("SEED_FAILED").
				With("operation", "create admin account").
				With("email", account.Email).
				Wrap(err)
		}

		created++
		cmd.Printf("Created admin account: %s\n", account.Email)
		slog.Info("created admin account", "id", user.ID, "email", user.Email)
	}

	cmd.Printf("Seeding complete: %d account(s) created\n", created)
	return nil
}
