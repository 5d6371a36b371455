// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	t.Run("registers subcommands", func(t *testing.T) {
		names := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			names[sub.Name()] = true
		}

		for _, want := range []string{"serve", "migrate", "seed", "status"} {
			assert.True(t, names[want], "missing subcommand %q", want)
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		flag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, flag)
		assert.Equal(t, "", flag.DefValue)
	})
}

func TestServeCmdFlags(t *testing.T) {
	cmd := NewServeCmd()

	tests := []struct {
		name     string
		defValue string
	}{
		{"http.addr", ":8000"},
		{"metrics.addr", "127.0.0.1:9100"},
		{"control.addr", "127.0.0.1:9001"},
		{"log.format", "json"},
		{"log.level", "info"},
		{"auto-migrate", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
}
