// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/photostream/photostream/internal/config"
	"github.com/photostream/photostream/internal/control"
)

// ProcessStatus holds the status information for the server process.
type ProcessStatus struct {
	Component string `json:"component"`
	Addr      string `json:"addr"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running PhotoStream server",
		Long:  `Probe the control endpoint of a running server and report its health.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, statusCfg *statusConfig) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	status := queryProcessStatus(cmd, cfg.Control.Addr, "api")

	if statusCfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(status))
	return nil
}

// queryProcessStatus probes the control endpoint for the component.
func queryProcessStatus(cmd *cobra.Command, addr, component string) ProcessStatus {
	status := ProcessStatus{
		Component: component,
		Addr:      addr,
	}

	serving, err := control.Check(cmd.Context(), addr, component)
	if err != nil {
		status.Status = "unreachable"
		status.Error = err.Error()
		return status
	}

	switch serving {
	case healthpb.HealthCheckResponse_SERVING:
		status.Status = "serving"
	case healthpb.HealthCheckResponse_NOT_SERVING:
		status.Status = "not serving"
	default:
		status.Status = "unknown"
	}
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ProcessStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "COMPONENT\tADDR\tSTATUS")
	_, _ = fmt.Fprintln(w, "---------\t----\t------")

	detail := status.Status
	if status.Error != "" {
		detail = fmt.Sprintf("%s (%s)", status.Status, status.Error)
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", status.Component, status.Addr, detail)

	_ = w.Flush()
	return string(buf)
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
