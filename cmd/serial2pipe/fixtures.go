// cmd/serial2pipe/fixtures.go
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"serial2pipe/internal/config"
	serialdiscovery "serial2pipe/internal/discovery/serial"
	"serial2pipe/internal/fixture"
	"serial2pipe/internal/model"
	"serial2pipe/internal/protocol"
	"serial2pipe/internal/utils"
)

type pipeOptions struct {
	name    string
	network string
	role    string
}

func (o *pipeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.name, "pipe", protocol.DefaultPipeName, "Named pipe address")
	cmd.Flags().StringVar(&o.network, "network", protocol.DefaultPipeNetwork, "Pipe network: pipe, unix or tcp")
	cmd.Flags().StringVar(&o.role, "role", string(model.PipeRoleServer), "Pipe role: client or server")
}

func (o *pipeOptions) endpoint(logger *zap.Logger) (*protocol.PipeEndpoint, error) {
	return protocol.NewPipeEndpoint(&protocol.PipeConfig{
		Name:    o.name,
		Network: o.network,
		Role:    model.PipeRole(o.role),
	}, nil, logger)
}

// fixtureLogger keeps diagnostics on stderr so stdout carries only fixture output
func fixtureLogger() (*zap.Logger, error) {
	return utils.NewLogger(&config.LoggingConfig{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	})
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := fixtureLogger()
			if err != nil {
				return err
			}
			defer utils.CloseLogger(logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			ports, err := serialdiscovery.NewScanner(logger).Scan(ctx)
			if err != nil {
				return fmt.Errorf("failed to list serial ports: %w", err)
			}
			if len(ports) == 0 {
				cmd.Println("No serial ports found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tUSB\tVID\tPID\tSERIAL\tPRODUCT")
			for _, p := range ports {
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\t%s\n", p.Name, p.IsUSB, p.VID, p.PID, p.SerialNumber, p.Product)
			}
			return w.Flush()
		},
	}
}

func newPipeEchoCmd() *cobra.Command {
	var (
		opts pipeOptions
		echo bool
	)

	cmd := &cobra.Command{
		Use:   "pipe-echo",
		Short: "Test peer that prints bytes received on the pipe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := fixtureLogger()
			if err != nil {
				return err
			}
			defer utils.CloseLogger(logger)

			endpoint, err := opts.endpoint(logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return fixture.NewEchoPeer(endpoint, cmd.OutOrStdout(), echo, logger).Run(ctx)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&echo, "echo", false, "Send every received chunk back")
	return cmd
}

func newFrameGenCmd() *cobra.Command {
	var opts pipeOptions

	cmd := &cobra.Command{
		Use:   "frame-gen",
		Short: "Test peer that sends a 13-byte frame for every line on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := fixtureLogger()
			if err != nil {
				return err
			}
			defer utils.CloseLogger(logger)

			endpoint, err := opts.endpoint(logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return fixture.NewFrameGenerator(endpoint, cmd.OutOrStdout(), logger).Run(ctx, cmd.InOrStdin())
		},
	}

	opts.register(cmd)
	return cmd
}
