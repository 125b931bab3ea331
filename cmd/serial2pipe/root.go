// cmd/serial2pipe/root.go
package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// relayFlags maps run flags onto configuration keys
var relayFlags = map[string]string{
	"serial-port":  "relay.serial_port",
	"baud-rate":    "relay.baud_rate",
	"pipe":         "relay.named_pipe",
	"pipe-role":    "relay.pipe_role",
	"pipe-network": "relay.pipe_network",
	"http":         "http.enabled",
	"log-level":    "logging.level",
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "serial2pipe",
		Short: "Relay bytes between a serial port and a named pipe",
		Long: `serial2pipe - bidirectional relay between a serial device and a named pipe.

Without a subcommand the relay service is started.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd, v, configFile)
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	addRelayFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd, v, configFile)
		},
	}
	addRelayFlags(runCmd)

	rootCmd.AddCommand(runCmd, newPortsCmd(), newPipeEchoCmd(), newFrameGenCmd())
	return rootCmd
}

func addRelayFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("serial-port", "", "Serial device, e.g. COM1 or /dev/ttyUSB0")
	flags.Int("baud-rate", 0, "Serial baud rate")
	flags.String("pipe", "", "Named pipe address")
	flags.String("pipe-role", "", "Pipe role: client or server")
	flags.String("pipe-network", "", "Pipe network: pipe, unix or tcp")
	flags.Bool("http", false, "Enable the status API")
	flags.String("log-level", "", "Log level")
}

// bindRelayFlags binds the flags the user actually set, so unset flags
// never shadow the file or the environment
func bindRelayFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range relayFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}
