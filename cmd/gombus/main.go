package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gombus",
	Short: "MBus link-layer host tool",
	Long: `gombus drives an MBus probe dongle from the host: monitor bus
traffic, send frames, inspect recorded traces, or bridge the bus to an
MQTT broker.

Node identity (prefixes, broadcast subscriptions, receive buffers) and
the probe attachment come from a TOML node file, see --config.`,
	PersistentPreRun: func(*cobra.Command, []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "node.toml", "Node configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
