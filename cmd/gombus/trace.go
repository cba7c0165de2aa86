package main

import (
	"os"

	"github.com/spf13/cobra"

	"gombus/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Pretty-print a recorded capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		t, err := trace.Load(data)
		if err != nil {
			return err
		}
		return t.Format(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
}
