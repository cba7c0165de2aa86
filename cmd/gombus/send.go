package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gombus/core"
)

var (
	sendPriority bool
	sendTimeout  time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <hex-bytes>",
	Short: "Transmit one frame on the bus",
	Long: `Sends raw bus bytes through the probe. The first byte(s) are the
destination address, e.g. "30ABCD" short-addresses prefix 0x3 with two
payload bytes. The command waits for the transmission outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().BoolVarP(&sendPriority, "priority", "p", false, "Use priority arbitration")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "Give up after this long")
	rootCmd.AddCommand(sendCmd)
}

func runSend(_ *cobra.Command, args []string) error {
	payload, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
	if err != nil {
		return fmt.Errorf("frame bytes must be hex: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("frame needs at least an address byte")
	}

	s, _, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run() }()

	if err := s.Send(payload, sendPriority); err != nil {
		return err
	}

	select {
	case res := <-s.Sends:
		verdict := "ACK"
		if res.NAK {
			verdict = "NAK"
		}
		log.Info().Int("bytes", res.Bytes).Stringer("error", res.Err).
			Str("verdict", verdict).Msg("send complete")
		if res.Err != core.NoError {
			return fmt.Errorf("send failed: %s", res.Err)
		}
		return nil
	case e := <-s.Errors:
		return fmt.Errorf("bus error: %s", e)
	case err := <-runErr:
		return fmt.Errorf("probe link: %w", err)
	case <-time.After(sendTimeout):
		return fmt.Errorf("no completion within %s", sendTimeout)
	}
}
