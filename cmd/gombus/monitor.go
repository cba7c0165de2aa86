package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"gombus/host/config"
	"gombus/host/probe"
)

var traceOut string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch bus traffic through the probe",
	Long: `Attaches to the probe and feeds every bus edge into a local
protocol engine. Messages addressed to this node (or its broadcast
subscriptions) are logged; an optional CBOR trace of the whole capture
can be written for later inspection with "gombus trace".`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&traceOut, "trace", "", "Write a CBOR capture to this file")
	rootCmd.AddCommand(monitorCmd)
}

func openSession() (*probe.Session, *config.Node, error) {
	node, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	port, err := probe.Open(&probe.PortConfig{
		Device: node.Probe.Device,
		Baud:   node.Probe.Baud,
	})
	if err != nil {
		return nil, nil, err
	}
	s, err := probe.NewSession(port, node.EngineConfig())
	if err != nil {
		port.Close()
		return nil, nil, err
	}
	return s, node, nil
}

func runMonitor(*cobra.Command, []string) error {
	s, node, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	log.Info().Str("node", node.Name).Str("device", node.Probe.Device).
		Msg("monitoring bus")

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	for {
		select {
		case msg := <-s.Recvs:
			log.Info().Uint32("addr", msg.Addr).Int("len", len(msg.Bytes)).
				Hex("data", msg.Bytes).Msg("recv")
		case e := <-s.Errors:
			log.Warn().Stringer("error", e).Msg("bus error")
		case err := <-runErr:
			if err != nil {
				return err
			}
			return writeTrace(s)
		case <-sig:
			log.Info().Msg("stopping capture")
			s.Close()
			<-s.Done()
			return writeTrace(s)
		}
	}
}

func writeTrace(s *probe.Session) error {
	if traceOut == "" {
		return nil
	}
	data, err := s.Recorder().Trace().Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(traceOut, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("file", traceOut).Int("events", s.Recorder().Len()).
		Msg("trace written")
	return nil
}
