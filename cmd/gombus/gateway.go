package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gombus/gateway"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Bridge the bus to an MQTT broker",
	Long: `Publishes every received frame to <prefix>/recv/<addr> and
transmits frames posted to <prefix>/send (or <prefix>/send/priority).
Broker URL and topic prefix come from the [mqtt] section of the node
file.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(*cobra.Command, []string) error {
	s, node, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if node.MQTT.BrokerURL == "" {
		return fmt.Errorf("node file has no mqtt broker_url")
	}
	gw, err := gateway.New(node.MQTT.BrokerURL, node.MQTT.TopicPrefix)
	if err != nil {
		return err
	}
	if err := gw.Connect(); err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}
	defer gw.Close()

	log.Info().Str("broker", node.MQTT.BrokerURL).
		Str("prefix", node.MQTT.TopicPrefix).Msg("gateway up")

	go func() {
		for e := range s.Errors {
			log.Warn().Stringer("error", e).Msg("bus error")
		}
	}()
	go func() { _ = s.Run() }()

	return gw.Run(s, s.Recvs)
}
