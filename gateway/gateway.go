// Package gateway fans bus traffic out to an MQTT broker: received
// frames are published per source address, and messages posted to the
// send topics are transmitted on the bus.
package gateway

import (
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"gombus/host/probe"
)

// Sender is the slice of the probe session the gateway drives. It is
// an interface so tests can run without a probe.
type Sender interface {
	Send(buf []byte, priority bool) error
}

// Gateway bridges one bus attachment to a broker.
type Gateway struct {
	prefix string
	opts   *paho.ClientOptions
	client paho.Client
}

// New prepares a gateway for the given broker URL and topic prefix.
func New(brokerURL, topicPrefix string) (*Gateway, error) {
	if brokerURL == "" {
		return nil, fmt.Errorf("gateway: broker URL required")
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("gombus-gateway")
	return &Gateway{
		prefix: strings.TrimSuffix(topicPrefix, "/"),
		opts:   opts,
	}, nil
}

// RecvTopic names the publication topic for frames from addr.
func RecvTopic(prefix string, addr uint32) string {
	return fmt.Sprintf("%s/recv/%08x", strings.TrimSuffix(prefix, "/"), addr)
}

// SendTopic names the subscription topic carrying outbound frames.
// priority selects the priority-arbitration variant.
func SendTopic(prefix string, priority bool) string {
	base := strings.TrimSuffix(prefix, "/") + "/send"
	if priority {
		return base + "/priority"
	}
	return base
}

// Connect dials the broker.
func (g *Gateway) Connect() error {
	g.client = paho.NewClient(g.opts)
	token := g.client.Connect()
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker.
func (g *Gateway) Close() {
	if g.client != nil {
		g.client.Disconnect(250)
	}
}

// Run subscribes the send topics to s and publishes everything
// arriving on recvs until the channel closes. Callers feed it the
// session's Recvs channel.
func (g *Gateway) Run(s Sender, recvs <-chan probe.Recv) error {
	handler := func(priority bool) paho.MessageHandler {
		return func(_ paho.Client, msg paho.Message) {
			// A frame is raw bus bytes: address first. Transmit
			// failures surface on the session's channels, not here.
			_ = s.Send(msg.Payload(), priority)
		}
	}
	if token := g.client.Subscribe(SendTopic(g.prefix, false), 0, handler(false)); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := g.client.Subscribe(SendTopic(g.prefix, true), 0, handler(true)); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	for msg := range recvs {
		token := g.client.Publish(RecvTopic(g.prefix, msg.Addr), 0, false, msg.Bytes)
		token.Wait()
		if err := token.Error(); err != nil {
			return err
		}
	}
	return nil
}
