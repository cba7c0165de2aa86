// Package config loads host-side node identity files.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"gombus/core"
)

// Node is the TOML-backed identity and attachment description for one
// bus node driven from the host.
type Node struct {
	Name string `toml:"name"`

	ShortPrefix uint8  `toml:"short_prefix"`
	FullPrefix  uint32 `toml:"full_prefix"`
	// BroadcastChannels lists subscribed channel numbers (0..15).
	BroadcastChannels []int `toml:"broadcast_channels"`

	Promiscuous              bool `toml:"promiscuous"`
	ParticipateInEnumeration bool `toml:"participate_in_enumeration"`

	// SlotCapacities sizes the receive buffer pool, one entry per
	// slot.
	SlotCapacities []int `toml:"recv_slot_capacities"`

	Probe ProbeConfig `toml:"probe"`
	MQTT  MQTTConfig  `toml:"mqtt"`
}

// ProbeConfig describes the serial probe attachment.
type ProbeConfig struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

// MQTTConfig describes the gateway broker connection.
type MQTTConfig struct {
	BrokerURL   string `toml:"broker_url"`
	TopicPrefix string `toml:"topic_prefix"`
}

// Load reads a node file, applies defaults and validates it.
func Load(path string) (*Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node config: %w", err)
	}
	var n Node
	if err := toml.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("parse node config: %w", err)
	}
	n.applyDefaults()
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

func (n *Node) applyDefaults() {
	if n.Name == "" {
		n.Name = "gombus-node"
	}
	if len(n.SlotCapacities) == 0 {
		n.SlotCapacities = []int{64, 64}
	}
	if n.Probe.Device == "" {
		n.Probe.Device = "/dev/ttyACM0"
	}
	if n.Probe.Baud == 0 {
		n.Probe.Baud = 250000
	}
	if n.MQTT.TopicPrefix == "" {
		n.MQTT.TopicPrefix = "gombus"
	}
}

// Validate checks field ranges.
func (n *Node) Validate() error {
	if n.ShortPrefix > 0x0F {
		return fmt.Errorf("short_prefix %#x exceeds 4 bits", n.ShortPrefix)
	}
	if n.FullPrefix > 0xFFFFFF {
		return fmt.Errorf("full_prefix %#x exceeds 24 bits", n.FullPrefix)
	}
	for _, c := range n.BroadcastChannels {
		if c < 0 || c > 15 {
			return fmt.Errorf("broadcast channel %d out of range 0..15", c)
		}
	}
	for i, size := range n.SlotCapacities {
		if size <= 0 {
			return fmt.Errorf("recv slot %d capacity %d must be positive", i, size)
		}
	}
	return nil
}

// ChannelMask folds the channel list into the engine's bit mask.
func (n *Node) ChannelMask() uint16 {
	var mask uint16
	for _, c := range n.BroadcastChannels {
		mask |= 1 << uint(c)
	}
	return mask
}

// EngineConfig builds a core configuration from the node description.
// Callbacks are left for the caller to fill in.
func (n *Node) EngineConfig() *core.Config {
	cfg := &core.Config{
		ShortPrefix:              n.ShortPrefix,
		FullPrefix:               n.FullPrefix,
		BroadcastChannels:        n.ChannelMask(),
		PromiscuousMode:          n.Promiscuous,
		ParticipateInEnumeration: n.ParticipateInEnumeration,
	}
	for _, size := range n.SlotCapacities {
		cfg.Slots = append(cfg.Slots, core.RecvSlot{Buf: make([]byte, size), Len: int32(size)})
	}
	return cfg
}
