package probe

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is the byte stream to the probe dongle. The indirection keeps
// Session testable and leaves room for transports other than a local
// serial device.
type Port interface {
	io.ReadWriteCloser
}

// PortConfig holds the serial attachment parameters.
type PortConfig struct {
	// Device path (e.g. "/dev/ttyACM0", "COM3").
	Device string
	// Baud rate; ignored by USB CDC probes.
	Baud int
	// ReadTimeout in milliseconds, 0 for blocking reads.
	ReadTimeout int
}

// DefaultPortConfig returns the standard probe settings.
func DefaultPortConfig(device string) *PortConfig {
	return &PortConfig{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
	}
}

// Open opens the serial device described by cfg.
func Open(cfg *PortConfig) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("port config cannot be nil")
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open probe port %s: %w", cfg.Device, err)
	}
	return p, nil
}
