//go:build rp2040 || rp2350

package main

import (
	"machine"

	"gombus/core"
)

// Bus wiring on the Pico test board.
const (
	pinClkIn  = machine.GP2
	pinDIn    = machine.GP3
	pinClkOut = machine.GP4
	pinDOut   = machine.GP5
)

// Engine pin ids.
const (
	idClkOut core.Pin = 0
	idDOut   core.Pin = 1
)

var (
	rxBuf0 [64]byte
	rxBuf1 [64]byte

	cfg = core.Config{
		ClockOutPin: idClkOut,
		DataOutPin:  idDOut,
		ShortPrefix: 0x3,
	}
	engine *core.Engine
)

// rpPinDriver maps engine pin ids onto machine pins.
type rpPinDriver struct{}

func (rpPinDriver) SetPin(pin core.Pin, level bool) {
	switch pin {
	case idClkOut:
		pinClkOut.Set(level)
	case idDOut:
		pinDOut.Set(level)
	}
}

func main() {
	pinClkOut.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinDOut.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinClkOut.High()
	pinDOut.High()

	pinClkIn.Configure(machine.PinConfig{Mode: machine.PinInput})
	pinDIn.Configure(machine.PinConfig{Mode: machine.PinInput})

	cfg.Slots = []core.RecvSlot{
		{Buf: rxBuf0[:], Len: int32(len(rxBuf0))},
		{Buf: rxBuf1[:], Len: int32(len(rxBuf1))},
	}
	cfg.Recv = onRecv

	var err error
	engine, err = core.New(&cfg, rpPinDriver{})
	if err != nil {
		panic(err)
	}

	// Edge interrupts deliver both directions; the engine rejects
	// same-level repeats itself.
	pinClkIn.SetInterrupt(machine.PinRising|machine.PinFalling, func(p machine.Pin) {
		engine.ClockEdge(p.Get())
	})
	pinDIn.SetInterrupt(machine.PinRising|machine.PinFalling, func(p machine.Pin) {
		engine.DataEdge(p.Get())
	})

	select {}
}

func onRecv(slot int) {
	// Consume the message and hand the slot straight back. A real
	// application would copy the payload out to its main loop here.
	cfg.Slots[slot].Len = int32(len(cfg.Slots[slot].Buf))
}
