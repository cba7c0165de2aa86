// Package core implements the MBus link-layer protocol engine: a
// bit-banged finite state machine for the four-wire synchronous ring
// bus used between power-gated sensor-platform processors.
//
// A node drives two output lines (clock-out, data-out) through an
// injected PinDriver and observes its two input lines via the
// ClockEdge and DataEdge handlers, which the platform calls from its
// GPIO edge interrupts. Unless the node is the transmitter, the
// addressed receiver, or an interrupter, it forwards bits to keep the
// ring closed.
//
// The engine does not configure GPIO modes. The platform must set the
// output pins up as outputs, route the input-edge interrupts to the
// handlers, and keep the handlers from re-entering each other; both
// are lightweight and run to completion.
//
// Usage: build a Config with the node identity, receive slots and
// callbacks, then New(cfg, pins). Send arbitrates for the bus and
// writes the byte slice directly onto the wires, so the destination
// address is the first byte(s) of the buffer. Completion is reported
// through exactly one of the SendDone, Recv or Error callbacks per
// transaction; all three run on the interrupt stack and must do
// minimal work.
//
// Receive buffers use a signed length token: a slot is offered to the
// engine while its Len is positive, and comes back to the client with
// Len rewritten to the negated number of bytes received. Re-offer a
// slot by storing a positive capacity again. When no slot is free the
// engine interjects the transmission and NAKs the sender.
package core
