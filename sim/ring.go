package sim

import (
	"errors"

	"gombus/core"
)

// Pin assignments the ring hands every engine. The ring owns the pin
// numbering; caller configs are overwritten with these.
const (
	PinClockOut core.Pin = 0
	PinDataOut  core.Pin = 1
)

var (
	ErrNoNodes = errors.New("sim: ring needs at least one node")
	// ErrStalled means the edge budget ran out before the bus returned
	// to idle, usually because no node transmitted or a node wedged.
	ErrStalled = errors.New("sim: bus did not return to idle")
)

// mediator forwarding modes over a transaction's phases.
const (
	modeOff = iota
	// modeForward repeats data-in to data-out within the drain, used
	// during arbitration and the control-bit exchange.
	modeForward
	// modeRetimed delays data through the mediator by one bit slot,
	// re-driving it on falling clock edges. This is what lines the
	// transmitter's early data phase up with the receivers' decode
	// schedule behind the reserved bit.
	modeRetimed
	// modeInject drives the interrupt-recognition pulses directly.
	modeInject
)

// node is one bus attachment plus the wire levels at its inputs.
type node struct {
	engine *core.Engine
	clkIn  bool
	dataIn bool
}

type event struct {
	dst     int // index into nodes; len(nodes) addresses the mediator
	isClock bool
	level   bool
}

// Ring wires engines into the unidirectional bus ring behind a
// simulated mediator: mediator -> node 0 -> node 1 -> ... -> mediator.
// Edge propagation is level-change driven and each handler runs to
// completion before the next edge is delivered, matching the
// non-re-entrancy contract of the engine.
//
// The mediator re-times data by one bit slot during the address and
// data phases, so receivers decode correctly when they sit between the
// mediator and the transmitter. Place receivers before senders in ring
// order; a receiver downstream of the transmitter sees the bit stream
// one slot early, which the original hardware exhibits too.
type Ring struct {
	nodes []*node
	queue []event

	draining bool

	clkOut  bool // mediator's driven clock level
	dataOut bool // mediator's driven data level
	clkIn   bool // clock level returning from the last node
	dataIn  bool // data level returning from the last node
	mode    int
}

// NewRing builds a ring of engines, one per config, in ring order. The
// ring replaces each config's pin assignments with its own and becomes
// the pin driver for every engine.
func NewRing(cfgs ...*core.Config) (*Ring, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoNodes
	}
	r := &Ring{
		clkOut: true, dataOut: true, clkIn: true, dataIn: true,
		// Forward from the start: a Send before the first clock edge
		// pulls the data line low around the whole ring.
		mode: modeForward,
	}
	for i, cfg := range cfgs {
		cfg.ClockOutPin = PinClockOut
		cfg.DataOutPin = PinDataOut
		src := i
		eng, err := core.New(cfg, core.PinDriverFunc(func(pin core.Pin, level bool) {
			dst := src + 1
			switch pin {
			case PinClockOut:
				r.writeClock(dst, level)
			case PinDataOut:
				r.writeData(dst, level)
			}
		}))
		if err != nil {
			return nil, err
		}
		r.nodes = append(r.nodes, &node{engine: eng, clkIn: true, dataIn: true})
	}
	return r, nil
}

// Node returns the engine at ring position i.
func (r *Ring) Node(i int) *core.Engine {
	return r.nodes[i].engine
}

// Idle reports whether every engine is back in the idle state.
func (r *Ring) Idle() bool {
	for _, n := range r.nodes {
		if n.engine.State() != core.StateIdle {
			return false
		}
	}
	return true
}

func (r *Ring) writeClock(dst int, level bool) {
	if dst == len(r.nodes) {
		if r.clkIn == level {
			return
		}
		r.clkIn = level
	} else {
		if r.nodes[dst].clkIn == level {
			return
		}
		r.nodes[dst].clkIn = level
	}
	r.push(event{dst: dst, isClock: true, level: level})
}

func (r *Ring) writeData(dst int, level bool) {
	if dst == len(r.nodes) {
		if r.dataIn == level {
			return
		}
		r.dataIn = level
	} else {
		if r.nodes[dst].dataIn == level {
			return
		}
		r.nodes[dst].dataIn = level
	}
	r.push(event{dst: dst, isClock: false, level: level})
}

// push enqueues a wire edge and, unless a drain is already running,
// drains the queue. Handlers therefore never nest; an edge produced
// mid-handler is delivered after the producing handler returns.
func (r *Ring) push(ev event) {
	r.queue = append(r.queue, ev)
	if r.draining {
		return
	}
	r.draining = true
	for len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.deliver(next)
	}
	r.draining = false
}

func (r *Ring) deliver(ev event) {
	if ev.dst == len(r.nodes) {
		// Mediator input. Data is repeated downstream only in
		// forwarding mode; retimed pushes happen on clock edges.
		if !ev.isClock && r.mode == modeForward {
			r.driveData(ev.level)
		}
		return
	}
	n := r.nodes[ev.dst]
	if ev.isClock {
		n.engine.ClockEdge(ev.level)
	} else {
		n.engine.DataEdge(ev.level)
	}
}

func (r *Ring) toggleClock() {
	r.clkOut = !r.clkOut
	r.writeClock(0, r.clkOut)
}

func (r *Ring) driveData(level bool) {
	r.dataOut = level
	r.writeData(0, level)
}

// retime pushes the mediator's latched data input one slot downstream.
func (r *Ring) retime() {
	r.driveData(r.dataIn)
}

// interruptPending reports a settled clock mismatch: some node is
// holding or has frozen its clock-out, so the chain no longer returns
// the mediator's driven level.
func (r *Ring) interruptPending() bool {
	return r.clkIn != r.clkOut
}

// maxEdges bounds a transaction; generous against the longest legal
// frame the tests use.
const maxEdges = 4096

// RunTransaction clocks the bus through one full transaction: from the
// first arbitration edge to the return to idle. Call it after a node
// has issued Send. It returns ErrStalled if the bus does not complete
// within the edge budget.
func (r *Ring) RunTransaction() error {
	// Arbitration, priority, then address/data under retiming, until
	// a node requests the end-of-message interrupt.
	r.mode = modeForward
	detected := false
	for edges := 1; !detected; edges++ {
		if edges > maxEdges {
			r.mode = modeForward
			return ErrStalled
		}
		r.toggleClock()
		if edges == 5 {
			// Priority round resolved; address phase begins.
			r.mode = modeRetimed
		}
		// Re-drive on the odd edges: one bit slot behind the
		// transmitter, after the receivers' latch edge has run.
		if r.mode == modeRetimed && edges%2 == 1 {
			r.retime()
		}
		detected = r.interruptPending()
	}

	// Keep clocking so the interrupter walks REQUEST -> REQUESTING ->
	// REQUESTED; those advance on falling edges. Four fallings cover
	// the primary interrupter plus a receiver that starts an overflow
	// interjection of its own inside this window. Overdelivery is
	// harmless, the held state absorbs it.
	for fallings := 0; fallings < 4; {
		r.toggleClock()
		if !r.clkOut {
			fallings++
		}
	}
	if !r.clkOut {
		r.toggleClock()
	}

	// Three data rising edges with the clock held recognize the
	// interrupt everywhere on the ring.
	r.mode = modeInject
	for risings := 0; risings < 3; {
		r.driveData(!r.dataOut)
		if r.dataOut {
			risings++
		}
	}

	// Control-bit exchange: resume with a falling edge so the held
	// clock lines all transition together, then six edges through
	// BEGIN_IDLE (where completion callbacks fire).
	r.mode = modeForward
	for i := 0; i < 6; i++ {
		r.toggleClock()
	}

	// Return the data line to idle before the final edge decides
	// between IDLE and a back-to-back arbitration.
	if !r.dataOut {
		r.driveData(true)
	}
	r.toggleClock()

	r.mode = modeForward
	if !r.Idle() {
		return ErrStalled
	}
	return nil
}
