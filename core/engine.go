package core

// Engine is one MBus node's link-layer protocol engine. All state for
// a bus attachment lives here; independent engines may drive
// independent buses.
//
// The edge handlers are not re-entrant. The platform's interrupt
// controller must keep ClockEdge and DataEdge from preempting each
// other; both run to completion and perform no I/O beyond the injected
// PinDriver and the client callbacks, which share the interrupt-stack
// contract.
type Engine struct {
	cfg  *Config
	pins PinDriver

	state State
	role  Role
	err   Error

	lastClkIn bool
	lastDIn   bool
	// lastDOut tracks deliberately driven data-out levels only. The
	// forwarding mirror bypasses it so arbitration can tell "we pulled
	// the line low" from "we repeated somebody else's low".
	lastDOut  bool
	intrCount uint8

	txBuf      []byte
	txPriority bool
	txBitIdx   uint8
	txByteIdx  int

	rxAddr    uint32
	rxBitIdx  uint8
	rxByteIdx int
	rxZero    int32
	rxLen     *int32
	rxBuf     []byte
	rxSlot    int

	ack bool

	events eventRing
}

// New binds the configuration record and pin driver and resets the
// engine to its initial state. The config must outlive the engine.
func New(cfg *Config, pins PinDriver) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if pins == nil {
		return nil, ErrNoPinDriver
	}
	e := &Engine{cfg: cfg, pins: pins}
	e.Reset()
	return e, nil
}

// Reset returns the engine to the initial idle state. This is the only
// way to resume operation after a latched synchronization error.
func (e *Engine) Reset() {
	e.state = StateIdle
	e.role = RoleForward
	e.err = NoError
	e.lastClkIn = true
	e.lastDIn = true
	e.lastDOut = true
	e.intrCount = 0

	e.txBuf = nil
	e.txPriority = false
	e.txBitIdx = 0
	e.txByteIdx = 0

	e.rxAddr = 0
	e.rxBitIdx = 0
	e.rxByteIdx = 0
	e.rxZero = 0
	e.rxLen = &e.rxZero
	e.rxBuf = nil
	e.rxSlot = -1

	e.ack = false
}

// Send requests transmission of buf, whose leading byte(s) are the
// destination address. buf must stay valid and unmodified until
// SendDone fires. Only one send may be live at a time.
//
// If the bus is idle the engine claims it by driving data-out low;
// arbitration resolves over the following clock edges. Otherwise
// SendDone(0, BusBusy) is invoked synchronously.
func (e *Engine) Send(buf []byte, priority bool) {
	mask := disableInterrupts()
	if e.state == StateIdle {
		e.txBuf = buf
		e.txPriority = priority
		// Safe to flip the role and drive data-out directly: the
		// state moves to PREARB at the clock edge one half-period
		// before arbitration resolution.
		e.role = RoleTransmit
		e.driveDOut(false)
		restoreInterrupts(mask)
		return
	}
	restoreInterrupts(mask)
	if e.cfg.SendDone != nil {
		e.cfg.SendDone(0, BusBusy)
	}
}

// State reports the current protocol state.
func (e *Engine) State() State { return e.state }

// Role reports the current logical role.
func (e *Engine) Role() Role { return e.role }

// Err reports the pending protocol error, NoError outside error paths.
func (e *Engine) Err() Error { return e.err }

// Ack reports the last control bit latched during the CB exchange. For
// a node that transmitted, true after LATCH_CB1 means the message was
// NAKed (nobody pulled the line low to acknowledge).
func (e *Engine) Ack() bool { return e.ack }

func (e *Engine) setClkOut(level bool) {
	e.pins.SetPin(e.cfg.ClockOutPin, level)
}

// driveDOut deliberately drives data-out and records the level in the
// arbitration shadow.
func (e *Engine) driveDOut(level bool) {
	e.lastDOut = level
	e.pins.SetPin(e.cfg.DataOutPin, level)
}

// mirrorDOut repeats an upstream level onto data-out without touching
// the arbitration shadow.
func (e *Engine) mirrorDOut(level bool) {
	e.pins.SetPin(e.cfg.DataOutPin, level)
}

// dispatchCompletion delivers the single terminal callback for the
// transaction. Precedence: error, then transmitted, then received.
func (e *Engine) dispatchCompletion() {
	switch {
	case e.err != NoError:
		if e.cfg.Error != nil {
			e.cfg.Error(e.err)
		}
	case e.txByteIdx > 0:
		if e.cfg.SendDone != nil {
			e.cfg.SendDone(e.txByteIdx, e.err)
		}
	case e.rxByteIdx > 0:
		// Rewrite the ownership token first so the client sees the
		// final size from inside the callback.
		*e.rxLen = int32(-e.rxByteIdx)
		if e.cfg.Recv != nil {
			e.cfg.Recv(e.rxSlot)
		}
	}
}
