package core

// ClockEdge is the entry point for clock-in transitions. It advances
// the protocol state machine by one half-period and re-drives
// clock-out. Interrupt context; not re-entrant.
func (e *Engine) ClockEdge(level bool) {
	if e.state == StateError {
		return
	}
	if e.lastClkIn == level {
		e.state = StateError
		e.err = ClockSynchError
		e.record(evClockSynch, level)
		return
	}
	e.lastClkIn = level

	e.intrCount = 0

	switch e.state {
	case StateIdle:
		e.state = StatePrearb
		e.err = NoError
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

	case StatePrearb:
		e.state = StateArbitration

	case StateArbitration:
		e.state = StatePrioDrive
		if !e.lastDIn && !e.lastDOut {
			// Our low made it around the ring: won arbitration.
			e.role = RoleTransmit
		} else {
			// Didn't participate, or pulled low behind another node.
			e.role = RoleForward
		}

	case StatePrioDrive:
		e.state = StatePrioLatch
		if e.txPriority {
			e.driveDOut(true)
		}

	case StatePrioLatch:
		e.state = StateArbReservedDrive
		if e.role == RoleTransmit {
			if !e.txPriority && e.lastDIn {
				// Preempted by a priority claimant.
				e.role = RoleForward
			}
		} else if e.txPriority && !e.lastDIn {
			// Won the priority round.
			e.role = RoleTransmit
		}

		// The buffer starts with the address bytes, so a transmitter
		// skips straight to the data states.
		if e.role == RoleTransmit {
			e.state = StateDriveData
		}

	case StateArbReservedDrive:
		e.state = StateArbReservedLatch

	case StateArbReservedLatch:
		e.state = StateDriveShortAddr

	// The address states only run in forward/receive mode.
	case StateDriveShortAddr:
		e.state = StateLatchShortAddr

	case StateLatchShortAddr:
		e.state = StateDriveShortAddr

		e.rxAddr <<= 1
		if e.lastDIn {
			e.rxAddr |= 1
		}

		e.rxBitIdx++
		if e.rxBitIdx == 4 {
			switch {
			case e.rxAddr == 0xF:
				e.state = StateDriveLongAddr
			case e.rxAddr == uint32(e.cfg.ShortPrefix&0x0F):
				e.role = RoleReceive
			case e.rxAddr == 0:
				e.role = RoleReceiveBroadcast
			default:
				e.role = RoleForward
			}
		} else if e.rxBitIdx == 8 {
			e.state = StateDriveData
			e.resolveBroadcast()
			if e.role == RoleReceive {
				if !e.acquireSlot() {
					e.state = StateRequestInterrupt
					e.err = RecvOverflow
					break
				}
				e.cfg.Slots[e.rxSlot].Addr = e.rxAddr << 24
				e.rxBitIdx = 0
			}
		}

	case StateDriveLongAddr:
		e.state = StateLatchLongAddr

	case StateLatchLongAddr:
		e.state = StateDriveLongAddr

		e.rxAddr <<= 1
		if e.lastDIn {
			e.rxAddr |= 1
		}

		e.rxBitIdx++
		if e.rxBitIdx == 28 {
			switch {
			case e.rxAddr&0xFFFFFF == e.cfg.FullPrefix&0xFFFFFF:
				e.role = RoleReceive
			case e.rxAddr&0xFFFFFF == 0:
				e.role = RoleReceiveBroadcast
			default:
				e.role = RoleForward
			}
		} else if e.rxBitIdx == 32 {
			e.state = StateDriveData
			e.resolveBroadcast()
			if e.role == RoleReceive {
				if !e.acquireSlot() {
					e.state = StateRequestInterrupt
					e.err = RecvOverflow
					break
				}
				e.cfg.Slots[e.rxSlot].Addr = e.rxAddr
				e.rxBitIdx = 0
			}
		}

	case StateDriveData:
		e.state = StateLatchData
		if e.role == RoleTransmit {
			e.driveDOut(e.txBuf[e.txByteIdx]&(0x80>>e.txBitIdx) != 0)
			e.txBitIdx++
			if e.txBitIdx == 8 {
				e.txBitIdx = 0
				e.txByteIdx++
			}
		}

	case StateLatchData:
		e.state = StateDriveData
		if e.role == RoleTransmit {
			if e.txByteIdx == len(e.txBuf) {
				e.state = StateRequestInterrupt
				e.err = NoError
			}
		}
		if e.role == RoleReceive {
			if e.rxByteIdx > int(*e.rxLen) {
				// Interject: hold the clock and NAK the sender.
				e.state = StateRequestInterrupt
				e.role = RoleTransmit
				e.err = RecvOverflow
				break
			}
			if e.lastDIn && e.rxByteIdx < len(e.rxBuf) {
				e.rxBuf[e.rxByteIdx] |= 0x80 >> e.rxBitIdx
			}
			e.rxBitIdx++
			if e.rxBitIdx == 8 {
				e.rxBitIdx = 0
				e.rxByteIdx++
			}
		}

	// The request states advance on falling edges only; clock-out is
	// forced high throughout (see below).
	case StateRequestInterrupt:
		if !e.lastClkIn {
			e.state = StateRequestingInterrupt
		}

	case StateRequestingInterrupt:
		if !e.lastClkIn {
			e.state = StateRequestedInterrupt
		}

	case StateRequestedInterrupt:
		// Held until the interrupt is recognized on the data side.

	case StatePreBeginControl:
		e.state = StateBeginControl
		fallthrough

	case StateBeginControl:
		e.state = StateDriveCB0

	case StateDriveCB0:
		e.state = StateLatchCB0
		if e.role == RoleInterrupter {
			// High = clean end of message, low = abort.
			e.driveDOut(e.err == NoError)
		}

	case StateLatchCB0:
		e.state = StateDriveCB1
		e.ack = e.lastDIn
		if e.role == RoleReceive {
			// Switch to transmit to drive the acknowledgement bit.
			e.role = RoleTransmit
		} else if e.err == NoError {
			e.role = RoleForward
		}

	case StateDriveCB1:
		e.state = StateLatchCB1
		if e.role == RoleInterrupter {
			if e.err == RecvOverflow {
				e.driveDOut(true)
			}
		} else if e.role == RoleTransmit {
			// The receiver, transmitting CB1: pull low to ACK a
			// clean end of message.
			if e.ack {
				e.driveDOut(false)
			}
		}

	case StateLatchCB1:
		e.state = StateDriveIdle
		e.role = RoleForward
		if e.txByteIdx > 0 {
			// We transmitted; latch the receiver's verdict.
			e.ack = e.lastDIn
		}

	case StateDriveIdle:
		e.state = StateBeginIdle

	case StateBeginIdle:
		e.lastDOut = true
		if e.lastDIn {
			e.state = StateIdle
		} else {
			// Another arbitration is starting back-to-back.
			e.state = StatePrearb
		}
	}

	if e.state == StateRequestInterrupt ||
		e.state == StateRequestingInterrupt ||
		e.state == StateRequestedInterrupt {
		e.setClkOut(true)
	} else {
		e.setClkOut(e.lastClkIn)
	}

	e.record(evClockEdge, level)

	if e.state == StateBeginIdle {
		e.dispatchCompletion()
	}
}
