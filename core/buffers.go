package core

// resolveBroadcast settles a tentative broadcast receive once the
// channel nibble is in: subscribed channels promote to a full receive,
// anything else drops back to forwarding.
func (e *Engine) resolveBroadcast() {
	if e.role != RoleReceiveBroadcast {
		return
	}
	channel := e.rxAddr & 0xF
	if e.cfg.BroadcastChannels&(1<<channel) != 0 {
		e.role = RoleReceive
	} else {
		e.role = RoleForward
	}
}

// acquireSlot scans the receive pool for the first slot still offered
// by the client and pins it for this transaction. Returns false when
// every slot is owned by the client, in which case the caller starts
// the overflow interjection.
func (e *Engine) acquireSlot() bool {
	for i := range e.cfg.Slots {
		s := &e.cfg.Slots[i]
		if s.Len > 0 {
			e.rxLen = &s.Len
			e.rxBuf = s.Buf
			e.rxSlot = i
			return true
		}
	}
	return false
}
