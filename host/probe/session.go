// Package probe bridges a serial MBus probe dongle to a protocol
// engine: decoded edge events feed the engine's handlers, and the
// engine's pin writes go back down the link as probe commands.
package probe

import (
	"errors"
	"sync"

	"gombus/core"
	"gombus/trace"
	"gombus/wire"
)

// Pin numbering on the probe side of the link.
const (
	PinClockOut core.Pin = 0
	PinDataOut  core.Pin = 1
)

// ErrClosed is returned by Send after the session has been shut down.
var ErrClosed = errors.New("probe: session closed")

// Recv describes one received message surfaced to the session owner.
type Recv struct {
	Addr  uint32
	Bytes []byte
}

// SendResult describes a completed transmission.
type SendResult struct {
	Bytes int
	Err   core.Error
	NAK   bool
}

// Session owns the engine for one probe attachment. The reader
// goroutine is the only caller of the engine's edge handlers, which
// preserves the engine's single-context contract; Send serializes
// against it.
type Session struct {
	port   Port
	engine *core.Engine
	cfg    *core.Config

	mu     sync.Mutex
	seq    uint8
	closed bool

	recorder *trace.Recorder

	// EventHook, if set before Run, observes every decoded edge event
	// after the engine has processed it.
	EventHook func(wire.Event)

	Recvs  chan Recv
	Sends  chan SendResult
	Errors chan core.Error

	done chan struct{}
}

// NewSession binds an engine built from cfg to the probe on port. The
// caller's callbacks in cfg are replaced by the session's channels.
func NewSession(port Port, cfg *core.Config) (*Session, error) {
	s := &Session{
		port:     port,
		cfg:      cfg,
		recorder: trace.NewRecorder(),
		Recvs:    make(chan Recv, 16),
		Sends:    make(chan SendResult, 4),
		Errors:   make(chan core.Error, 4),
		done:     make(chan struct{}),
	}

	cfg.ClockOutPin = PinClockOut
	cfg.DataOutPin = PinDataOut
	cfg.SendDone = s.onSendDone
	cfg.Recv = s.onRecv
	cfg.Error = s.onError

	eng, err := core.New(cfg, core.PinDriverFunc(s.setPin))
	if err != nil {
		return nil, err
	}
	s.engine = eng
	return s, nil
}

// Engine exposes the underlying protocol engine, mainly for
// inspection.
func (s *Session) Engine() *core.Engine {
	return s.engine
}

// Recorder returns the trace recorder accumulating this session's
// capture.
func (s *Session) Recorder() *trace.Recorder {
	return s.recorder
}

// Run pumps the probe byte stream into the engine until the port
// errors or Close is called. It blocks; run it on its own goroutine.
func (s *Session) Run() error {
	defer close(s.done)

	fifo := wire.NewFifo(4096)
	dec := wire.NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			fifo.Write(buf[:n])
			dec.Feed(fifo, s.handleEvent)
		}
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
	}
}

func (s *Session) handleEvent(ev wire.Event) {
	s.mu.Lock()
	switch ev.Wire {
	case wire.WireClock:
		s.recorder.Edge(trace.KindClockEdge, ev.Level, ev.Delta)
		s.engine.ClockEdge(ev.Level)
	case wire.WireData:
		s.recorder.Edge(trace.KindDataEdge, ev.Level, ev.Delta)
		s.engine.DataEdge(ev.Level)
	}
	s.mu.Unlock()

	if s.EventHook != nil {
		s.EventHook(ev)
	}
}

// Send transmits buf on the bus. The outcome arrives on Sends.
func (s *Session) Send(buf []byte, priority bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.engine.Send(buf, priority)
	return nil
}

// Close tears the session down. An in-flight capture is abandoned; the
// owner is handed Interrupted so an operator abort is distinguishable
// from a clean shutdown.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	midTransaction := s.engine.State() != core.StateIdle &&
		s.engine.State() != core.StateError
	s.mu.Unlock()

	if midTransaction {
		select {
		case s.Errors <- core.Interrupted:
		default:
		}
	}
	return s.port.Close()
}

// Done is closed when the reader loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// setPin runs inside the engine's handlers (reader goroutine) or under
// Send's lock, so frame sequencing needs no extra synchronization.
func (s *Session) setPin(pin core.Pin, level bool) {
	cmd := wire.Command{Level: level}
	switch pin {
	case PinClockOut:
		cmd.Kind = wire.CmdSetClockOut
	case PinDataOut:
		cmd.Kind = wire.CmdSetDataOut
	default:
		return
	}
	s.seq++
	frame, err := wire.AppendFrame(nil, s.seq, wire.AppendCommand(nil, cmd))
	if err != nil {
		return
	}
	// Port write errors surface through the reader loop; a dropped
	// command here cannot be retried meaningfully mid-bit.
	_, _ = s.port.Write(frame)
}

func (s *Session) onSendDone(bytes int, e core.Error) {
	res := SendResult{Bytes: bytes, Err: e, NAK: s.engine.Ack()}
	s.recorder.Send(bytes, res.NAK)
	select {
	case s.Sends <- res:
	default:
	}
}

func (s *Session) onRecv(slot int) {
	sl := &s.cfg.Slots[slot]
	n := int(-sl.Len)
	msg := Recv{Addr: sl.Addr, Bytes: append([]byte(nil), sl.Buf[:n]...)}
	s.recorder.Recv(sl.Addr, n)
	// Hand the slot straight back to the engine; the payload has been
	// copied out.
	sl.Len = int32(len(sl.Buf))
	select {
	case s.Recvs <- msg:
	default:
	}
}

func (s *Session) onError(e core.Error) {
	s.recorder.Error(uint32(e))
	select {
	case s.Errors <- e:
	default:
	}
}
