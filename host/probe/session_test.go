package probe

import (
	"io"
	"testing"
	"time"

	"gombus/core"
	"gombus/wire"
)

// mockPort feeds scripted probe frames to the session and captures
// everything the session writes.
type mockPort struct {
	readCh  chan []byte
	writes  chan []byte
	pending []byte
}

func newMockPort() *mockPort {
	return &mockPort{
		readCh: make(chan []byte, 16),
		writes: make(chan []byte, 16),
	}
}

func (m *mockPort) Read(p []byte) (int, error) {
	if len(m.pending) == 0 {
		chunk, ok := <-m.readCh
		if !ok {
			return 0, io.EOF
		}
		m.pending = chunk
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.writes <- append([]byte(nil), p...)
	return len(p), nil
}

func (m *mockPort) Close() error {
	close(m.readCh)
	return nil
}

func testNodeConfig() *core.Config {
	return &core.Config{
		ShortPrefix: 0x3,
		Slots: []core.RecvSlot{
			{Buf: make([]byte, 16), Len: 16},
		},
	}
}

func TestSessionFeedsEngineFromFrames(t *testing.T) {
	port := newMockPort()
	s, err := NewSession(port, testNodeConfig())
	if err != nil {
		t.Fatal(err)
	}

	events := make(chan wire.Event, 8)
	s.EventHook = func(ev wire.Event) { events <- ev }
	go func() { _ = s.Run() }()

	frame, err := wire.AppendFrame(nil, 1, wire.AppendEvents(nil, []wire.Event{
		{Wire: wire.WireClock, Level: false, Delta: 3},
	}))
	if err != nil {
		t.Fatal(err)
	}
	port.readCh <- frame

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no event processed")
	}

	if got := s.Engine().State(); got != core.StatePrearb {
		t.Errorf("engine state = %v, want PREARB after a falling clock edge", got)
	}
	if s.Recorder().Len() != 1 {
		t.Errorf("recorder captured %d events, want 1", s.Recorder().Len())
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("reader loop did not exit")
	}
}

func TestSessionSendDrivesDataCommand(t *testing.T) {
	port := newMockPort()
	s, err := NewSession(port, testNodeConfig())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Send([]byte{0x30, 0x01}, false); err != nil {
		t.Fatal(err)
	}

	var raw []byte
	select {
	case raw = <-port.writes:
	case <-time.After(time.Second):
		t.Fatal("no command frame written")
	}

	// The frame should carry a data-out-low command.
	if len(raw) < wire.FrameLengthMin {
		t.Fatalf("short frame: %v", raw)
	}
	payload := raw[wire.FrameHeaderSize : len(raw)-wire.FrameTrailerSize]
	if len(payload) != 1 || payload[0] != byte(wire.CmdSetDataOut) {
		t.Errorf("payload = %#v, want data-out driven low", payload)
	}
	if crc := wire.CRC16(raw[:len(raw)-wire.FrameTrailerSize]); crc != uint16(raw[len(raw)-3])<<8|uint16(raw[len(raw)-2]) {
		t.Error("command frame CRC mismatch")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	port := newMockPort()
	s, err := NewSession(port, testNodeConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Send([]byte{0x30}, false); err != ErrClosed {
		t.Errorf("send after close = %v, want ErrClosed", err)
	}
}

func TestCloseMidTransactionReportsInterrupted(t *testing.T) {
	port := newMockPort()
	s, err := NewSession(port, testNodeConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Drive the engine out of idle, then abort.
	s.handleEvent(wire.Event{Wire: wire.WireClock, Level: false})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-s.Errors:
		if e != core.Interrupted {
			t.Errorf("error = %v, want INTERRUPTED", e)
		}
	default:
		t.Error("no abort error surfaced")
	}
}
