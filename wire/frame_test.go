package wire

import "testing"

func frameWithEvents(t *testing.T, seq uint8, events []Event) []byte {
	t.Helper()
	frame, err := AppendFrame(nil, seq, AppendEvents(nil, events))
	if err != nil {
		t.Fatal(err)
	}
	return frame
}

func TestEventFrameRoundTrip(t *testing.T) {
	events := []Event{
		{Wire: WireClock, Level: false, Delta: 0},
		{Wire: WireData, Level: true, Delta: 130},
		{Wire: WireClock, Level: true, Delta: 1 << 20},
	}

	fifo := NewFifo(256)
	fifo.Write(frameWithEvents(t, 1, events))

	var got []Event
	d := NewDecoder()
	d.Feed(fifo, func(ev Event) { got = append(got, ev) })

	if len(got) != len(events) {
		t.Fatalf("decoded %d events, want %d", len(got), len(events))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], events[i])
		}
	}
	if !fifo.IsEmpty() {
		t.Errorf("fifo holds %d leftover bytes", fifo.Available())
	}
}

func TestDecoderResyncsAfterGarbage(t *testing.T) {
	fifo := NewFifo(256)
	fifo.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF}) // never a valid length/seq pair
	fifo.Write([]byte{frameSync})
	fifo.Write(frameWithEvents(t, 2, []Event{{Wire: WireData, Level: true, Delta: 7}}))

	var got []Event
	d := NewDecoder()
	d.Feed(fifo, func(ev Event) { got = append(got, ev) })

	if len(got) != 1 {
		t.Fatalf("decoded %d events after garbage, want 1", len(got))
	}
	if got[0].Wire != WireData || !got[0].Level || got[0].Delta != 7 {
		t.Errorf("event = %+v", got[0])
	}
}

func TestDecoderDropsRepeatedSequence(t *testing.T) {
	frame := frameWithEvents(t, 3, []Event{{Wire: WireClock, Level: true, Delta: 1}})

	fifo := NewFifo(256)
	fifo.Write(frame)
	fifo.Write(frame) // probe retransmission

	count := 0
	d := NewDecoder()
	d.Feed(fifo, func(Event) { count++ })

	if count != 1 {
		t.Errorf("decoded %d events, want the duplicate dropped", count)
	}
}

func TestDecoderKeepsPartialFrame(t *testing.T) {
	frame := frameWithEvents(t, 4, []Event{{Wire: WireData, Level: false, Delta: 9}})

	fifo := NewFifo(256)
	fifo.Write(frame[:3])

	count := 0
	d := NewDecoder()
	d.Feed(fifo, func(Event) { count++ })
	if count != 0 {
		t.Fatal("decoded an event from a partial frame")
	}

	fifo.Write(frame[3:])
	d.Feed(fifo, func(Event) { count++ })
	if count != 1 {
		t.Errorf("decoded %d events after completion, want 1", count)
	}
}

func TestCorruptCRCDiscardsFrame(t *testing.T) {
	frame := frameWithEvents(t, 5, []Event{{Wire: WireClock, Level: true, Delta: 1}})
	frame[2] ^= 0xFF // flip payload, CRC now wrong

	fifo := NewFifo(256)
	fifo.Write(frame)

	count := 0
	d := NewDecoder()
	d.Feed(fifo, func(Event) { count++ })

	if count != 0 {
		t.Error("decoded an event from a corrupt frame")
	}
}

func TestVLQRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 1 << 20, 0xFFFFFFFF}
	for _, v := range values {
		buf := AppendVLQUint(nil, v)
		data := buf
		got, err := DecodeVLQUint(&data)
		if err != nil {
			t.Fatalf("decode %#x: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %#x -> %#x", v, got)
		}
		if len(data) != 0 {
			t.Errorf("decode %#x left %d bytes", v, len(data))
		}
	}

	empty := []byte{0x80} // continuation with nothing following
	if _, err := DecodeVLQUint(&empty); err != ErrTruncatedVLQ {
		t.Errorf("truncated VLQ: got %v, want ErrTruncatedVLQ", err)
	}
}

func TestFifoCompaction(t *testing.T) {
	fifo := NewFifo(8)

	fifo.Write([]byte{1, 2, 3, 4, 5})
	fifo.Pop(4)
	fifo.Write([]byte{6, 7, 8, 9}) // forces the window back to the front

	got := fifo.Data()
	want := []byte{5, 6, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("Data() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Data() = %v, want %v", got, want)
		}
	}
}

func TestFifoUsesFullCapacity(t *testing.T) {
	fifo := NewFifo(4)

	if n := fifo.Write([]byte{1, 2, 3, 4}); n != 4 {
		t.Errorf("wrote %d of 4 bytes into a size-4 fifo", n)
	}
	if n := fifo.Write([]byte{5}); n != 0 {
		t.Errorf("full fifo accepted %d bytes", n)
	}
	fifo.Pop(2)
	if n := fifo.Write([]byte{5, 6}); n != 2 {
		t.Errorf("wrote %d of 2 bytes after popping 2", n)
	}
}

func TestCRC16KnownVector(t *testing.T) {
	// CRC-16/MCRF4XX catalog check value.
	if got := CRC16([]byte("123456789")); got != 0x6F91 {
		t.Errorf("CRC16 = %#04x, want 0x6f91", got)
	}
}

func TestAppendFrameRejectsOversizedPayload(t *testing.T) {
	payload := make([]byte, FrameLengthMax)
	if _, err := AppendFrame(nil, 0, payload); err != ErrFrameTooLarge {
		t.Errorf("oversized payload: got %v, want ErrFrameTooLarge", err)
	}
}
