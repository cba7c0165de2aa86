// Package trace records bus activity captured through a probe and
// serializes it for offline analysis. Traces are CBOR: a two-element
// array of format version and record list, so other tooling can decode
// them without this package.
package trace

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Version is the trace format version this package writes.
const Version = 1

// Record kinds.
const (
	KindClockEdge uint8 = iota + 1
	KindDataEdge
	KindRecv
	KindSend
	KindError
)

// Record is one captured event. Fields beyond Kind and Tick are
// kind-dependent: edges use Level, transaction records use Addr/Count,
// error records carry the error code in Count.
type Record struct {
	_     struct{} `cbor:",toarray"`
	Kind  uint8
	Tick  uint64
	Level bool
	Addr  uint32
	Count uint32
}

// Trace is a full capture.
type Trace struct {
	_       struct{} `cbor:",toarray"`
	Version uint8
	Records []Record
}

// Recorder accumulates records during a capture session.
type Recorder struct {
	tick    uint64
	records []Record
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Edge records a bus edge. delta is the probe tick delay since the
// previous event.
func (r *Recorder) Edge(kind uint8, level bool, delta uint32) {
	r.tick += uint64(delta)
	r.records = append(r.records, Record{Kind: kind, Tick: r.tick, Level: level})
}

// Recv records a completed reception.
func (r *Recorder) Recv(addr uint32, bytes int) {
	r.records = append(r.records, Record{Kind: KindRecv, Tick: r.tick, Addr: addr, Count: uint32(bytes)})
}

// Send records a completed transmission.
func (r *Recorder) Send(bytes int, nak bool) {
	r.records = append(r.records, Record{Kind: KindSend, Tick: r.tick, Level: nak, Count: uint32(bytes)})
}

// Error records a transaction that terminated in a protocol error.
func (r *Recorder) Error(code uint32) {
	r.records = append(r.records, Record{Kind: KindError, Tick: r.tick, Count: code})
}

// Len reports the number of records captured so far.
func (r *Recorder) Len() int {
	return len(r.records)
}

// Trace snapshots the capture.
func (r *Recorder) Trace() *Trace {
	records := make([]Record, len(r.records))
	copy(records, r.records)
	return &Trace{Version: Version, Records: records}
}

// Marshal encodes the trace as CBOR.
func (t *Trace) Marshal() ([]byte, error) {
	return cbor.Marshal(t)
}

// Load decodes and validates a CBOR trace.
func Load(data []byte) (*Trace, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty trace")
	}
	var t Trace
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	if t.Version != Version {
		return nil, fmt.Errorf("unsupported trace version %d", t.Version)
	}
	return &t, nil
}
