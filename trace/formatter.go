package trace

import (
	"fmt"
	"io"
)

// Format writes a human-readable listing of the trace.
func (t *Trace) Format(w io.Writer) error {
	for _, rec := range t.Records {
		var line string
		switch rec.Kind {
		case KindClockEdge:
			line = fmt.Sprintf("%10d  CLK  %s", rec.Tick, levelArrow(rec.Level))
		case KindDataEdge:
			line = fmt.Sprintf("%10d  DATA %s", rec.Tick, levelArrow(rec.Level))
		case KindRecv:
			line = fmt.Sprintf("%10d  RECV addr=%#08x bytes=%d", rec.Tick, rec.Addr, rec.Count)
		case KindSend:
			verdict := "ACK"
			if rec.Level {
				verdict = "NAK"
			}
			line = fmt.Sprintf("%10d  SEND bytes=%d %s", rec.Tick, rec.Count, verdict)
		case KindError:
			line = fmt.Sprintf("%10d  ERROR code=%d", rec.Tick, rec.Count)
		default:
			line = fmt.Sprintf("%10d  UNKNOWN kind=%d", rec.Tick, rec.Kind)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func levelArrow(level bool) string {
	if level {
		return "rise"
	}
	return "fall"
}
