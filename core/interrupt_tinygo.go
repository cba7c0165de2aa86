//go:build tinygo

package core

import "runtime/interrupt"

type intState = interrupt.State

func disableInterrupts() intState {
	return interrupt.Disable()
}

func restoreInterrupts(s intState) {
	interrupt.Restore(s)
}
