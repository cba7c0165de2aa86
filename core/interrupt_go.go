//go:build !tinygo

package core

// intState is the saved interrupt mask. On regular Go builds masking
// is a no-op; it exists so Send can bracket its critical section the
// same way on every platform.
type intState uintptr

func disableInterrupts() intState {
	return 0
}

func restoreInterrupts(intState) {
}
