//go:build linux && !cgo

package ring

import "sync/atomic"

// Sfence falls back to an atomic RMW as a sequentially-consistent barrier
// when cgo is unavailable. Weaker than a real SFENCE but keeps non-cgo
// builds usable against internal/simhw, which never touches real device
// memory.
func Sfence() {
	var v atomic.Uint32
	v.Add(1)
}

// Mfence, see Sfence.
func Mfence() {
	var v atomic.Uint32
	v.Add(1)
}
