//go:build !linux

package ring

// Sfence is a no-op off Linux; the real MMIO ring (and thus the fence it
// depends on) is Linux-only.
func Sfence() {}

// Mfence, see Sfence.
func Mfence() {}
