//go:build linux && cgo

package ring

/*
#include <stdint.h>

// x86-64 store fence: all prior stores are globally visible before any
// subsequent store.
static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

// x86-64 full memory fence: all prior memory operations complete before any
// subsequent memory operation.
static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

// Sfence issues a store fence. Required before a doorbell write becomes
// visible to the device, so the descriptor it references is never read
// before it's fully written (spec §4.1).
func Sfence() {
	C.sfence_impl()
}

// Mfence issues a full memory fence, used around the doorbell write itself.
func Mfence() {
	C.mfence_impl()
}
