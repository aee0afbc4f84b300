package uadk

import "github.com/hzhuang1/uadk/internal/descriptor"

// OpType is a context's fixed operation class (spec §3).
type OpType int

const (
	OpCompress OpType = iota
	OpDecompress
	OpCipherEncrypt
	OpCipherDecrypt
)

func isCipherOp(op OpType) bool {
	return op == OpCipherEncrypt || op == OpCipherDecrypt
}

// Request is the generic message passed to DoSync/DoStream/DoAsync. Src and
// Dst are caller-owned buffers; the runtime never copies them — their
// addresses are handed straight to the device descriptor (spec's SVA
// assumption: the device consumes process virtual addresses directly).
// DoSync/DoStream overwrite Consumed/Produced/Status (and Isize/Checksum for
// compression) with the completion data on return; DoAsync leaves them
// untouched and delivers the completion as a Result to its callback.
type Request struct {
	Src []byte
	Dst []byte

	Consumed uint32
	Produced uint32
	Status   descriptor.Status
	Isize    uint32
	Checksum uint32
}

// Result is delivered to an async callback exactly once per completed tag
// (spec §4.5, poll_ctx step 5).
type Result struct {
	Tag      uint32
	Consumed uint32
	Produced uint32
	Status   descriptor.Status
	Isize    uint32
	Checksum uint32
	Err      error
}

// Callback is invoked by the poller thread that harvests a completion —
// never synchronously from DoAsync's submitting thread (spec §5).
type Callback func(Result)

// asyncSlot is the record cached by a context's Message Pool between
// DoAsync and the matching poll (spec §3 "Message Slot"). The completion
// data lands directly in the caller's destination buffer via the shared
// address space; the slot only needs to carry the callback forward.
type asyncSlot struct {
	callback Callback
}
