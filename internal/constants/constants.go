// Package constants holds the tunables named explicitly in the runtime spec.
package constants

// Pool and scheduling bounds (§3, §4.4, §5)
const (
	// PoolMax is the fixed number of in-flight async message slots per context.
	PoolMax = 1024

	// InvalidTag is the reserved tag value; tag 0 can never identify a live slot.
	InvalidTag = 0

	// NumaMax is the upper bound on NUMA node ids a Context Table may reference.
	NumaMax = 4

	// MaxRetry bounds the sync spin loop's consecutive EAGAIN recv attempts.
	MaxRetry = 2 * 100_000_000

	// MaxPollRounds bounds the scheduler's poll_policy sweep count.
	MaxPollRounds = 1000
)

// Descriptor geometry (§6)
const (
	// DescriptorWords is the fixed descriptor size in 32-bit words.
	DescriptorWords = 32

	// DescriptorBytes is the fixed descriptor size in bytes (32 * 4).
	DescriptorBytes = DescriptorWords * 4

	// MinDestAvailOut is the device's minimum output scratch requirement.
	MinDestAvailOut = 4096

	// StreamCtxBufSize is the size of a session's device-readable stream
	// scratch buffer (sync stream sessions only).
	StreamCtxBufSize = 64 * 1024

	// StreamCtxReserved is the control-word region at the head of the
	// stream scratch buffer; the descriptor's stream_ctx_addr points past it.
	StreamCtxReserved = 64

	// CipherKeyBufSize is the fixed key buffer allocated per cipher session.
	CipherKeyBufSize = 64
)
