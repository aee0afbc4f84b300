// Package ring implements the Queue Driver (QD): a thin, non-blocking shim
// over a device's shared submission queue (SQ) and completion queue (CQ),
// mapped into user memory (spec §4.1). Each context owns one SQ/CQ pair; the
// device advances CQ tail and SQ head, the user side advances SQ tail and CQ
// head.
package ring

import (
	"errors"

	"github.com/hzhuang1/uadk/internal/descriptor"
	"github.com/hzhuang1/uadk/internal/logging"
)

// ErrQueueFull is returned by Send when the SQ cannot accept a single
// descriptor. Partial acceptance (posted < len(descs)) is not an error.
var ErrQueueFull = errors.New("ring: submission queue full")

// ErrHWAccess reports a hardware-access failure (e.g. the mapping is gone).
// It is a distinct kind from queue-full/queue-empty, which are not errors.
var ErrHWAccess = errors.New("ring: hardware access error")

// Driver is the Queue Driver contract. Implementations must not sleep:
// Send and Recv are both non-blocking.
type Driver interface {
	// Send copies up to len(descs) descriptors into the SQ tail and rings
	// the doorbell. Returns the number actually posted; ErrQueueFull only
	// when zero could be posted.
	Send(descs []descriptor.Raw) (posted int, err error)

	// Recv reads up to len(out) completed descriptors from the CQ head.
	// A return of (0, nil) means no completion is available (EMPTY) — this
	// is the normal case a sync caller spins on, not an error.
	Recv(out []descriptor.Raw) (received int, err error)

	// Close releases the underlying mapping.
	Close() error
}

// Config describes the shared-memory ring layout for one context's SQ/CQ
// pair.
type Config struct {
	FD      int    // file descriptor backing the mmap'd region
	SQDepth uint32 // submission queue depth, descriptors
	CQDepth uint32 // completion queue depth, descriptors
}

// NewMMIORing maps a context's SQ/CQ pair and returns a Driver backed by
// real device memory. Only implemented on linux; other platforms use
// internal/simhw in tests and non-Linux builds.
func NewMMIORing(cfg Config) (Driver, error) {
	logger := logging.Default()
	logger.Debug("creating mmio ring", "sq_depth", cfg.SQDepth, "cq_depth", cfg.CQDepth)
	return newMMIORing(cfg)
}
