package uadk

import (
	"github.com/hzhuang1/uadk/internal/sched"
	"github.com/hzhuang1/uadk/internal/simhw"
)

// NewTestContext builds a ContextConfig backed by a software accelerator
// (internal/simhw), for tests that need a working Queue Driver without a
// real device. This is the test-only equivalent of pairing NewMMIORing
// with a real fd.
func NewTestContext(opType OpType, mode sched.Mode, numaID int) ContextConfig {
	return ContextConfig{
		OpType:     opType,
		Mode:       mode,
		NumaID:     numaID,
		SVACapable: true,
		Handle:     simhw.New(),
	}
}

// NewNeverCompleteContext builds a ContextConfig whose driver accepts sends
// but never reports a completion — for exercising DoSync's MaxRetry
// exhaustion path (spec §8 S5) and Poll's EAGAIN handling.
func NewNeverCompleteContext(opType OpType, mode sched.Mode, numaID int) ContextConfig {
	return ContextConfig{
		OpType:     opType,
		Mode:       mode,
		NumaID:     numaID,
		SVACapable: true,
		Handle:     simhw.NeverCompleteDriver{},
	}
}

// ResetForTest tears an initialized runtime back to UNINIT unconditionally,
// bypassing the in-use warning path. Tests use this between cases instead
// of relying on Uninit's normal bookkeeping.
func ResetForTest() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.ctxTable = nil
	global.scheduler = nil
	global.metrics = nil
	global.observer = nil
	global.state = stateUninit
}
