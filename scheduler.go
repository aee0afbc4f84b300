package uadk

import "github.com/hzhuang1/uadk/internal/sched"

// Scheduler is the capability interface Init accepts: pick a context, give
// one back, and drive the async poll sweep (spec §9: "model as capability
// interfaces with named operations {pick_next, put_ctx, poll_policy}").
// *sched.Greedy is the only implementation this runtime ships, built by
// NewGreedyScheduler.
type Scheduler interface {
	PickNext(key sched.Key) (int, error)
	PutCtx(globalIndex int) error
	PollPolicy(expect uint32, count *uint32) error
}

var _ Scheduler = (*sched.Greedy)(nil)

// NewGreedyScheduler allocates a Greedy scheduler (sched_greedy_alloc) whose
// poll callback is wired to this runtime's completion harvesting
// (pollOneAttempt), so PollPolicy can be driven straight from Poll without
// the caller touching internal/sched directly.
func NewGreedyScheduler(typeNum, numaNum int) *sched.Greedy {
	return sched.NewGreedy(typeNum, numaNum, pollOneAttempt)
}

// BindContexts binds a contiguous run of global context-table indices to
// one scheduling region (sched_greedy_bind_ctx). Callers bind in the same
// order they built the ContextConfig slice passed to Init, so region
// membership lines up with the table's global indices.
func BindContexts(s *sched.Greedy, opType OpType, mode sched.Mode, numaID int, firstGlobalIndex, num int) {
	s.BindCtx(int(opType), mode, numaID, firstGlobalIndex, num)
}
