// Package sched implements the Greedy scheduling policy (spec §4.4),
// grounded on sched_greedy_alloc/bind_ctx/free from the original
// C scheduler: contexts are bucketed into regions keyed by
// (op type, sync/async mode, NUMA node), and pick_next rotates through a
// region opportunistically before falling back to a blocking acquire.
package sched

import (
	"errors"
	"sort"
	"sync"

	"github.com/hzhuang1/uadk/internal/constants"
)

// ErrInvalidKey is returned by PickNext when no region — not even after
// the NUMA fallback sweep — has a bound context for the requested key.
var ErrInvalidKey = errors.New("sched: no context bound for key")

// Mode distinguishes a session's sync/async scheduling class.
type Mode uint8

const (
	ModeSync Mode = iota
	ModeAsync
)

// Key selects a region: an operation type, a sync/async mode, and a
// preferred NUMA node.
type Key struct {
	OpType int
	Mode   Mode
	NumaID int
}

// ctxSlot is one bound context within a region: its global table index and
// the per-context lock the rotation probes.
type ctxSlot struct {
	globalIndex int
	mu          sync.Mutex
}

// region is the dense ordered array of contexts bound to one
// (op type, mode, numa) bucket, plus its rotation cursor.
type region struct {
	mu   sync.Mutex // guards last; distinct from each ctxSlot's own lock
	ctxs []*ctxSlot
	last uint32
}

func (r *region) cursor() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// PollFunc is the user-supplied per-context poll callback (spec §4.4,
// grounded on user_poll_func / sample_poll_policy): it attempts to drain up
// to expect completions from the context at globalIndex, accumulating into count,
// and returns a non-EAGAIN error only for genuine failures.
type PollFunc func(globalIndex int, expect uint32, count *uint32) error

// Greedy is a Greedy-policy scheduler instance (spec §4.4). regions is
// keyed by (opType, mode, numaID); globalOffsets records, per region, the
// cumulative count of contexts bound before it. PickNext and PutCtx do not
// read globalOffsets: each bound slot stores its own global context index.
type Greedy struct {
	typeNum int
	numaNum int
	poll    PollFunc

	mu            sync.RWMutex
	regions       map[[3]int]*region
	orderedKeys   [][3]int // stable iteration order, in bind order
	globalOffsets map[[3]int]int
	totalBound    int
}

// NewGreedy allocates a Greedy scheduler instance (sched_greedy_alloc).
// typeNum bounds the op-type axis, numaNum the NUMA axis; poll is invoked by
// PollPolicy for each context in an async region sweep.
func NewGreedy(typeNum, numaNum int, poll PollFunc) *Greedy {
	if numaNum <= 0 || numaNum > constants.NumaMax {
		numaNum = constants.NumaMax
	}
	return &Greedy{
		typeNum:       typeNum,
		numaNum:       numaNum,
		poll:          poll,
		regions:       make(map[[3]int]*region),
		globalOffsets: make(map[[3]int]int),
	}
}

func regionKey(k Key) [3]int { return [3]int{k.OpType, int(k.Mode), k.NumaID} }

// BindCtx binds num contiguous global context-table indices, starting at
// firstGlobalIndex, to the region identified by (opType, mode, numaID)
// (sched_greedy_bind_ctx). Each bound slot records firstGlobalIndex+i, and
// PickNext returns that recorded index, so the caller's indices must match
// the positions of those contexts in the Context Table.
func (g *Greedy) BindCtx(opType int, mode Mode, numaID int, firstGlobalIndex, num int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := regionKey(Key{OpType: opType, Mode: mode, NumaID: numaID})
	r, ok := g.regions[key]
	if !ok {
		r = &region{}
		g.regions[key] = r
		g.orderedKeys = append(g.orderedKeys, key)
		g.globalOffsets[key] = g.totalBound
	}
	for i := 0; i < num; i++ {
		r.ctxs = append(r.ctxs, &ctxSlot{globalIndex: firstGlobalIndex + i})
	}
	g.totalBound += num
}

// PickNext selects and locks a context for key, returning its global table
// index (pick_next, spec §4.4 steps 1-5).
func (g *Greedy) PickNext(key Key) (int, error) {
	g.mu.RLock()
	r := g.regions[regionKey(key)]
	g.mu.RUnlock()

	if r == nil || len(r.ctxs) == 0 {
		r = g.fallbackRegion(key)
		if r == nil {
			return 0, ErrInvalidKey
		}
	}

	return g.pickFromRegion(r)
}

// fallbackRegion tries NUMA nodes 0..N-1 in order for a non-empty region
// matching (type, mode) when the preferred NUMA node has nothing bound.
func (g *Greedy) fallbackRegion(key Key) *region {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for numa := 0; numa < g.numaNum; numa++ {
		r := g.regions[regionKey(Key{OpType: key.OpType, Mode: key.Mode, NumaID: numa})]
		if r != nil && len(r.ctxs) > 0 {
			return r
		}
	}
	return nil
}

func (g *Greedy) pickFromRegion(r *region) (int, error) {
	r.mu.Lock()
	n := uint32(len(r.ctxs))
	last := r.last
	r.mu.Unlock()

	if n == 0 {
		return 0, ErrInvalidKey
	}

	for i := uint32(1); i <= n; i++ {
		offset := (last + i) % n
		slot := r.ctxs[offset]
		if slot.mu.TryLock() {
			r.mu.Lock()
			r.last = offset
			r.mu.Unlock()
			return slot.globalIndex, nil
		}
	}

	// every non-blocking probe failed; fall through to a blocking acquire
	offset := (last + 1) % n
	slot := r.ctxs[offset]
	slot.mu.Lock()
	r.mu.Lock()
	r.last = offset
	r.mu.Unlock()
	return slot.globalIndex, nil
}

// PutCtx releases the lock held on the context at globalIndex (put_ctx),
// reversing PickNext's cumulative region mapping to find the owner.
func (g *Greedy) PutCtx(globalIndex int) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, key := range g.orderedKeys {
		r := g.regions[key]
		for _, slot := range r.ctxs {
			if slot.globalIndex == globalIndex {
				slot.mu.Unlock()
				return nil
			}
		}
	}
	return ErrInvalidKey
}

// PollPolicy sweeps every async region in (type, numa, offset) nesting,
// invoking the poll callback for each bound context, until count reaches
// expect or MAX_POLL_ROUNDS rounds elapse (poll_policy, spec §4.4).
// Exiting with count < expect is a legitimate best-effort outcome.
func (g *Greedy) PollPolicy(expect uint32, count *uint32) error {
	g.mu.RLock()
	keys := append([][3]int(nil), g.orderedKeys...)
	g.mu.RUnlock()
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][2] < keys[j][2]
	})

	for round := 0; round < constants.MaxPollRounds; round++ {
		for _, key := range keys {
			if key[1] != int(ModeAsync) {
				continue
			}
			g.mu.RLock()
			r := g.regions[key]
			g.mu.RUnlock()
			if r == nil {
				continue
			}
			for _, slot := range r.ctxs {
				if err := g.poll(slot.globalIndex, expect, count); err != nil {
					if errors.Is(err, ErrEAGAIN) {
						continue
					}
					return err
				}
				if *count >= expect {
					return nil
				}
			}
		}
		if *count >= expect {
			return nil
		}
	}
	return nil
}

// ErrEAGAIN signals "skip this context this round" to PollPolicy; it is not
// propagated as a PollPolicy failure.
var ErrEAGAIN = errors.New("sched: context not ready (EAGAIN)")

// Cursor reports a region's current rotation cursor — a diagnostic
// accessor with no protocol meaning of its own.
func (g *Greedy) Cursor(opType int, mode Mode, numaID int) (uint32, bool) {
	g.mu.RLock()
	r := g.regions[regionKey(Key{OpType: opType, Mode: mode, NumaID: numaID})]
	g.mu.RUnlock()
	if r == nil {
		return 0, false
	}
	return r.cursor(), true
}
