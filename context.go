package uadk

import (
	"github.com/hzhuang1/uadk/internal/queue"
	"github.com/hzhuang1/uadk/internal/ring"
	"github.com/hzhuang1/uadk/internal/sched"
)

// Context is one hardware queue pair registered with the runtime (spec §3
// "Context"): a fixed op type and scheduling mode, a NUMA affinity, the
// Queue Driver handle that owns its SQ/CQ, and the Message Pool backing
// its in-flight async requests. Sync contexts never allocate a pool slot —
// do_sync/do_stream carry their completion on the stack — but every
// context gets one so a context can be rebound without reshaping the
// table.
type Context struct {
	Handle     ring.Driver
	OpType     OpType
	Mode       sched.Mode
	NumaID     int
	SVACapable bool

	Pool *queue.MessagePool[asyncSlot]
}

// ContextTable is the ordered set of contexts the runtime was initialized
// with (spec §3 "Context Table"). Index in Contexts is the global index
// BindCtx/PickNext/PutCtx agree on.
type ContextTable struct {
	Contexts []*Context
}

// ContextConfig describes one context to register at Init.
type ContextConfig struct {
	OpType     OpType
	Mode       sched.Mode
	NumaID     int
	SVACapable bool
	Handle     ring.Driver
}

func buildContextTable(configs []ContextConfig) (*ContextTable, error) {
	table := &ContextTable{}
	for i, cc := range configs {
		if !cc.SVACapable {
			return nil, NewCtxError("INIT", i, KindNotSupported, "context lacks shared virtual addressing capability")
		}
		if cc.Handle == nil {
			return nil, NewCtxError("INIT", i, KindInvalidParam, "context has no queue driver handle")
		}
		table.Contexts = append(table.Contexts, &Context{
			Handle:     cc.Handle,
			OpType:     cc.OpType,
			Mode:       cc.Mode,
			NumaID:     cc.NumaID,
			SVACapable: cc.SVACapable,
			Pool:       queue.NewMessagePool[asyncSlot](PoolMax),
		})
	}
	return table, nil
}

// inUseCounts reports, per context index, how many message-pool slots are
// still occupied — used by Uninit to warn about a dirty teardown rather
// than silently drop in-flight completions.
func (t *ContextTable) inUseCounts() map[int]int {
	counts := make(map[int]int)
	for i, ctx := range t.Contexts {
		if n := ctx.Pool.InUse(); n > 0 {
			counts[i] = n
		}
	}
	return counts
}
