package uadk

import (
	"sync"

	"github.com/hzhuang1/uadk/internal/logging"
)

// state is the runtime's lifecycle (spec §9: "confine the global mutable
// singleton to one process-wide initialized-once value with a state enum
// {UNINIT, INIT}; guard init/uninit with a single mutex").
type state int

const (
	stateUninit state = iota
	stateInit
)

// runtime is the single process-wide instance spec §3's "Global Runtime
// Settings" describes. Every field is read through a stable snapshot taken
// under mu at call entry (currentTable), never mutated outside Init/Uninit.
type runtime struct {
	mu        sync.Mutex
	state     state
	ctxTable  *ContextTable
	scheduler Scheduler
	metrics   *Metrics
	observer  Observer
}

var global runtime

// Init brings the runtime from UNINIT to INIT: it validates and builds the
// full context table before touching any shared state, so a failure partway
// through never leaves a partially-initialized runtime observable to other
// callers (spec §9, §5). Calling Init on an already-initialized runtime is
// an error — re-initialization requires Uninit first.
func Init(configs []ContextConfig, scheduler Scheduler) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.state == stateInit {
		return NewError("INIT", KindInvalidParam, "runtime is already initialized")
	}
	if scheduler == nil {
		return NewError("INIT", KindInvalidParam, "nil scheduler")
	}
	if len(configs) == 0 {
		return NewError("INIT", KindInvalidParam, "at least one context is required")
	}

	table, err := buildContextTable(configs)
	if err != nil {
		return err
	}

	metrics := NewMetrics()

	global.ctxTable = table
	global.scheduler = scheduler
	global.metrics = metrics
	global.observer = NewMetricsObserver(metrics)
	global.state = stateInit

	logging.Default().Info("runtime initialized", "contexts", len(table.Contexts))
	return nil
}

// Uninit tears the runtime back down to UNINIT. It is idempotent: calling
// it on an uninitialized runtime is a no-op that returns nil. Contexts with
// in-flight async slots are logged, not blocked on —
// the caller is responsible for quiescing async work before Uninit.
func Uninit() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.state == stateUninit {
		return nil
	}

	logger := logging.Default()
	for idx, n := range global.ctxTable.inUseCounts() {
		logger.Warn("context torn down with message pool slots still in use", "ctx", idx, "in_use", n)
	}

	global.metrics.Stop()
	global.ctxTable = nil
	global.scheduler = nil
	global.observer = nil
	global.state = stateUninit
	return nil
}

// Metrics returns the runtime's metrics instance, or nil before the first
// Init. After Uninit it returns the stopped metrics of the last run until
// the next Init replaces them.
func Metrics() *Metrics {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.metrics
}

// MetricsSnapshot returns a point-in-time copy of the runtime's metrics.
func MetricsSnapshot() MetricsSnapshot {
	global.mu.Lock()
	m := global.metrics
	global.mu.Unlock()
	if m == nil {
		return MetricsSnapshot{}
	}
	return m.Snapshot()
}

// IsInitialized reports whether the runtime currently holds an INIT state.
func IsInitialized() bool {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.state == stateInit
}
