package uadk

import (
	"encoding/binary"
	"errors"
	"time"
	"unsafe"

	"github.com/hzhuang1/uadk/internal/descriptor"
	"github.com/hzhuang1/uadk/internal/logging"
	"github.com/hzhuang1/uadk/internal/queue"
	"github.com/hzhuang1/uadk/internal/sched"
)

// readStreamCtxDw/writeStreamCtxDw marshal ctx_dw{0,1,2} to and from the
// first 12 bytes of a session's stream scratch buffer (spec §4.2 stream-
// context writeback). A buffer shorter than that (stateless sessions never
// allocate one) reads as the zero value and ignores writes.
func readStreamCtxDw(buf []byte) [3]uint32 {
	var dw [3]uint32
	if len(buf) < 12 {
		return dw
	}
	dw[0] = binary.LittleEndian.Uint32(buf[0:4])
	dw[1] = binary.LittleEndian.Uint32(buf[4:8])
	dw[2] = binary.LittleEndian.Uint32(buf[8:12])
	return dw
}

func writeStreamCtxDw(buf []byte, dw [3]uint32) {
	if len(buf) < 12 {
		return
	}
	binary.LittleEndian.PutUint32(buf[0:4], dw[0])
	binary.LittleEndian.PutUint32(buf[4:8], dw[1])
	binary.LittleEndian.PutUint32(buf[8:12], dw[2])
}

// addrOf returns the shared-virtual address the device would read to reach
// b's backing array. The runtime assumes SVA: device and process share one
// address space, so a Go slice pointer is itself a valid device address as
// long as b stays alive and unmoved for the call's duration (both hold here
// since dispatch blocks, or the buffer is pinned for the async slot's
// lifetime by the caller).
func addrOf(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}

func currentTable() (*ContextTable, Scheduler, Observer) {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.ctxTable, global.scheduler, global.observer
}

func recordOp(observer Observer, op OpType, bytes uint64, latency time.Duration, success bool) {
	if observer == nil {
		return
	}
	ns := uint64(latency.Nanoseconds())
	switch op {
	case OpCompress:
		observer.ObserveCompress(bytes, ns, success)
	case OpDecompress:
		observer.ObserveDecompress(bytes, ns, success)
	case OpCipherEncrypt:
		observer.ObserveCipherEncrypt(bytes, ns, success)
	case OpCipherDecrypt:
		observer.ObserveCipherDecrypt(bytes, ns, success)
	}
}

func encodeRequest(s *session, req *Request, tag uint32, flush descriptor.FlushType, mode descriptor.StreamMode, pos descriptor.StreamPos, ctxDw [3]uint32) descriptor.Raw {
	if isCipherOp(s.opType) {
		return descriptor.EncodeCipher(descriptor.CipherRequest{
			Algorithm:  s.alg,
			SourceAddr: addrOf(req.Src),
			DestAddr:   addrOf(req.Dst),
			InputLen:   uint32(len(req.Src)),
			DestCap:    uint32(len(req.Dst)),
			Tag:        tag,
		})
	}
	var streamCtxAddr uint64
	if len(s.streamCtxBuf) > 0 {
		streamCtxAddr = addrOf(s.streamCtxBuf)
	}
	return descriptor.EncodeComp(descriptor.CompRequest{
		Algorithm:     s.alg,
		SourceAddr:    addrOf(req.Src),
		DestAddr:      addrOf(req.Dst),
		InputLen:      uint32(len(req.Src)),
		DestCap:       uint32(len(req.Dst)),
		Tag:           tag,
		Flush:         flush,
		Mode:          mode,
		Pos:           pos,
		StreamCtxAddr: streamCtxAddr,
		Isize:         req.Isize,
		Checksum:      req.Checksum,
		CtxDw:         ctxDw,
	})
}

func decodeResponse(s *session, raw descriptor.Raw) (Request, [3]uint32, error) {
	var resp Request
	if isCipherOp(s.opType) {
		cr, err := descriptor.DecodeCipher(raw)
		resp.Consumed, resp.Produced, resp.Status = cr.Consumed, cr.Produced, cr.Status
		return resp, [3]uint32{}, err
	}
	cr, err := descriptor.DecodeComp(raw)
	resp.Consumed, resp.Produced, resp.Status = cr.Consumed, cr.Produced, cr.Status
	resp.Isize, resp.Checksum = cr.Isize, cr.Checksum
	return resp, cr.CtxDw, err
}

// dispatchOnce sends one descriptor on ctx and spins Recv until a
// non-spurious completion decodes or MaxRetry is exceeded (spec §4.5
// do_sync steps 5-7; do_stream reuses the same send/spin shape with a
// different flush/pos). A spurious completion (consumed=0, produced=0 on
// an otherwise clean status) is EAGAIN, not a result: it consumes a retry
// round and the loop calls Recv again rather than returning it.
func dispatchOnce(op string, s *session, ctx *Context, raw descriptor.Raw) (Request, [3]uint32, error) {
	if _, err := ctx.Handle.Send([]descriptor.Raw{raw}); err != nil {
		return Request{}, [3]uint32{}, WrapError(op, KindHWAccess, err)
	}

	out := make([]descriptor.Raw, 1)
	for retry := 0; ; retry++ {
		n, err := ctx.Handle.Recv(out)
		if err != nil {
			return Request{}, [3]uint32{}, WrapError(op, KindHWAccess, err)
		}
		if n == 0 {
			if retry >= MaxRetry {
				return Request{}, [3]uint32{}, NewError(op, KindTimeout, "max retry exceeded waiting for completion")
			}
			continue
		}
		resp, ctxDw, decErr := decodeResponse(s, out[0])
		if decErr != nil {
			if errors.Is(decErr, descriptor.ErrSpuriousCompletion) {
				if retry >= MaxRetry {
					return Request{}, [3]uint32{}, NewError(op, KindTimeout, "max retry exceeded waiting for completion")
				}
				continue
			}
			return Request{}, [3]uint32{}, WrapError(op, KindHWAccess, decErr)
		}
		return resp, ctxDw, nil
	}
}

// DoSync performs a synchronous one-shot compress/decompress/cipher call
// (spec §4.5 do_sync). It blocks the calling goroutine until the device
// completes the request or MaxRetry spurious-empty reads elapse.
func DoSync(h SessionHandle, req *Request) error {
	s, err := lookupSession(h)
	if err != nil {
		return err
	}
	if req == nil {
		return NewError("DO_SYNC", KindInvalidParam, "nil request")
	}
	if isCipherOp(s.opType) && len(req.Dst) < len(req.Src) {
		return NewError("DO_SYNC", KindInvalidParam, "cipher destination capacity must be at least source length")
	}

	table, scheduler, observer := currentTable()
	if table == nil || scheduler == nil {
		return NewError("DO_SYNC", KindInvalidParam, "runtime not initialized")
	}

	idx, err := scheduler.PickNext(s.schedKey)
	if err != nil {
		return WrapError("DO_SYNC", KindInvalidParam, err)
	}
	if idx < 0 || idx >= len(table.Contexts) {
		_ = scheduler.PutCtx(idx)
		return NewCtxError("DO_SYNC", idx, KindInvalidParam, "scheduler returned an out-of-range context index")
	}
	ctx := table.Contexts[idx]
	start := time.Now()

	raw := encodeRequest(s, req, 0, descriptor.FlushFinish, descriptor.StreamModeStateless, descriptor.StreamPosNew, [3]uint32{})
	resp, _, err := dispatchOnce("DO_SYNC", s, ctx, raw)
	if perr := scheduler.PutCtx(idx); perr != nil {
		logging.Default().Warn("put_ctx failed", "ctx", idx, "error", perr)
	}
	if err != nil {
		recordOp(observer, s.opType, 0, time.Since(start), false)
		return err
	}

	req.Consumed, req.Produced, req.Status = resp.Consumed, resp.Produced, resp.Status
	req.Isize, req.Checksum = resp.Isize, resp.Checksum

	success := resp.Status == descriptor.StatusOK
	recordOp(observer, s.opType, uint64(resp.Produced), time.Since(start), success)
	if !success {
		return NewCtxError("DO_SYNC", idx, KindBadStatus, "completion status outside the terminal-success set")
	}
	return nil
}

// DoStream performs one call of a stateful compression stream (spec §4.5
// do_stream). last selects FINISH over SYNC_FLUSH for the final call of the
// stream. On success the session's stream position transitions NEW -> OLD
// unconditionally, regardless of flush type.
func DoStream(h SessionHandle, req *Request, last bool) error {
	s, err := lookupSession(h)
	if err != nil {
		return err
	}
	if req == nil {
		return NewError("DO_STREAM", KindInvalidParam, "nil request")
	}
	if isCipherOp(s.opType) {
		return NewError("DO_STREAM", KindInvalidParam, "streaming is only defined for compression sessions")
	}
	if len(s.streamCtxBuf) == 0 {
		return NewError("DO_STREAM", KindInvalidParam, "session has no stream scratch buffer (not opened in sync mode)")
	}

	table, scheduler, observer := currentTable()
	if table == nil || scheduler == nil {
		return NewError("DO_STREAM", KindInvalidParam, "runtime not initialized")
	}

	idx, err := scheduler.PickNext(s.schedKey)
	if err != nil {
		return WrapError("DO_STREAM", KindInvalidParam, err)
	}
	ctx := table.Contexts[idx]
	start := time.Now()

	flush := descriptor.FlushSyncFlush
	if last {
		flush = descriptor.FlushFinish
	}
	ctxDwIn := readStreamCtxDw(s.streamCtxBuf)
	raw := encodeRequest(s, req, 0, flush, descriptor.StreamModeStateful, s.streamPos, ctxDwIn)
	resp, ctxDwOut, err := dispatchOnce("DO_STREAM", s, ctx, raw)
	if perr := scheduler.PutCtx(idx); perr != nil {
		logging.Default().Warn("put_ctx failed", "ctx", idx, "error", perr)
	}
	if err != nil {
		recordOp(observer, s.opType, 0, time.Since(start), false)
		return err
	}

	req.Consumed, req.Produced, req.Status = resp.Consumed, resp.Produced, resp.Status
	req.Isize, req.Checksum = resp.Isize, resp.Checksum

	success := resp.Status == descriptor.StatusOK
	recordOp(observer, s.opType, uint64(resp.Produced), time.Since(start), success)
	if !success {
		return NewCtxError("DO_STREAM", idx, KindBadStatus, "completion status outside the terminal-success set")
	}
	writeStreamCtxDw(s.streamCtxBuf, ctxDwOut)
	s.streamPos = descriptor.StreamPosOld
	return nil
}

// DoAsync submits a request and returns immediately; callback runs later,
// exactly once, from whatever goroutine calls Poll or PollCtx (spec §4.5
// do_async, §5: "never invoked synchronously from the submitting call").
func DoAsync(h SessionHandle, req *Request, callback Callback) error {
	s, err := lookupSession(h)
	if err != nil {
		return err
	}
	if req == nil {
		return NewError("DO_ASYNC", KindInvalidParam, "nil request")
	}
	if callback == nil {
		return NewError("DO_ASYNC", KindInvalidParam, "nil callback")
	}
	if isCipherOp(s.opType) && len(req.Dst) < len(req.Src) {
		return NewError("DO_ASYNC", KindInvalidParam, "cipher destination capacity must be at least source length")
	}

	table, scheduler, observer := currentTable()
	if table == nil || scheduler == nil {
		return NewError("DO_ASYNC", KindInvalidParam, "runtime not initialized")
	}

	idx, err := scheduler.PickNext(s.schedKey)
	if err != nil {
		return WrapError("DO_ASYNC", KindInvalidParam, err)
	}
	if idx < 0 || idx >= len(table.Contexts) {
		_ = scheduler.PutCtx(idx)
		return NewCtxError("DO_ASYNC", idx, KindInvalidParam, "scheduler returned an out-of-range context index")
	}
	ctx := table.Contexts[idx]

	tag, err := ctx.Pool.Acquire(asyncSlot{callback: callback})
	if err != nil {
		_ = scheduler.PutCtx(idx)
		if errors.Is(err, queue.ErrPoolFull) {
			return NewCtxError("DO_ASYNC", idx, KindPoolFull, "message pool full")
		}
		return WrapError("DO_ASYNC", KindBusy, err)
	}

	raw := encodeRequest(s, req, tag, descriptor.FlushFinish, descriptor.StreamModeStateless, descriptor.StreamPosNew, [3]uint32{})

	_, sendErr := ctx.Handle.Send([]descriptor.Raw{raw})
	if perr := scheduler.PutCtx(idx); perr != nil {
		logging.Default().Warn("put_ctx failed", "ctx", idx, "error", perr)
	}
	if sendErr != nil {
		_ = ctx.Pool.Release(tag)
		recordOp(observer, s.opType, 0, 0, false)
		return WrapError("DO_ASYNC", KindHWAccess, sendErr)
	}
	return nil
}

// pollOneAttempt makes one non-blocking Recv attempt against globalIndex,
// harvesting and dispatching at most one completion. It is the PollFunc
// wired into every Greedy scheduler this package constructs, and is also
// reused by PollCtx for a single-context, caller-driven sweep.
func pollOneAttempt(globalIndex int, expect uint32, count *uint32) error {
	table, _, observer := currentTable()
	if table == nil || globalIndex < 0 || globalIndex >= len(table.Contexts) {
		return NewError("POLL", KindInvalidParam, "context index out of range")
	}
	ctx := table.Contexts[globalIndex]

	out := make([]descriptor.Raw, 1)
	n, err := ctx.Handle.Recv(out)
	if err != nil {
		return WrapError("POLL", KindHWAccess, err)
	}
	if n == 0 {
		return sched.ErrEAGAIN
	}

	tag := out[0].Tag()
	slot, lookupErr := ctx.Pool.Lookup(tag)
	if lookupErr != nil {
		logging.Default().Warn("stale or unknown completion tag", "ctx", globalIndex, "tag", tag, "error", lookupErr)
		return sched.ErrEAGAIN
	}

	cresp, decErr := descriptor.DecodeComp(out[0])
	if ctx.OpType == OpCipherEncrypt || ctx.OpType == OpCipherDecrypt {
		cr, cerr := descriptor.DecodeCipher(out[0])
		cresp.Consumed, cresp.Produced, cresp.Status = cr.Consumed, cr.Produced, cr.Status
		decErr = cerr
	}
	if decErr != nil {
		if errors.Is(decErr, descriptor.ErrSpuriousCompletion) {
			// Device reported completion with nothing consumed or produced:
			// treat exactly like an empty Recv. The slot stays acquired and
			// the callback does not fire; the tag resolves only if a later
			// completion for it arrives.
			return sched.ErrEAGAIN
		}
		_ = ctx.Pool.Release(tag)
		return WrapError("POLL", KindHWAccess, decErr)
	}

	result := Result{
		Tag:      tag,
		Consumed: cresp.Consumed,
		Produced: cresp.Produced,
		Status:   cresp.Status,
		Isize:    cresp.Isize,
		Checksum: cresp.Checksum,
	}
	if cresp.Status != descriptor.StatusOK {
		result.Err = NewCtxError("POLL", globalIndex, KindBadStatus, "completion status outside the terminal-success set")
	}

	callback := slot.callback
	callback(result)
	if relErr := ctx.Pool.Release(tag); relErr != nil {
		logging.Default().Warn("release failed for a completed tag", "ctx", globalIndex, "tag", tag, "error", relErr)
	}
	*count++
	recordOp(observer, ctx.OpType, uint64(cresp.Produced), 0, cresp.Status == descriptor.StatusOK)
	return nil
}

// PollCtx drains up to expect completions from one context, stopping early
// the first time Recv reports nothing available (spec §4.5 poll_ctx).
func PollCtx(globalIndex int, expect uint32, count *uint32) error {
	for i := uint32(0); i < expect; i++ {
		err := pollOneAttempt(globalIndex, expect, count)
		if err != nil {
			if errors.Is(err, sched.ErrEAGAIN) {
				return nil
			}
			return err
		}
		if *count >= expect {
			return nil
		}
	}
	return nil
}

// Poll drives the scheduler's async-region sweep (spec §4.5 poll). It is a
// thin wrapper so callers never need to reach into internal/sched
// directly.
func Poll(expect uint32, count *uint32) error {
	_, scheduler, _ := currentTable()
	if scheduler == nil {
		return NewError("POLL", KindInvalidParam, "runtime not initialized")
	}
	return scheduler.PollPolicy(expect, count)
}
