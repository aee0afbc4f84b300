// Package e2e exercises the runtime end to end through the public API
// only, never reaching into internal/* directly.
package e2e

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	uadk "github.com/hzhuang1/uadk"
	"github.com/hzhuang1/uadk/internal/descriptor"
	"github.com/hzhuang1/uadk/internal/sched"
)

func initRuntime(t *testing.T, mode sched.Mode, numCtx int) {
	t.Helper()
	scheduler := uadk.NewGreedyScheduler(2, 1)
	cfgs := make([]uadk.ContextConfig, 0, numCtx)
	for i := 0; i < numCtx; i++ {
		cfgs = append(cfgs, uadk.NewTestContext(uadk.OpCompress, mode, 0))
	}
	uadk.BindContexts(scheduler, uadk.OpCompress, mode, 0, 0, numCtx)
	require.NoError(t, uadk.Init(cfgs, scheduler))
	t.Cleanup(uadk.ResetForTest)
}

// TestS1_SyncZlibOneShot: one context, one synchronous zlib compress call.
func TestS1_SyncZlibOneShot(t *testing.T) {
	initRuntime(t, sched.ModeSync, 1)

	h, err := uadk.AllocSess(uadk.SessionSetup{Algorithm: descriptor.AlgZlib, OpType: uadk.OpCompress, Mode: sched.ModeSync})
	require.NoError(t, err)
	defer uadk.FreeSess(h)

	src := bytes.Repeat([]byte("end to end zlib "), 32)
	req := &uadk.Request{Src: src, Dst: make([]byte, 4096)}
	require.NoError(t, uadk.DoSync(h, req))
	require.Equal(t, descriptor.StatusOK, req.Status)
	require.Less(t, req.Produced, uint32(len(src)))
}

// TestS2_SyncGzipOneShot: a synchronous gzip compress call, checking the
// emitted stream's magic header.
func TestS2_SyncGzipOneShot(t *testing.T) {
	initRuntime(t, sched.ModeSync, 1)

	h, err := uadk.AllocSess(uadk.SessionSetup{Algorithm: descriptor.AlgGzip, OpType: uadk.OpCompress, Mode: sched.ModeSync})
	require.NoError(t, err)
	defer uadk.FreeSess(h)

	src := bytes.Repeat([]byte("end to end gzip "), 32)
	dst := make([]byte, 4096)
	req := &uadk.Request{Src: src, Dst: dst}
	require.NoError(t, uadk.DoSync(h, req))
	require.Equal(t, []byte{0x1f, 0x8b, 0x08}, dst[:3])
}

// TestS3_AsyncSingleCompletion: one async submit, harvested by Poll.
func TestS3_AsyncSingleCompletion(t *testing.T) {
	initRuntime(t, sched.ModeAsync, 1)

	h, err := uadk.AllocSess(uadk.SessionSetup{Algorithm: descriptor.AlgZlib, OpType: uadk.OpCompress, Mode: sched.ModeAsync})
	require.NoError(t, err)
	defer uadk.FreeSess(h)

	done := make(chan uadk.Result, 1)
	req := &uadk.Request{Src: []byte("async e2e"), Dst: make([]byte, 4096)}
	require.NoError(t, uadk.DoAsync(h, req, func(r uadk.Result) { done <- r }))

	var count uint32
	require.NoError(t, uadk.Poll(1, &count))
	require.EqualValues(t, 1, count)

	result := <-done
	require.Equal(t, descriptor.StatusOK, result.Status)
	require.NoError(t, result.Err)
}

// TestS4_AsyncFanIn: nine concurrent producers submitting async requests
// on a three-context pool, fanned out with an errgroup and harvested by
// repeated polling.
func TestS4_AsyncFanIn(t *testing.T) {
	const producers = 9
	initRuntime(t, sched.ModeAsync, 3)

	h, err := uadk.AllocSess(uadk.SessionSetup{Algorithm: descriptor.AlgZlib, OpType: uadk.OpCompress, Mode: sched.ModeAsync})
	require.NoError(t, err)
	defer uadk.FreeSess(h)

	completions := make(chan uadk.Result, producers)
	var g errgroup.Group
	for i := 0; i < producers; i++ {
		i := i
		g.Go(func() error {
			src := bytes.Repeat([]byte{byte('a' + i)}, 256)
			req := &uadk.Request{Src: src, Dst: make([]byte, 4096)}
			return uadk.DoAsync(h, req, func(r uadk.Result) { completions <- r })
		})
	}
	require.NoError(t, g.Wait())

	var count uint32
	for count < producers {
		require.NoError(t, uadk.Poll(producers, &count))
	}
	for i := 0; i < producers; i++ {
		r := <-completions
		require.NoError(t, r.Err)
	}
}

// TestS5_SyncTimeoutOnNeverCompletingDriver: a driver that never reports
// completion exhausts MaxRetry and surfaces KindTimeout.
func TestS5_SyncTimeoutOnNeverCompletingDriver(t *testing.T) {
	if testing.Short() {
		t.Skip("spins the full MaxRetry bound; skip in -short")
	}

	scheduler := uadk.NewGreedyScheduler(1, 1)
	cfgs := []uadk.ContextConfig{uadk.NewNeverCompleteContext(uadk.OpCompress, sched.ModeSync, 0)}
	uadk.BindContexts(scheduler, uadk.OpCompress, sched.ModeSync, 0, 0, 1)
	require.NoError(t, uadk.Init(cfgs, scheduler))
	defer uadk.ResetForTest()

	h, err := uadk.AllocSess(uadk.SessionSetup{Algorithm: descriptor.AlgZlib, OpType: uadk.OpCompress, Mode: sched.ModeSync})
	require.NoError(t, err)
	defer uadk.FreeSess(h)

	req := &uadk.Request{Src: []byte("never completes"), Dst: make([]byte, 4096)}
	err = uadk.DoSync(h, req)
	require.True(t, uadk.IsKind(err, uadk.KindTimeout))
}

// TestS6_WeakDESKeyRejected: set_key refuses a classic weak DES key.
func TestS6_WeakDESKeyRejected(t *testing.T) {
	initRuntime(t, sched.ModeSync, 1)

	h, err := uadk.AllocSess(uadk.SessionSetup{Algorithm: descriptor.AlgDES, OpType: uadk.OpCipherEncrypt, Mode: sched.ModeSync})
	require.NoError(t, err)
	defer uadk.FreeSess(h)

	weak := []byte{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01}
	err = uadk.SetKey(h, weak)
	require.True(t, uadk.IsKind(err, uadk.KindInvalidParam))

	strong := []byte{0x13, 0x34, 0x57, 0x79, 0x9B, 0xBC, 0xDF, 0xF1}
	require.NoError(t, uadk.SetKey(h, strong))
}
