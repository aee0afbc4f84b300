package sched

import (
	"errors"
	"sync"
	"testing"
)

func noopPoll(globalIndex int, expect uint32, count *uint32) error {
	*count = expect
	return nil
}

func TestGreedy_PickNext_BasicRotation(t *testing.T) {
	g := NewGreedy(1, 1, noopPoll)
	g.BindCtx(0, ModeSync, 0, 10, 3) // global indices 10, 11, 12

	seen := map[int]int{}
	for i := 0; i < 6; i++ {
		idx, err := g.PickNext(Key{OpType: 0, Mode: ModeSync, NumaID: 0})
		if err != nil {
			t.Fatalf("PickNext: %v", err)
		}
		seen[idx]++
		if err := g.PutCtx(idx); err != nil {
			t.Fatalf("PutCtx: %v", err)
		}
	}
	for _, idx := range []int{10, 11, 12} {
		if seen[idx] == 0 {
			t.Errorf("expected ctx %d to be picked at least once across 6 rounds, got %v", idx, seen)
		}
	}
}

func TestGreedy_PickNext_InvalidKeyWhenUnbound(t *testing.T) {
	g := NewGreedy(1, 1, noopPoll)
	_, err := g.PickNext(Key{OpType: 5, Mode: ModeSync, NumaID: 0})
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestGreedy_PickNext_NumaFallback(t *testing.T) {
	g := NewGreedy(1, 4, noopPoll)
	g.BindCtx(0, ModeSync, 2, 0, 1) // only NUMA node 2 has anything bound

	idx, err := g.PickNext(Key{OpType: 0, Mode: ModeSync, NumaID: 0})
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if idx != 0 {
		t.Errorf("expected global index 0, got %d", idx)
	}
}

func TestGreedy_PickNext_NonBlockingThenBlockingFallback(t *testing.T) {
	g := NewGreedy(1, 1, noopPoll)
	g.BindCtx(0, ModeSync, 0, 0, 1) // single context

	idx1, err := g.PickNext(Key{OpType: 0, Mode: ModeSync, NumaID: 0})
	if err != nil {
		t.Fatalf("first pick: %v", err)
	}

	done := make(chan int, 1)
	go func() {
		idx2, err := g.PickNext(Key{OpType: 0, Mode: ModeSync, NumaID: 0})
		if err != nil {
			t.Errorf("second pick: %v", err)
			done <- -1
			return
		}
		done <- idx2
	}()

	// release the lone context so the second pick in the goroutine above,
	// whether still probing or already in its blocking fallback, can acquire it
	if err := g.PutCtx(idx1); err != nil {
		t.Fatalf("PutCtx: %v", err)
	}

	idx2 := <-done
	if idx2 != 0 {
		t.Errorf("expected the lone context (index 0), got %d", idx2)
	}
}

func TestGreedy_GlobalIndexMappingAcrossRegions(t *testing.T) {
	g := NewGreedy(2, 1, noopPoll)
	g.BindCtx(0, ModeSync, 0, 0, 2)  // region A: global 0,1
	g.BindCtx(1, ModeSync, 0, 2, 3)  // region B: global 2,3,4

	idxA, err := g.PickNext(Key{OpType: 0, Mode: ModeSync, NumaID: 0})
	if err != nil {
		t.Fatalf("pick A: %v", err)
	}
	if idxA > 1 {
		t.Errorf("expected region A index in [0,1], got %d", idxA)
	}

	idxB, err := g.PickNext(Key{OpType: 1, Mode: ModeSync, NumaID: 0})
	if err != nil {
		t.Fatalf("pick B: %v", err)
	}
	if idxB < 2 || idxB > 4 {
		t.Errorf("expected region B index in [2,4], got %d", idxB)
	}

	if err := g.PutCtx(idxA); err != nil {
		t.Fatalf("PutCtx A: %v", err)
	}
	if err := g.PutCtx(idxB); err != nil {
		t.Fatalf("PutCtx B: %v", err)
	}
}

func TestGreedy_PollPolicy_StopsAtExpect(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	poll := func(globalIndex int, expect uint32, count *uint32) error {
		mu.Lock()
		calls++
		mu.Unlock()
		*count++
		return nil
	}

	g := NewGreedy(1, 1, poll)
	g.BindCtx(0, ModeAsync, 0, 0, 3)

	var count uint32
	if err := g.PollPolicy(2, &count); err != nil {
		t.Fatalf("PollPolicy: %v", err)
	}
	if count < 2 {
		t.Errorf("expected count >= 2, got %d", count)
	}
}

func TestGreedy_PollPolicy_PropagatesNonEAGAINError(t *testing.T) {
	sentinel := errors.New("boom")
	poll := func(globalIndex int, expect uint32, count *uint32) error {
		return sentinel
	}

	g := NewGreedy(1, 1, poll)
	g.BindCtx(0, ModeAsync, 0, 0, 1)

	var count uint32
	err := g.PollPolicy(1, &count)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestGreedy_PollPolicy_SkipsEAGAIN(t *testing.T) {
	attempts := 0
	poll := func(globalIndex int, expect uint32, count *uint32) error {
		attempts++
		if attempts < 3 {
			return ErrEAGAIN
		}
		*count = expect
		return nil
	}

	g := NewGreedy(1, 1, poll)
	g.BindCtx(0, ModeAsync, 0, 0, 1)

	var count uint32
	if err := g.PollPolicy(1, &count); err != nil {
		t.Fatalf("PollPolicy: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count=1, got %d", count)
	}
}

func TestGreedy_Cursor(t *testing.T) {
	g := NewGreedy(1, 1, noopPoll)
	g.BindCtx(0, ModeSync, 0, 0, 2)

	if _, ok := g.Cursor(9, ModeSync, 0); ok {
		t.Error("expected Cursor to report false for an unbound region")
	}

	idx, err := g.PickNext(Key{OpType: 0, Mode: ModeSync, NumaID: 0})
	if err != nil {
		t.Fatalf("PickNext: %v", err)
	}
	_ = g.PutCtx(idx)

	if _, ok := g.Cursor(0, ModeSync, 0); !ok {
		t.Error("expected Cursor to report true for a bound region")
	}
}
