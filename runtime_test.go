package uadk

import (
	"testing"

	"github.com/hzhuang1/uadk/internal/sched"
)

func TestInit_RejectsDoubleInit(t *testing.T) {
	defer ResetForTest()

	scheduler := NewGreedyScheduler(1, 1)
	cfgs := []ContextConfig{NewTestContext(OpCompress, sched.ModeSync, 0)}
	BindContexts(scheduler, OpCompress, sched.ModeSync, 0, 0, 1)

	if err := Init(cfgs, scheduler); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	if err := Init(cfgs, scheduler); !IsKind(err, KindInvalidParam) {
		t.Fatalf("expected KindInvalidParam on double Init, got %v", err)
	}
}

func TestInit_RejectsNilScheduler(t *testing.T) {
	defer ResetForTest()
	cfgs := []ContextConfig{NewTestContext(OpCompress, sched.ModeSync, 0)}
	if err := Init(cfgs, nil); !IsKind(err, KindInvalidParam) {
		t.Fatalf("expected KindInvalidParam for nil scheduler, got %v", err)
	}
}

func TestInit_RejectsEmptyContextList(t *testing.T) {
	defer ResetForTest()
	scheduler := NewGreedyScheduler(1, 1)
	if err := Init(nil, scheduler); !IsKind(err, KindInvalidParam) {
		t.Fatalf("expected KindInvalidParam for an empty context list, got %v", err)
	}
}

func TestInit_FailureLeavesRuntimeUninitialized(t *testing.T) {
	defer ResetForTest()
	scheduler := NewGreedyScheduler(1, 1)
	cfgs := []ContextConfig{{OpType: OpCompress, Mode: sched.ModeSync, SVACapable: false}}

	if err := Init(cfgs, scheduler); err == nil {
		t.Fatal("expected Init to fail on a non-SVA context")
	}
	if IsInitialized() {
		t.Fatal("a failed Init must not leave the runtime initialized")
	}
}

func TestUninit_IdempotentOnUninitialized(t *testing.T) {
	defer ResetForTest()
	if err := Uninit(); err != nil {
		t.Fatalf("Uninit on an uninitialized runtime should be a no-op, got %v", err)
	}
}

func TestInitUninit_RoundTrip(t *testing.T) {
	scheduler := NewGreedyScheduler(1, 1)
	cfgs := []ContextConfig{NewTestContext(OpCompress, sched.ModeSync, 0)}
	BindContexts(scheduler, OpCompress, sched.ModeSync, 0, 0, 1)

	if err := Init(cfgs, scheduler); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !IsInitialized() {
		t.Fatal("expected runtime to report initialized")
	}
	if err := Uninit(); err != nil {
		t.Fatalf("Uninit failed: %v", err)
	}
	if IsInitialized() {
		t.Fatal("expected runtime to report uninitialized after Uninit")
	}
}

func TestMetricsSnapshot_ZeroValueBeforeInit(t *testing.T) {
	defer ResetForTest()
	snap := MetricsSnapshot()
	if snap.TotalOps != 0 {
		t.Errorf("expected a zero-value snapshot before Init, got %+v", snap)
	}
}
