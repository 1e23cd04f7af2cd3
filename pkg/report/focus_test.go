package report

import (
	"testing"

	"github.com/srodi/nv-swaptop/pkg/types"
)

func TestSelectFocusPrefersMigrationThenMisalignment(t *testing.T) {
	u := func(v uint64) *uint64 { return &v }
	n := func(v int) *int { return &v }

	records := []types.UnifiedProcessRecord{
		{PID: 1, Name: "big-swap", SwapBytes: u(8 << 30)},
		{PID: 2, Name: "misaligned", SwapBytes: u(1 << 20), NumaNode: n(0), Misaligned: true},
		{PID: 3, Name: "migrated", SwapBytes: u(1), NumaNode: n(2), HBMMigration: true},
	}
	focus := SelectFocus(records)
	if focus == nil || focus.Record.PID != 3 {
		t.Fatalf("expected migrated process in focus, got %+v", focus)
	}
	if focus.Reason != "CPU process with most pages on GPU HBM node 2" {
		t.Fatalf("unexpected reason %q", focus.Reason)
	}

	focus = SelectFocus(records[:2])
	if focus == nil || focus.Record.PID != 2 {
		t.Fatalf("expected misaligned process, got %+v", focus)
	}

	focus = SelectFocus(records[:1])
	if focus == nil || focus.Reason != "8.0 GiB swapped out" {
		t.Fatalf("expected swap reason, got %+v", focus)
	}
}

func TestSelectFocusFallsBackToGPU(t *testing.T) {
	u := func(v uint64) *uint64 { return &v }
	idx := 1
	records := []types.UnifiedProcessRecord{
		{PID: 5, Name: "idle", SwapBytes: u(0)},
		{PID: 6, Name: "cuda", GPUBytes: u(2 << 30), GPUIndex: &idx, Location: types.GPUOnly},
	}
	focus := SelectFocus(records)
	if focus == nil || focus.Record.PID != 6 || focus.Reason != "2.0 GiB on GPU 1" {
		t.Fatalf("unexpected focus %+v", focus)
	}

	if SelectFocus(records[:1]) != nil {
		t.Fatalf("nothing interesting should yield no focus")
	}
	if SelectFocus(nil) != nil {
		t.Fatalf("empty input should yield no focus")
	}
}
