package proc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
)

// TestSchedulerRunsEveryRunnableSlot boots several children and has each
// yield back to the scheduler a few times, checking every one keeps making
// progress rather than starving behind another Runnable slot — the
// round-robin guarantee section 4.6 describes.
func TestSchedulerRunsEveryRunnableSlot(t *testing.T) {
	h := newTestHarness(t, 2)
	init := h.bootInit(t)

	const n = 5
	pids := make([]defs.Pid_t, 0, n)
	for i := 0; i < n; i++ {
		fr := h.send(init.Pid(), testOp{kind: "fork"})
		require.Zero(t, fr.err)
		pids = append(pids, fr.childPid)
	}

	for round := 0; round < 3; round++ {
		for _, pid := range pids {
			res := h.send(pid, testOp{kind: "yield"})
			require.Zero(t, res.err)
		}
	}
}

// TestAllocProcAssignsDistinctMonotonicPids covers C1: every AllocProc call
// (here, every fork) hands out a fresh, strictly increasing pid.
func TestAllocProcAssignsDistinctMonotonicPids(t *testing.T) {
	h := newTestHarness(t, 2)
	init := h.bootInit(t)

	var last defs.Pid_t
	for i := 0; i < 10; i++ {
		fr := h.send(init.Pid(), testOp{kind: "fork"})
		require.Zero(t, fr.err)
		require.Greater(t, fr.childPid, last)
		last = fr.childPid
	}
}
