package proc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
)

// TestForkThenWaitReapsExactChild covers section 8's S1: a parent forks one
// child, the child exits with a status, and the parent's wait reaps exactly
// that pid and that status.
func TestForkThenWaitReapsExactChild(t *testing.T) {
	h := newTestHarness(t, 2)
	init := h.bootInit(t)

	fr := h.send(init.Pid(), testOp{kind: "fork"})
	require.Zero(t, fr.err)
	child := fr.childPid
	require.NotZero(t, child)

	er := h.send(child, testOp{kind: "exit", status: 7})
	require.Zero(t, er.err)

	wr := h.send(init.Pid(), testOp{kind: "wait"})
	require.Zero(t, wr.err)
	require.Equal(t, child, wr.waitPid)
	require.Equal(t, 7, wr.status)
}

// TestWaitWithNoChildrenReturnsECHILD covers S5.
func TestWaitWithNoChildrenReturnsECHILD(t *testing.T) {
	h := newTestHarness(t, 1)
	init := h.bootInit(t)

	wr := h.send(init.Pid(), testOp{kind: "wait"})
	require.Equal(t, -defs.ECHILD, wr.err)
}

// TestOrphanReparentedToInit covers S2: a process forks a child then exits
// before the child does; the child is reparented to init and init's wait
// eventually reaps it.
func TestOrphanReparentedToInit(t *testing.T) {
	h := newTestHarness(t, 3)
	init := h.bootInit(t)

	fr := h.send(init.Pid(), testOp{kind: "fork"})
	require.Zero(t, fr.err)
	parent := fr.childPid

	fr2 := h.send(parent, testOp{kind: "fork"})
	require.Zero(t, fr2.err)
	orphan := fr2.childPid

	er := h.send(parent, testOp{kind: "exit", status: 0})
	require.Zero(t, er.err)

	wr := h.send(init.Pid(), testOp{kind: "wait"})
	require.Zero(t, wr.err)
	require.Equal(t, parent, wr.waitPid)

	er2 := h.send(orphan, testOp{kind: "exit", status: 3})
	require.Zero(t, er2.err)

	wr2 := h.send(init.Pid(), testOp{kind: "wait"})
	require.Zero(t, wr2.err)
	require.Equal(t, orphan, wr2.waitPid)
	require.Equal(t, 3, wr2.status)
}

// TestForkCopiesAddressSpaceSizeAndTrapframe checks that a forked child
// starts with the parent's memory size and an identical trapframe except
// for a0, which fork's "child sees 0" contract requires be zeroed.
func TestForkCopiesAddressSpaceSizeAndTrapframe(t *testing.T) {
	h := newTestHarness(t, 2)
	init := h.bootInit(t)
	init.TF.A0 = 0xdead
	init.TF.A1 = 0xbeef

	fr := h.send(init.Pid(), testOp{kind: "fork"})
	require.Zero(t, fr.err)

	child := h.t.ByPid(h.observer, fr.childPid)
	require.NotNil(t, child)
	require.Equal(t, init.Sz, child.Sz)
	require.EqualValues(t, 0, child.TF.A0)
	require.EqualValues(t, 0xbeef, child.TF.A1)
}

// TestGrowProcShrinkAndGrow exercises sbrk's underlying primitive directly.
func TestGrowProcShrinkAndGrow(t *testing.T) {
	h := newTestHarness(t, 1)
	init := h.bootInit(t)
	start := init.Sz

	require.Zero(t, GrowProc(init, 4096))
	require.Equal(t, start+4096, init.Sz)

	require.Zero(t, GrowProc(init, -4096))
	require.Equal(t, start, init.Sz)
}
