package proc

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"defs"
)

// TestWakeupOnlyWakesMatchingChannel covers the unrelated-channel part of
// section 8's S3: two processes sleep on distinct channels; waking one
// channel leaves the other asleep.
func TestWakeupOnlyWakesMatchingChannel(t *testing.T) {
	h := newTestHarness(t, 3)
	init := h.bootInit(t)

	fr1 := h.send(init.Pid(), testOp{kind: "fork"})
	require.Zero(t, fr1.err)
	a := h.t.ByPid(h.observer, fr1.childPid)

	fr2 := h.send(init.Pid(), testOp{kind: "fork"})
	require.Zero(t, fr2.err)
	b := h.t.ByPid(h.observer, fr2.childPid)

	chanA := ChanOf(unsafe.Pointer(a))
	chanB := ChanOf(unsafe.Pointer(b))
	require.NotEqual(t, chanA, chanB)

	doneA := make(chan testOpResult, 1)
	go func() { doneA <- h.send(a.Pid(), testOp{kind: "sleep", ch: chanA, lock: &a.Lock}) }()
	doneB := make(chan testOpResult, 1)
	go func() { doneB <- h.send(b.Pid(), testOp{kind: "sleep", ch: chanB, lock: &b.Lock}) }()

	require.Eventually(t, func() bool {
		return a.State() == Sleeping && b.State() == Sleeping
	}, time.Second, time.Millisecond)

	h.t.Wakeup(h.observer, chanB)
	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("b never woke after Wakeup(chanB)")
	}

	select {
	case <-doneA:
		t.Fatal("a woke up on an unrelated channel's wakeup")
	case <-time.After(50 * time.Millisecond):
	}

	h.t.Wakeup(h.observer, chanA)
	select {
	case <-doneA:
	case <-time.After(time.Second):
		t.Fatal("a never woke after Wakeup(chanA)")
	}
}

// TestKillWakesSleeperWithoutWakeup covers S4: killing a process blocked in
// Wait (sleeping on its own identity) wakes it immediately with EINTR, with
// no Wakeup call involved at all.
func TestKillWakesSleeperWithoutWakeup(t *testing.T) {
	h := newTestHarness(t, 3)
	init := h.bootInit(t)

	fr := h.send(init.Pid(), testOp{kind: "fork"})
	require.Zero(t, fr.err)
	parent := fr.childPid

	fr2 := h.send(parent, testOp{kind: "fork"})
	require.Zero(t, fr2.err)
	// child deliberately never exits.

	waitDone := make(chan testOpResult, 1)
	go func() { waitDone <- h.send(parent, testOp{kind: "wait"}) }()

	require.Eventually(t, func() bool {
		p := h.t.ByPid(h.observer, parent)
		return p != nil && p.State() == Sleeping
	}, time.Second, time.Millisecond)

	require.True(t, h.t.Kill(h.observer, parent))

	select {
	case res := <-waitDone:
		require.Equal(t, -defs.EINTR, res.err)
	case <-time.After(time.Second):
		t.Fatal("kill did not wake the process blocked in wait")
	}
}
