package proc

import (
	"sync"
	"testing"

	"defs"
)

// testOp is one instruction a test drives a process through on its own
// trap-return goroutine, the same shape cmd/kcorectl's scenario steps take
// and for the same reason: Sched's channel rendezvous only has a
// counterpart when a Scheduler loop is actively servicing the slot, so
// fork/wait/kill/yield must run on the process's own goroutine, never on
// the test's.
type testOp struct {
	kind   string // "fork", "exit", "wait", "kill", "yield", "sleep"
	target defs.Pid_t
	status int
	ch     Chan
	lock   *Spinlock
}

type testOpResult struct {
	childPid defs.Pid_t
	waitPid  defs.Pid_t
	status   int
	err      defs.Err_t
}

type testControl struct {
	ops  chan testOp
	done chan testOpResult
}

// testHarness wires a Table's trap-return hook to a per-pid testControl
// registry, letting a test drive any live process (including fork
// descendants it never directly allocated) by pid.
type testHarness struct {
	t     *Table
	harts []*Cpu
	// observer is a hart never given to a Scheduler loop, for the test
	// goroutine itself to call Wakeup/Kill/ByPid with.
	observer *Cpu

	mu   sync.Mutex
	ctrl map[defs.Pid_t]*testControl
}

func newTestHarness(tb testing.TB, nharts int) *testHarness {
	h := &testHarness{t: NewTable(), ctrl: map[defs.Pid_t]*testControl{}, observer: NewCpu(-1)}
	h.t.SetTrapReturn(h.runScript)
	h.harts = make([]*Cpu, nharts)
	for i := range h.harts {
		c := NewCpu(i)
		h.harts[i] = c
		go h.t.Scheduler(c)
	}
	return h
}

func (h *testHarness) register(pid defs.Pid_t) *testControl {
	c := &testControl{ops: make(chan testOp), done: make(chan testOpResult)}
	h.mu.Lock()
	h.ctrl[pid] = c
	h.mu.Unlock()
	return c
}

func (h *testHarness) lookup(pid defs.Pid_t) *testControl {
	for {
		h.mu.Lock()
		c, ok := h.ctrl[pid]
		h.mu.Unlock()
		if ok {
			return c
		}
	}
}

func (h *testHarness) forget(pid defs.Pid_t) {
	h.mu.Lock()
	delete(h.ctrl, pid)
	h.mu.Unlock()
}

// send delivers op to pid's controller and blocks for its result.
func (h *testHarness) send(pid defs.Pid_t, op testOp) testOpResult {
	c := h.lookup(pid)
	c.ops <- op
	return <-c.done
}

// bootInit starts pid 1 and waits for its controller to be ready.
func (h *testHarness) bootInit(tb testing.TB) *Proc {
	tb.Helper()
	h.register(1)
	p := h.t.UserInit(h.harts[0], []byte{0})
	if p == nil {
		tb.Fatal("UserInit returned nil")
	}
	if p.Pid() != 1 {
		tb.Fatalf("expected pid 1, got %d", p.Pid())
	}
	return p
}

func (h *testHarness) runScript(hart *Cpu, p *Proc) {
	c := h.lookup(p.Pid())
	for op := range c.ops {
		switch op.kind {
		case "fork":
			child, err := h.t.Fork(hart, p)
			res := testOpResult{err: err}
			if err == 0 {
				res.childPid = child.Pid()
				h.register(child.Pid())
			}
			c.done <- res
		case "wait":
			newHart, pid, status, err := h.t.Wait(hart, p)
			hart = newHart
			c.done <- testOpResult{waitPid: pid, status: status, err: err}
		case "kill":
			ok := h.t.Kill(hart, op.target)
			res := testOpResult{}
			if !ok {
				res.err = -defs.ESRCH
			}
			c.done <- res
		case "yield":
			hart = Yield(hart, p)
			c.done <- testOpResult{}
		case "sleep":
			// Sleep's contract (matching the reference sleep()): when
			// outerLock is the slot's own lock, the caller must already
			// hold it.
			p.Lock.Lock(hart)
			hart = Sleep(hart, p, op.ch, op.lock)
			p.Lock.Unlock(hart)
			c.done <- testOpResult{}
		case "exit":
			h.forget(p.Pid())
			c.done <- testOpResult{}
			h.t.Exit(hart, p, op.status)
			return
		default:
			panic("runScript: unknown op " + op.kind)
		}
	}
}
