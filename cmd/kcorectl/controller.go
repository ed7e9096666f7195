package main

import (
	"fmt"
	"time"

	"defs"
	"proc"
)

// step is one scenario instruction, executed inside the named process's own
// goroutine (its Table.SetTrapReturn hook) so that fork/wait/kill/yield/exit run
// exactly where the scheduler's channel protocol requires them to: on the
// goroutine currently standing in for that process's execution, not on
// whichever goroutine is driving the scenario.
type step struct {
	op     string
	target defs.Pid_t
	status int
	ticks  int
}

// stepResult reports a completed step back to the scenario driver.
type stepResult struct {
	childPid defs.Pid_t
	waitPid  defs.Pid_t
	status   int
	err      defs.Err_t
}

// control is the rendezvous a named process's trapReturn loop reads
// commands from and writes results back to. One exists per live process,
// looked up by pid.
type control struct {
	steps chan step
	done  chan stepResult
}

// registry maps a running process's pid to its control channel pair. A
// harness simplification, not kernel semantics: real syscalls arrive via a
// trap, not a channel send from an external driver.
type registry struct {
	mu   chan struct{} // binary semaphore guarding ctrl
	ctrl map[defs.Pid_t]*control
}

func newRegistry() *registry {
	r := &registry{mu: make(chan struct{}, 1), ctrl: make(map[defs.Pid_t]*control)}
	r.mu <- struct{}{}
	return r
}

func (r *registry) lock()   { <-r.mu }
func (r *registry) unlock() { r.mu <- struct{}{} }

func (r *registry) register(pid defs.Pid_t) *control {
	c := &control{steps: make(chan step), done: make(chan stepResult)}
	r.lock()
	r.ctrl[pid] = c
	r.unlock()
	return c
}

// await blocks until pid's controller exists, polling briefly. A newly
// forked child's own goroutine can reach its trapReturn hook and look itself
// up before the parent's runProcessScript — which only learns the child's
// pid once Table.Fork returns — has finished calling register for it; the
// short poll closes that harness-only race.
func (r *registry) await(pid defs.Pid_t) *control {
	for {
		r.lock()
		c, ok := r.ctrl[pid]
		r.unlock()
		if ok {
			return c
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func (r *registry) forget(pid defs.Pid_t) {
	r.lock()
	delete(r.ctrl, pid)
	r.unlock()
}

// send delivers s to pid's controller and waits for its result, the
// scenario driver's only way of making a process do anything.
func (r *registry) send(pid defs.Pid_t, s step) stepResult {
	c := r.await(pid)
	c.steps <- s
	return <-c.done
}

// runProcessScript is the trap-return simulation installed via
// Table.SetTrapReturn: every process, from init through every fork
// descendant, runs this same loop for as long as it is alive, executing
// whatever steps the scenario driver sends to its controller.
func (m *machine) runProcessScript(h *proc.Cpu, p *proc.Proc) {
	ctrl := m.registry.await(p.Pid())
	for s := range ctrl.steps {
		m.log.Debug("executing step", "pid", p.Pid(), "op", s.op)
		m.traceAppend(fmt.Sprintf("pid %d: %s", p.Pid(), s.op))
		switch s.op {
		case "fork":
			child, err := m.table.Fork(h, p)
			res := stepResult{err: err}
			if err == 0 {
				res.childPid = child.Pid()
				m.registry.register(child.Pid())
			}
			ctrl.done <- res
		case "wait":
			newH, pid, status, err := m.table.Wait(h, p)
			h = newH
			ctrl.done <- stepResult{waitPid: pid, status: status, err: err}
		case "kill":
			ok := m.table.Kill(h, s.target)
			res := stepResult{}
			if !ok {
				res.err = -defs.ESRCH
			}
			ctrl.done <- res
		case "yield":
			h = proc.Yield(h, p)
			ctrl.done <- stepResult{}
		case "exit":
			m.registry.forget(p.Pid())
			ctrl.done <- stepResult{}
			m.table.Exit(h, p, s.status)
			return // unreachable: Exit's final Sched never returns
		default:
			panic(fmt.Sprintf("runProcessScript: unknown op %q", s.op))
		}
	}
}
