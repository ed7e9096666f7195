package proc

import (
	"fmt"
	"sync"

	"mem"
)

var trampolineOnce sync.Once
var trampolinePage mem.Pa_t

// trampoline returns the physical page backing the shared trampoline code,
// allocating it once per process. Every address space maps this same page
// read+execute; it is never freed by freeProcLocked, matching the contract that
// "the trampoline is shared kernel code" and outlives any one process.
func trampoline() mem.Pa_t {
	trampolineOnce.Do(func() {
		_, pa, ok := mem.Kalloc()
		if !ok {
			panic("out of memory allocating the trampoline page")
		}
		trampolinePage = pa
	})
	return trampolinePage
}

// Scheduler runs hart h's dispatch loop forever (component C6). Each pass
// enables interrupts (so an idle machine can still be woken by one), then
// walks the table in strict index order looking for Runnable slots.
//
// The slot lock is held only for the brief Runnable->Running transition —
// never across the process's actual execution; Cpu.proc is cleared afterward
// without taking it. That execution is instead bracketed by a channel rendezvous
// (resume/parked) standing in for swtch: the scheduler goroutine blocks on
// <-p.parked exactly as a hart would block inside swtch until the process
// calls Sched again, and the process goroutine is free to take and release
// the same slot lock itself (from Yield/Sleep/Exit) while it runs, just as
// wakeup or kill on another hart may.
func (t *Table) Scheduler(h *Cpu) {
	for {
		h.mu.Lock()
		h.enabled = true
		h.mu.Unlock()

		for i := range t.slots {
			p := &t.slots[i]
			p.Lock.Lock(h)
			if p.state != Runnable {
				p.Lock.Unlock(h)
				continue
			}
			p.state = Running
			h.setProc(p)
			p.Lock.Unlock(h)

			p.resume <- h
			<-p.parked

			h.setProc(nil)
		}
	}
}

// Sched is the entry point from a running process back to its hart's
// scheduler (component C6). Preconditions: the caller must already hold
// p.Lock, must hold no other lock (h.Noff()==1), must not be Running, and
// interrupts must currently be disabled. Sched panics on the last three;
// Spinlock records no owner, so holding p.Lock is not checked. Sched releases p.Lock while parked — so another hart's wakeup
// or kill can observe and act on this slot — and reacquires it before
// returning, matching the entry contract that the slot lock is held both
// when Sched is called and when it returns. The hart that eventually
// resumes this slot need not be h (as on a real multiprocessor, any hart's
// scheduler loop may pick it up next); Sched returns whichever hart actually
// did, and callers must use that value afterward rather than the h they
// called in with.
func Sched(h *Cpu, p *Proc) *Cpu {
	if h.Noff() != 1 {
		panic("sched: locks held besides the process lock")
	}
	if p.state == Running {
		panic("sched: process is still Running")
	}
	if h.IntrGet() {
		panic("sched: interrupts enabled")
	}

	h.mu.Lock()
	intena := h.intena
	h.mu.Unlock()

	p.Lock.Unlock(h)
	p.parked <- struct{}{}
	newH := <-p.resume
	p.Lock.Lock(newH)

	newH.mu.Lock()
	newH.intena = intena
	newH.mu.Unlock()

	return newH
}

// Yield gives up the hart voluntarily, transitioning Runnable and invoking
// Sched, exactly as the reference yield() does. It returns the hart that
// eventually resumed the process, since — as with Sched and Sleep — that
// need not be h: callers must use the returned value for anything they do
// afterward.
func Yield(h *Cpu, p *Proc) *Cpu {
	p.Lock.Lock(h)
	p.state = Runnable
	h2 := Sched(h, p)
	p.Lock.Unlock(h2)
	return h2
}

// runSlot is the body of the goroutine backing a table slot. It blocks on
// resume until the scheduler first schedules it, then invokes the entry
// thunk exactly once — the Go analogue of context.ra pointing at forkret —
// after which the thunk itself is responsible for calling Sched again
// (via Yield/Sleep) whenever it wants to give the hart back, or for exiting
// the process, whose last Sched call simply never returns to this goroutine.
func runSlot(p *Proc) {
	h := <-p.resume
	p.Lock.Lock(h)
	entry := p.entry
	if entry == nil {
		panic("runSlot: slot scheduled with no entry thunk")
	}
	entry(h, p)
}

// StartSlot launches the goroutine for a freshly allocated slot. Called once
// by whoever finishes initializing it (UserInit, Fork) after the slot has
// been fully initialized, marked Runnable and unlocked.
func StartSlot(p *Proc) {
	go runSlot(p)
}

// forkretOnce gates the one-time filesystem initialization Forkret performs
// for the first fork-returned process of a Table. It holds one sync.Once per
// Table, so every table built by NewTable runs its own init.
var forkretOnce sync.Map // *Table -> *sync.Once

// Forkret is the entry thunk installed on every slot at AllocProc time. It
// releases the slot lock (mirroring the reference forkret's first action),
// performs one-time filesystem init, then calls into userReturn, the
// trap-return path collaborator.
func Forkret(h *Cpu, p *Proc, fsinit func(), userReturn func(*Cpu, *Proc)) {
	p.Lock.Unlock(h)
	once, _ := forkretOnce.LoadOrStore(p.table, new(sync.Once))
	once.(*sync.Once).Do(func() {
		if fsinit != nil {
			fsinit()
		}
	})
	userReturn(h, p)
}

// Procdump prints "pid state name" for every non-Unused slot, lock-free, for
// recovery use (component C9).
func (t *Table) Procdump() string {
	s := ""
	t.Each(func(p *Proc) {
		s += fmt.Sprintf("%d %s %s\n", p.pid, p.state, p.NameString())
	})
	return s
}
