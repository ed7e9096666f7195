// Package proc is the process table and scheduling core: process identity
// allocation, the fixed process table, fork/exit/wait lifecycle, the
// per-hart round-robin scheduler and its context-switch handoff, the
// sleep/wakeup rendezvous, and kill. Syscall-argument marshalling and
// dispatch live in package scall, layered on top. Everything this package
// delegates (physical pages, address spaces, file descriptors, the
// filesystem) lives in mem, vm, fd and fsys.
package proc

import (
	"sync/atomic"
	"unsafe"

	"accnt"
	"defs"
	"fd"
	"mem"
	"vm"
)

// State is the sum type a process slot occupies. Representing it as a
// distinct type (rather than a bare int) plus the invariant-checking helpers
// below is this repository's approximation of a tagged union: Go has no
// variant types, so the fields that are only meaningful in one state (Chan,
// Xstate) are carried unconditionally on Proc but validated against State by
// checkInvariant.
type State int

const (
	Unused State = iota
	Used
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Used:
		return "used"
	case Sleeping:
		return "sleeping"
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	default:
		return "invalid"
	}
}

// Chan is an opaque sleep/wakeup token: the address of something stable,
// reduced to an uncomparable-by-accident integer so nothing can dereference
// it. Zero means "not sleeping."
type Chan uintptr

// ChanOf derives a Chan from the address of any stable value. Two calls with
// the same underlying address produce the same Chan, which is exactly the
// "pointer identity as rendezvous key" property sleep/wakeup depends on.
func ChanOf(p unsafe.Pointer) Chan {
	return Chan(uintptr(p))
}

// Ref is a generation-checked handle to a table slot, replacing a raw
// *Proc parent pointer (design note: "Replacing raw shared pointers"). A Ref
// is only valid for as long as the referenced slot's generation matches;
// across a slot's reuse, stale Refs are detected rather than silently
// dereferencing the wrong process.
type Ref struct {
	Index int
	Gen    uint64
}

// entryFunc is the "forkret" handoff: a thunk stored on a slot at alloc time
// and invoked the first time the slot's goroutine is scheduled, standing in
// for context.ra pointing at forkret (design note: "Scheduler->process
// handoff"). It receives the hart that scheduled it, since — as in a real
// multiprocessor — a slot has no fixed hart of its own.
type entryFunc func(h *Cpu, p *Proc)

// Trapframe holds the subset of user register state this core's contract
// actually touches: the syscall number and argument registers, the program
// counter and stack pointer installed at userinit, and the return-value
// register dispatch writes back into.
type Trapframe struct {
	Epc uintptr
	Sp  uintptr

	A0, A1, A2, A3, A4, A5, A7 uint64
}

// Proc is one process-table slot. Every field below lock is guarded by Lock
// except Parent (guarded by the table's wait-lock) and Pid (guarded at
// assignment time by the table's pid-lock, read-only and stable thereafter).
type Proc struct {
	Lock Spinlock

	state State
	gen   uint64

	ch     Chan
	killed atomic.Bool
	xstate int

	pid  defs.Pid_t
	Name [16]byte

	Parent Ref
	hasParent bool

	Sz uintptr
	AS *vm.AddrSpace
	TF *Trapframe
	tfPa mem.Pa_t

	Files *fd.Table_t
	Cwd   *fd.Cwd_t

	Accnt accnt.Accnt_t

	kstack int // index of this slot's permanently-mapped kernel stack

	entry  entryFunc
	resume chan *Cpu
	parked chan struct{}

	table *Table
}

// State returns the slot's current state. It reads the field without taking
// the slot lock, so the value may already be stale when the caller sees it.
func (p *Proc) State() State {
	return p.state
}

// Pid returns the slot's process id. Safe to call without the slot lock:
// pid is assigned once at allocproc time and never mutated while the slot is
// in any state a caller could legitimately be holding a reference to besides
// Unused.
func (p *Proc) Pid() defs.Pid_t {
	return p.pid
}

// Killed reports whether the kill flag has been set. Backed by atomic.Bool
// per the open-question resolution in the design notes: torn reads of a
// monotonic set-once flag were judged not worth relying on.
func (p *Proc) Killed() bool {
	return p.killed.Load()
}

// SetKilled sets the kill flag. Idempotent.
func (p *Proc) SetKilled() {
	p.killed.Store(true)
}

// Chan returns the channel this slot is sleeping on, or 0.
func (p *Proc) Chan() Chan {
	return p.ch
}

// Xstate returns the exit status recorded when this slot became Zombie.
func (p *Proc) Xstate() int {
	return p.xstate
}

// NameString returns the debug name as a Go string.
func (p *Proc) NameString() string {
	n := 0
	for n < len(p.Name) && p.Name[n] != 0 {
		n++
	}
	return string(p.Name[:n])
}

func (p *Proc) setName(name string) {
	var buf [16]byte
	copy(buf[:], name)
	p.Name = buf
}

// checkInvariant panics if the slot's field combination violates invariant 1
// or 4 from the data model. The caller must hold the slot lock. No code path
// in this repository calls it.
func (p *Proc) checkInvariant() {
	switch p.state {
	case Unused:
		if p.pid != 0 || p.AS != nil || p.TF != nil {
			panic("invariant violated: Unused slot has allocated resources")
		}
		if p.ch != 0 {
			panic("invariant violated: Unused slot has a channel")
		}
	case Sleeping:
		if p.ch == 0 {
			panic("invariant violated: Sleeping slot has no channel")
		}
	default:
		if p.ch != 0 {
			panic("invariant violated: non-Sleeping slot has a channel")
		}
	}
}
