package proc

import (
	"time"

	"defs"
	"fd"
	"fsys"
	"limits"
	"mem"
	"vm"
)

// Table is the fixed-size, process-wide process table (component C2). It is
// a plain array — no hashing, no free list — because the spec forbids both;
// every lookup is a linear scan. Table also owns the pid counter and the
// wait-lock, since both are process-wide, not per-slot, state.
type Table struct {
	slots [defs.NPROC]Proc

	pidLock Spinlock
	nextPid defs.Pid_t

	waitLock Spinlock

	initproc   *Proc
	fs         *fsys.Filesystem
	trapReturn entryFunc
	bootTime   time.Time
}

// BootTime reports when this table was created, the reference point the
// uptime syscall measures against.
func (t *Table) BootTime() time.Time {
	return t.bootTime
}

// SetTrapReturn installs the trap-return simulation every fork-returned
// process hands off to once its slot-specific setup (Forkret) finishes. The
// CLI harness calls this once at boot, before UserInit; Fork reuses the same
// hook for every child it creates afterward.
func (t *Table) SetTrapReturn(f func(h *Cpu, p *Proc)) {
	t.trapReturn = f
}

// procRef resolves a Ref back to its slot, returning nil if the slot has
// since been reused for a different process (stale generation) — the check
// that makes Ref safe to hold onto instead of a raw *Proc.
func (t *Table) procRef(r Ref) *Proc {
	if r.Index < 0 || r.Index >= len(t.slots) {
		return nil
	}
	p := &t.slots[r.Index]
	if p.gen != r.Gen {
		return nil
	}
	return p
}

// Fs returns the filesystem instance, or nil before UserInit's first
// scheduling has run Forkret's one-time init.
func (t *Table) Fs() *fsys.Filesystem {
	return t.fs
}

// NewTable allocates a process table with every slot Unused and the pid
// counter starting at 1, matching alloc_pid's documented starting value.
func NewTable() *Table {
	t := &Table{nextPid: 1, bootTime: time.Now()}
	for i := range t.slots {
		t.slots[i].table = t
		t.slots[i].kstack = i
	}
	return t
}

// allocPid returns a fresh, monotonically increasing pid under the
// dedicated pid lock (component C1). It never holds any other lock while
// doing so, keeping it safely below slot-lock and wait-lock in the lock
// order.
func (t *Table) allocPid(h *Cpu) defs.Pid_t {
	t.pidLock.Lock(h)
	pid := t.nextPid
	t.nextPid++
	t.pidLock.Unlock(h)
	return pid
}

// InitProc returns the recorded init process slot, or nil before userinit
// has run.
func (t *Table) InitProc() *Proc {
	return t.initproc
}

// ByPid linearly scans the table for a non-Unused slot with the given pid.
func (t *Table) ByPid(h *Cpu, pid defs.Pid_t) *Proc {
	for i := range t.slots {
		p := &t.slots[i]
		p.Lock.Lock(h)
		match := p.state != Unused && p.pid == pid
		p.Lock.Unlock(h)
		if match {
			return p
		}
	}
	return nil
}

// Each calls f for every non-Unused slot, lock-free, for diagnostic use
// (component C9) where a torn read of a field mid-transition is an
// acceptable trade for never blocking a live process to print a listing.
func (t *Table) Each(f func(*Proc)) {
	for i := range t.slots {
		p := &t.slots[i]
		if p.state != Unused {
			f(p)
		}
	}
}

// AllocProc scans for an Unused slot, claims it, assigns a fresh pid, and
// allocates its trapframe and address space (component C4). On success it
// returns with the slot's lock held; the caller finishes initialization
// (copying program state, setting cwd) before transitioning to Runnable and
// releasing it. On any failure — no free slot, no free trapframe page, no
// process-budget token, address-space setup failure — it returns nil with
// no lock held and no partial state left behind.
func (t *Table) AllocProc(h *Cpu, trampoline mem.Pa_t, entry entryFunc) *Proc {
	for i := range t.slots {
		p := &t.slots[i]
		p.Lock.Lock(h)
		if p.state != Unused {
			p.Lock.Unlock(h)
			continue
		}

		if !limits.Syslimit.Sysprocs.Take() {
			p.Lock.Unlock(h)
			return nil
		}

		committed := false
		defer func() {
			if !committed {
				t.freeProcLocked(p)
				p.Lock.Unlock(h)
			}
		}()

		p.gen++
		p.pid = t.allocPid(h)
		p.state = Used

		tfPage, tfPa, ok := mem.Kalloc()
		if !ok {
			return nil
		}
		_ = tfPage
		p.TF = &Trapframe{}

		as := vm.Uvmcreate()
		if err := as.MapTrampoline(trampoline); err != 0 {
			mem.Kfree(tfPa)
			p.TF = nil
			return nil
		}
		if err := as.MapTrapframe(tfPa); err != 0 {
			as.UnmapTrampolineAndTrapframe()
			mem.Kfree(tfPa)
			p.TF = nil
			return nil
		}
		p.AS = as
		p.tfPa = tfPa

		p.Files = &fd.Table_t{}
		p.entry = entry
		p.resume = make(chan *Cpu)
		p.parked = make(chan struct{})

		committed = true
		return p
	}
	return nil
}

// freeProcLocked implements free_proc (component C4). The caller holds
// p.Lock and is retiring the slot, whether from a failed AllocProc or a
// successful Wait reaping a Zombie.
func (t *Table) freeProcLocked(p *Proc) {
	if p.tfPa != 0 {
		mem.Kfree(p.tfPa)
		p.tfPa = 0
	}
	p.TF = nil
	if p.AS != nil {
		p.AS.UnmapTrampolineAndTrapframe()
		p.AS.Uvmfree(p.Sz)
		p.AS = nil
	}
	p.Sz = 0
	p.pid = 0
	p.Parent = Ref{}
	p.hasParent = false
	p.Name = [16]byte{}
	p.ch = 0
	p.killed.Store(false)
	p.xstate = 0
	p.Files = nil
	p.Cwd = nil
	p.entry = nil
	p.resume = nil
	p.parked = nil
	p.state = Unused
	limits.Syslimit.Sysprocs.Give()
}
