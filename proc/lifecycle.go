package proc

import (
	"unsafe"

	"defs"
	"fd"
	"fsys"
	"mem"
	"ustr"
)

// UserInit creates the very first process (component C5), the only slot
// ever given no parent. Its entry thunk runs fsys.Fsinit exactly once (via
// Forkret's one-time gate) before wiring up its root cwd and handing off to
// the table's trap-return hook (SetTrapReturn), the caller's trap-return
// simulation.
func (t *Table) UserInit(h *Cpu, image []byte) *Proc {
	p := t.AllocProc(h, trampoline(), func(h2 *Cpu, p2 *Proc) {
		Forkret(h2, p2, func() {
			t.fs = fsys.Fsinit()
		}, func(h3 *Cpu, p3 *Proc) {
			root := t.fs.Root()
			p3.Cwd = fd.MkRootCwd(&fd.Fd_t{Fops: fsys.AsFdops(root), Perms: fd.FD_READ | fd.FD_WRITE})
			t.trapReturn(h3, p3)
		})
	})
	if p == nil {
		return nil
	}
	if err := p.AS.Uvminit(image); err != 0 {
		t.freeProcLocked(p)
		p.Lock.Unlock(h)
		return nil
	}
	p.Sz = mem.PGSIZE
	p.setName("initcode")
	p.hasParent = false
	p.state = Runnable
	t.initproc = p
	p.Lock.Unlock(h)
	StartSlot(p)
	return p
}

// Fork duplicates parent into a freshly allocated child (component C5): a
// copied address space, a copied open-file table, a duplicated cwd, an
// identical trapframe except for a zeroed return register so the child
// observes fork's "returns 0" contract, and a Ref back to parent recorded as
// the child's Parent. The child starts Runnable; its own first scheduling
// runs forkret with no filesystem init (that already happened for init) and
// the same trap-return hook installed by SetTrapReturn.
func (t *Table) Fork(h *Cpu, parent *Proc) (*Proc, defs.Err_t) {
	child := t.AllocProc(h, trampoline(), func(h2 *Cpu, p2 *Proc) {
		Forkret(h2, p2, nil, t.trapReturn)
	})
	if child == nil {
		return nil, -defs.ENOMEM
	}

	if err := child.AS.CopyUserFrom(parent.AS); err != 0 {
		t.freeProcLocked(child)
		child.Lock.Unlock(h)
		return nil, err
	}
	child.Sz = parent.Sz

	*child.TF = *parent.TF
	child.TF.A0 = 0

	if err := parent.Files.CopyInto(child.Files); err != 0 {
		t.freeProcLocked(child)
		child.Lock.Unlock(h)
		return nil, err
	}

	if parent.Cwd != nil {
		nfd, err := fd.Copyfd(parent.Cwd.Fd)
		if err != 0 {
			t.freeProcLocked(child)
			child.Lock.Unlock(h)
			return nil, err
		}
		path := make(ustr.Ustr, len(parent.Cwd.Path))
		copy(path, parent.Cwd.Path)
		child.Cwd = &fd.Cwd_t{Fd: nfd, Path: path}
	}

	child.setName(parent.NameString())
	child.Lock.Unlock(h)

	t.waitLock.Lock(h)
	child.Parent = Ref{Index: parent.kstack, Gen: parent.gen}
	child.hasParent = true
	t.waitLock.Unlock(h)

	child.Lock.Lock(h)
	child.state = Runnable
	child.Lock.Unlock(h)
	StartSlot(child)
	return child, 0
}

// reparentLocked reassigns every live child of p to init, called with
// t.waitLock already held (exit's reparenting step must happen atomically
// with respect to any concurrent Wait).
func (t *Table) reparentLocked(h *Cpu, p *Proc) {
	if t.initproc == nil {
		return
	}
	newParent := Ref{Index: t.initproc.kstack, Gen: t.initproc.gen}
	reparented := false
	for i := range t.slots {
		c := &t.slots[i]
		c.Lock.Lock(h)
		if c.state != Unused && c.hasParent && c.Parent.Index == p.kstack && c.Parent.Gen == p.gen {
			c.Parent = newParent
			reparented = true
		}
		c.Lock.Unlock(h)
	}
	if reparented {
		t.Wakeup(h, ChanOf(unsafe.Pointer(t.initproc)))
	}
}

// Exit tears p down (component C5): closes every open file, releases its
// cwd inode inside a filesystem transaction bracket, reparents its children
// to init, wakes whichever process is waiting on it, and finally marks it
// Zombie under the wait-lock so a concurrent Wait can never observe it
// between "reparented" and "zombified". The final Sched call never returns:
// a Zombie slot is never rescheduled, so this goroutine simply parks
// forever, matching the reference exit()'s call to sched() that only
// resumes once the slot has been reused — which, for a Go goroutine, it
// never structurally can be.
func (t *Table) Exit(h *Cpu, p *Proc, status int) {
	p.Files.CloseAll()
	if p.Cwd != nil {
		if t.fs != nil {
			t.fs.BeginOp()
		}
		fd.Close_panic(p.Cwd.Fd)
		if t.fs != nil {
			t.fs.EndOp()
		}
		p.Cwd = nil
	}

	t.waitLock.Lock(h)
	t.reparentLocked(h, p)

	if p.hasParent {
		if parent := t.procRef(p.Parent); parent != nil {
			t.Wakeup(h, ChanOf(unsafe.Pointer(parent)))
		}
	}

	p.Lock.Lock(h)
	p.xstate = status
	p.state = Zombie
	t.waitLock.Unlock(h)
	Sched(h, p)
}

// Wait blocks until a child of p exits, reaps it, and returns its pid and
// exit status (component C5). ECHILD is reported immediately if p has no
// live children at all; otherwise Wait sleeps on p's own identity, which
// Exit wakes every time any child of p is reparented or zombified. Wait
// returns the hart p is running on by the time it returns, which — since
// sleeping may hand p to a different hart than it called in on — is not
// necessarily h; callers must use the returned value afterward.
func (t *Table) Wait(h *Cpu, p *Proc) (*Cpu, defs.Pid_t, int, defs.Err_t) {
	t.waitLock.Lock(h)
	for {
		sawChild := false
		for i := range t.slots {
			c := &t.slots[i]
			c.Lock.Lock(h)
			isChild := c.state != Unused && c.hasParent && c.Parent.Index == p.kstack && c.Parent.Gen == p.gen
			if isChild {
				sawChild = true
				if c.state == Zombie {
					pid := c.pid
					xstate := c.xstate
					t.freeProcLocked(c)
					c.Lock.Unlock(h)
					t.waitLock.Unlock(h)
					return h, pid, xstate, 0
				}
			}
			c.Lock.Unlock(h)
		}
		if !sawChild {
			t.waitLock.Unlock(h)
			return h, 0, 0, -defs.ECHILD
		}
		if p.Killed() {
			t.waitLock.Unlock(h)
			return h, 0, 0, -defs.EINTR
		}
		h = Sleep(h, p, ChanOf(unsafe.Pointer(p)), &t.waitLock)
	}
}

// GrowProc changes p's memory size by n bytes, positive or negative
// (component C5). On failure to grow, p.Sz is left exactly as it was,
// matching Uvmalloc's own failure contract.
func GrowProc(p *Proc, n int) defs.Err_t {
	if n > 0 {
		newsz, err := p.AS.Uvmalloc(p.Sz, p.Sz+uintptr(n))
		if err != 0 {
			return err
		}
		p.Sz = newsz
		return 0
	}
	if n < 0 {
		newsz := p.AS.Uvmdealloc(p.Sz, p.Sz-uintptr(-n))
		p.Sz = newsz
	}
	return 0
}
