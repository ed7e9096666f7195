package proc

import "defs"

// Sleep blocks the calling process on chan, releasing outerLock only after
// the slot's own lock is held (component C7) — the ordering that closes the
// missed-wakeup race: a Wakeup racing in between would otherwise see neither
// lock held and could slip by unnoticed. outerLock is whatever the caller was
// already holding on entry (the wait-lock for Wait, a device lock for a
// blocking read); Sleep reacquires it before returning, so the caller's own
// lock discipline is unaffected by having slept.
func Sleep(h *Cpu, p *Proc, ch Chan, outerLock *Spinlock) *Cpu {
	sameLock := outerLock == &p.Lock
	if !sameLock {
		p.Lock.Lock(h)
		outerLock.Unlock(h)
	}

	p.ch = ch
	p.state = Sleeping
	newH := Sched(h, p)
	p.ch = 0

	if !sameLock {
		p.Lock.Unlock(newH)
		outerLock.Lock(newH)
	}
	return newH
}

// Wakeup wakes every process sleeping on chan (component C7), scanning the
// whole table and taking each slot's lock in turn — never two slot locks at
// once.
func (t *Table) Wakeup(h *Cpu, ch Chan) {
	for i := range t.slots {
		p := &t.slots[i]
		p.Lock.Lock(h)
		if p.state == Sleeping && p.ch == ch {
			p.state = Runnable
			p.ch = 0
		}
		p.Lock.Unlock(h)
	}
}

// Kill marks the process pid for death (component C7). If it is Sleeping, it
// is moved straight to Runnable so it observes the kill flag on its own
// schedule rather than sleeping forever on a channel nothing will ever
// signal again; a Running or Runnable process simply sees the flag the next
// time it checks. Kill of an unknown pid reports failure.
func (t *Table) Kill(h *Cpu, pid defs.Pid_t) bool {
	for i := range t.slots {
		p := &t.slots[i]
		p.Lock.Lock(h)
		if p.state != Unused && p.pid == pid {
			p.SetKilled()
			if p.state == Sleeping {
				p.state = Runnable
				p.ch = 0
			}
			p.Lock.Unlock(h)
			return true
		}
		p.Lock.Unlock(h)
	}
	return false
}
