package scall

import (
	"fmt"
	"time"

	"caller"
	"defs"
	"fd"
	"fsys"
	"proc"
	"stats"
	"ustr"
)

// handlerFunc is the shape every syscall implementation takes: the hart and
// process that trapped, and the table they belong to. It returns the hart p
// is actually running on once the call completes — sleeping (wait, and any
// future blocking read) may hand p to a different hart than it trapped in
// on, so every handler that can block threads the hart through rather than
// assuming it stays put — plus the value to install in A0 and an error
// (a negative Err_t such as -defs.ENOSYS, which Dispatch installs in A0
// as is).
type handlerFunc func(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t)

var dispatchTable = map[uint64]handlerFunc{
	SysFork:   sysFork,
	SysExit:   sysExit,
	SysWait:   sysWait,
	SysKill:   sysKill,
	SysGetpid: sysGetpid,
	SysSbrk:   sysSbrk,
	SysSleep:  sysSleep,
	SysUptime: sysUptime,
	SysOpen:   sysOpen,
	SysClose:  sysClose,
	SysRead:   sysRead,
	SysWrite:  sysWrite,
	SysDup:    sysDup,
	SysChdir:  sysChdir,
	SysPipe:   sysNotImplemented,
	SysExec:   sysNotImplemented,
	SysFstat:  sysNotImplemented,
	SysMknod:  sysNotImplemented,
	SysUnlink: sysNotImplemented,
	SysLink:   sysNotImplemented,
	SysMkdir:  sysNotImplemented,
}

// dispatchStats mirrors a Dispatch call's outcome, enabled only when
// stats.Stats is compiled in, matching every other counter in this tree.
type dispatchStats struct {
	Dispatched stats.Counter_t
	Errors     stats.Counter_t
	Unknown    stats.Counter_t
}

var dispatched dispatchStats

// Diagnostics renders the syscall-dispatch counters (component C9), empty
// when stats.Stats is compiled out.
func Diagnostics() string {
	return stats.Stats2String(dispatched)
}

// unknownCaller deduplicates "unknown syscall number" diagnostics by call
// site, so a user program spinning on a bad syscall number does not flood
// whatever is consuming Dispatch's return value with one line per call.
var unknownCaller = caller.Distinct_caller_t{Enabled: true}

// Dispatch reads the syscall number out of p's trapframe (A7), routes to the
// matching handler, writes the result into p.TF.A0, and returns the hart p
// ends up running on plus that same value — already negated on error,
// exactly as the reference syscall() writes -errno into the return register
// rather than returning a Go error up through a trap handler. An
// unrecognized syscall number reports -1 in a0, matching the reference's
// unrecognized-syscall contract rather than a specific -errno. Callers must
// use the returned hart for anything they do with p afterward, not the one
// they called in with.
func Dispatch(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64) {
	dispatched.Dispatched.Inc()
	start := p.Accnt.Now()
	defer p.Accnt.Finish(start)

	num := p.TF.A7
	fn, ok := dispatchTable[num]
	if !ok {
		dispatched.Unknown.Inc()
		if distinct, trace := unknownCaller.Distinct(); distinct {
			fmt.Printf("scall: unknown syscall %d from pid %d\n%s", num, p.Pid(), trace)
		}
		ret := ^uint64(0)
		p.TF.A0 = ret
		return h, ret
	}
	h, ret, err := fn(h, p, t)
	if err != 0 {
		dispatched.Errors.Inc()
		ret = uint64(err)
	}
	p.TF.A0 = ret
	return h, ret
}

func sysNotImplemented(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	return h, 0, -defs.ENOSYS
}

func sysFork(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	child, err := t.Fork(h, p)
	if err != 0 {
		return h, 0, err
	}
	return h, uint64(child.Pid()), 0
}

func sysExit(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	status := int(ArgInt(p, 0))
	t.Exit(h, p, status)
	return h, 0, 0
}

func sysWait(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	newH, pid, status, err := t.Wait(h, p)
	if err != 0 {
		return newH, 0, err
	}
	if addr := ArgAddr(p, 0); addr != 0 {
		var buf [4]byte
		buf[0] = byte(status)
		buf[1] = byte(status >> 8)
		buf[2] = byte(status >> 16)
		buf[3] = byte(status >> 24)
		if cerr := p.AS.Copyout(addr, buf[:], p.Sz); cerr != 0 {
			return newH, 0, cerr
		}
	}
	return newH, uint64(pid), 0
}

func sysKill(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	pid := defs.Pid_t(ArgInt(p, 0))
	if !t.Kill(h, pid) {
		return h, 0, -defs.ESRCH
	}
	return h, 0, 0
}

func sysGetpid(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	return h, uint64(p.Pid()), 0
}

func sysSbrk(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	n := int(ArgInt(p, 0))
	old := p.Sz
	if err := proc.GrowProc(p, n); err != 0 {
		return h, 0, err
	}
	return h, uint64(old), 0
}

// tick stands in for the reference design's timer-interrupt period; sleep's
// argument counts in ticks, as in the reference sys_sleep.
const tick = 10 * time.Millisecond

// sysSleep blocks the calling goroutine for roughly n ticks without holding
// any lock, so other processes' harts keep making progress meanwhile. This
// core has no timer-interrupt simulation of its own (out of scope, section
// 1), so unlike wait it never actually gives the hart back to the scheduler
// mid-call — the simplest stand-in that still gives sleep(2)'s caller an
// observable pause is a real wall-clock delay.
func sysSleep(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	n := ArgInt(p, 0)
	if n <= 0 {
		return h, 0, 0
	}
	if p.Killed() {
		return h, 0, -defs.EINTR
	}
	since := p.Accnt.Now()
	time.Sleep(time.Duration(n) * tick)
	p.Accnt.Sleep_time(since)
	return h, 0, 0
}

func sysUptime(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	return h, uint64(time.Since(t.BootTime()) / tick), 0
}

func permsFromFlags(flags int64) int {
	switch flags & (O_RDONLY | O_WRONLY | O_RDWR) {
	case O_WRONLY:
		return fd.FD_WRITE
	case O_RDWR:
		return fd.FD_READ | fd.FD_WRITE
	default:
		return fd.FD_READ
	}
}

func sysOpen(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	path, err := ArgStr(p, 0, 128)
	if err != 0 {
		return h, 0, err
	}
	flags := ArgInt(p, 1)

	fsys_ := t.Fs()
	if fsys_ == nil {
		return h, 0, -defs.ENOENT
	}
	canon := p.Cwd.Canonicalpath(ustr.Ustr(path))
	ip, nerr := fsys_.Namei(canon)
	if nerr != 0 {
		if nerr != -defs.ENOENT || flags&O_CREATE == 0 {
			return h, 0, nerr
		}
		ip = fsys_.Create(canon)
	}

	nfd := &fd.Fd_t{Fops: fsys.AsFdops(ip), Perms: permsFromFlags(flags)}
	fdnum, aerr := p.Files.Assign(nfd)
	if aerr != 0 {
		fd.Close_panic(nfd)
		return h, 0, aerr
	}
	return h, uint64(fdnum), 0
}

func sysClose(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	n := int(ArgInt(p, 0))
	if err := p.Files.Close(n); err != 0 {
		return h, 0, err
	}
	return h, 0, 0
}

func sysRead(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	n := int(ArgInt(p, 0))
	va := ArgAddr(p, 1)
	sz := int(ArgInt(p, 2))

	f := p.Files.Get(n)
	if f == nil {
		return h, 0, -defs.EINVAL
	}
	if f.Perms&fd.FD_READ == 0 {
		return h, 0, -defs.EACCES
	}
	buf := &userBuf{as: p.AS, va: va, n: sz, sz: p.Sz}
	got, rerr := f.Fops.Read(buf)
	if rerr != 0 {
		return h, 0, rerr
	}
	return h, uint64(got), 0
}

func sysWrite(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	n := int(ArgInt(p, 0))
	va := ArgAddr(p, 1)
	sz := int(ArgInt(p, 2))

	f := p.Files.Get(n)
	if f == nil {
		return h, 0, -defs.EINVAL
	}
	if f.Perms&fd.FD_WRITE == 0 {
		return h, 0, -defs.EACCES
	}
	buf := &userBuf{as: p.AS, va: va, n: sz, sz: p.Sz}
	put, werr := f.Fops.Write(buf)
	if werr != 0 {
		return h, 0, werr
	}
	return h, uint64(put), 0
}

func sysDup(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	n := int(ArgInt(p, 0))
	f := p.Files.Get(n)
	if f == nil {
		return h, 0, -defs.EINVAL
	}
	nfd, err := fd.Copyfd(f)
	if err != 0 {
		return h, 0, err
	}
	fdnum, aerr := p.Files.Assign(nfd)
	if aerr != 0 {
		fd.Close_panic(nfd)
		return h, 0, aerr
	}
	return h, uint64(fdnum), 0
}

func sysChdir(h *proc.Cpu, p *proc.Proc, t *proc.Table) (*proc.Cpu, uint64, defs.Err_t) {
	path, err := ArgStr(p, 0, 128)
	if err != 0 {
		return h, 0, err
	}
	fsys_ := t.Fs()
	if fsys_ == nil {
		return h, 0, -defs.ENOENT
	}
	canon := p.Cwd.Canonicalpath(ustr.Ustr(path))
	ip, nerr := fsys_.Namei(canon)
	if nerr != 0 {
		return h, 0, nerr
	}
	newFd := &fd.Fd_t{Fops: fsys.AsFdops(ip), Perms: fd.FD_READ | fd.FD_WRITE}
	p.Cwd.Chdir(newFd, canon)
	return h, 0, 0
}
