package scall

import (
	"encoding/binary"

	"defs"
	"fdops"
	"proc"
	"vm"
)

// reg returns the raw value of argument register n (0-5), mirroring the
// reference design's argraw: A0 through A5 carry a syscall's first six
// arguments, A7 the syscall number itself.
func reg(p *proc.Proc, n int) uint64 {
	switch n {
	case 0:
		return p.TF.A0
	case 1:
		return p.TF.A1
	case 2:
		return p.TF.A2
	case 3:
		return p.TF.A3
	case 4:
		return p.TF.A4
	case 5:
		return p.TF.A5
	}
	panic("scall: argument index out of range")
}

// ArgInt fetches the n'th syscall argument as a signed integer.
func ArgInt(p *proc.Proc, n int) int64 {
	return int64(reg(p, n))
}

// ArgAddr fetches the n'th syscall argument as a user virtual address,
// unvalidated — callers dereference it via FetchAddr/FetchStr/Copyin/Copyout,
// which bounds-check against the process's actual memory size.
func ArgAddr(p *proc.Proc, n int) uintptr {
	return uintptr(reg(p, n))
}

// FetchAddr reads one machine word from user virtual address va.
func FetchAddr(p *proc.Proc, va uintptr) (uint64, defs.Err_t) {
	var buf [8]byte
	if err := p.AS.Copyin(va, buf[:], p.Sz); err != 0 {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), 0
}

// FetchStr reads a NUL-terminated string of at most max bytes from user
// virtual address va.
func FetchStr(p *proc.Proc, va uintptr, max int) (string, defs.Err_t) {
	b, err := p.AS.Copyinstr(va, max, p.Sz)
	if err != 0 {
		return "", err
	}
	return string(b), 0
}

// ArgStr fetches the n'th syscall argument as a user address and reads the
// string it points to, the combination open/exec/chdir/unlink/mkdir/link all
// need for their path arguments.
func ArgStr(p *proc.Proc, n int, max int) (string, defs.Err_t) {
	return FetchStr(p, ArgAddr(p, n), max)
}

// userBuf adapts a user virtual-address range to fdops.Userio_i, so
// read/write can hand a file's Fdops_i implementation a buffer that copies
// directly through the process's address space rather than staging through a
// kernel-resident slice.
type userBuf struct {
	as  *vm.AddrSpace
	va  uintptr
	n   int
	sz  uintptr
	pos int
}

func (u *userBuf) Uiowrite(src []uint8) (int, defs.Err_t) {
	k := len(src)
	if rem := u.n - u.pos; k > rem {
		k = rem
	}
	if k <= 0 {
		return 0, 0
	}
	if err := u.as.Copyout(u.va+uintptr(u.pos), src[:k], u.sz); err != 0 {
		return 0, err
	}
	u.pos += k
	return k, 0
}

func (u *userBuf) Uioread(dst []uint8) (int, defs.Err_t) {
	k := len(dst)
	if rem := u.n - u.pos; k > rem {
		k = rem
	}
	if k <= 0 {
		return 0, 0
	}
	if err := u.as.Copyin(u.va+uintptr(u.pos), dst[:k], u.sz); err != 0 {
		return 0, err
	}
	u.pos += k
	return k, 0
}

func (u *userBuf) Remain() int  { return u.n - u.pos }
func (u *userBuf) Totalsz() int { return u.n }

var _ fdops.Userio_i = (*userBuf)(nil)
