// Package vm is the MMU collaborator: creation, population, copying and
// teardown of a per-process address space. The retrieved vm/as.go walks a
// real multi-level page table and a direct-mapped physical window (663
// lines); that hardware fidelity is explicitly out of this core's scope
// (section 1, "Out of scope"). This package keeps the same upcall names
// (Uvmcreate, Uvminit, Uvmalloc, ...) and the same locking shape (Vm_t with
// an embedded mutex guarding the table) but represents the table itself as a
// sparse map from page-aligned virtual address to physical page, which is
// all a process/scheduler core needs to exercise the contract correctly.
package vm

import (
	"sync"

	"defs"
	"mem"
)

// Perm bits, mirroring the retrieved PTE_* constants' meaning without their
// bit-exact hardware encoding.
type Perm uint8

const (
	PermR Perm = 1 << iota
	PermW
	PermX
	PermU
)

// Trampoline and trapframe occupy the top of every user address space, as in
// the reference design; their exact numeric addresses are simulation-only
// sentinels, never dereferenced as real memory.
const (
	Trampoline uintptr = ^uintptr(0) - uintptr(mem.PGSIZE) + 1
	TrapframeVA        = Trampoline - uintptr(mem.PGSIZE)
)

type mapping struct {
	pa   mem.Pa_t
	perm Perm
}

// AddrSpace is this repository's stand-in for a hardware page table: a
// sparse, page-granular map guarded by a mutex exactly as Vm_t guards the
// real Pmap_t in the retrieved design.
type AddrSpace struct {
	mu      sync.Mutex
	entries map[uintptr]mapping
	sz      uintptr
}

// Uvmcreate allocates an empty address space.
func Uvmcreate() *AddrSpace {
	return &AddrSpace{entries: make(map[uintptr]mapping)}
}

// Mappages installs sz bytes of mappings starting at page-aligned va,
// pointing at the physical pages starting at pa, with the given permissions.
// It is the single chokepoint every other function in this package funnels
// through, matching the retrieved design's mappages().
func (as *AddrSpace) Mappages(va uintptr, pa mem.Pa_t, sz uintptr, perm Perm) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()
	if sz == 0 {
		panic("mappages: zero size")
	}
	first := va &^ uintptr(mem.PGOFFSET)
	last := (va + sz - 1) &^ uintptr(mem.PGOFFSET)
	for a, p := first, pa; ; a, p = a+mem.PGSIZE, p+mem.PGSIZE {
		if _, ok := as.entries[a]; ok {
			return -defs.EINVAL
		}
		as.entries[a] = mapping{pa: p, perm: perm}
		if a == last {
			break
		}
	}
	return 0
}

// Unmap removes sz bytes of mappings starting at va. If freePhys, the
// backing physical pages are also released via mem.Kfree — callers unmapping
// the shared trampoline pass false.
func (as *AddrSpace) Unmap(va uintptr, sz uintptr, freePhys bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	first := va &^ uintptr(mem.PGOFFSET)
	last := (va + sz - 1) &^ uintptr(mem.PGOFFSET)
	for a := first; ; a += mem.PGSIZE {
		m, ok := as.entries[a]
		if ok {
			delete(as.entries, a)
			if freePhys {
				mem.Kfree(m.pa)
			}
		}
		if a == last {
			break
		}
	}
}

// Uvminit maps the first page of a freshly created address space and copies
// the initial program image into it. Mirrors uvminit's contract: the image
// must fit in one page.
func (as *AddrSpace) Uvminit(image []byte) defs.Err_t {
	if len(image) > mem.PGSIZE {
		panic("uvminit: image larger than one page")
	}
	pg, pa, ok := mem.Kalloc()
	if !ok {
		return -defs.ENOMEM
	}
	copy(pg[:], image)
	if err := as.Mappages(0, pa, mem.PGSIZE, PermR|PermW|PermX|PermU); err != 0 {
		mem.Kfree(pa)
		return err
	}
	as.sz = mem.PGSIZE
	return 0
}

// Uvmalloc grows the address space from oldsz to newsz bytes, allocating and
// mapping fresh zeroed pages. On failure it leaves the address space exactly
// as it was at oldsz, mirroring growproc's "unchanged sz on failure" clause.
func (as *AddrSpace) Uvmalloc(oldsz, newsz uintptr) (uintptr, defs.Err_t) {
	if newsz <= oldsz {
		return oldsz, 0
	}
	first := (oldsz + mem.PGSIZE - 1) &^ uintptr(mem.PGOFFSET)
	for a := first; a < newsz; a += mem.PGSIZE {
		_, pa, ok := mem.Kalloc()
		if !ok {
			as.Uvmdealloc(a, oldsz)
			return oldsz, -defs.ENOMEM
		}
		if err := as.Mappages(a, pa, mem.PGSIZE, PermR|PermW|PermU); err != 0 {
			mem.Kfree(pa)
			as.Uvmdealloc(a, oldsz)
			return oldsz, err
		}
	}
	as.sz = newsz
	return newsz, 0
}

// Uvmdealloc shrinks the address space from oldsz down to newsz, freeing any
// pages that fall entirely past the new boundary.
func (as *AddrSpace) Uvmdealloc(oldsz, newsz uintptr) uintptr {
	if newsz >= oldsz {
		return oldsz
	}
	first := (newsz + mem.PGSIZE - 1) &^ uintptr(mem.PGOFFSET)
	last := (oldsz + mem.PGSIZE - 1) &^ uintptr(mem.PGOFFSET)
	if first < last {
		as.Unmap(first, last-first, true)
	}
	as.sz = newsz
	return newsz
}

// Uvmcopy duplicates every mapped user page of src (those below src.sz;
// trampoline and trapframe mappings are never copied, since every address
// space gets its own) into a freshly allocated address space, byte for byte,
// so parent and child observe identical memory immediately after fork but
// never alias it afterward.
func (src *AddrSpace) Uvmcopy() (*AddrSpace, defs.Err_t) {
	dst := Uvmcreate()
	if err := dst.CopyUserFrom(src); err != 0 {
		return nil, err
	}
	return dst, 0
}

// CopyUserFrom copies every user page of src (below src.sz) into dst,
// leaving dst's existing mappings — trampoline, trapframe — untouched. This
// is what Fork uses: the child's trampoline/trapframe are already mapped by
// AllocProc's address-space setup, and only the program memory needs to be
// duplicated from the parent.
func (dst *AddrSpace) CopyUserFrom(src *AddrSpace) defs.Err_t {
	src.mu.Lock()
	defer src.mu.Unlock()
	for va, m := range src.entries {
		if va >= src.sz {
			continue
		}
		_, pa, ok := mem.Kalloc()
		if !ok {
			dst.Uvmfree(dst.sz)
			return -defs.ENOMEM
		}
		copy(mem.Phys.Deref(pa)[:], mem.Phys.Deref(m.pa)[:])
		if err := dst.Mappages(va, pa, mem.PGSIZE, m.perm); err != 0 {
			mem.Kfree(pa)
			dst.Uvmfree(dst.sz)
			return err
		}
	}
	dst.sz = src.sz
	return 0
}

// Uvmfree releases every page of user memory below sz. It does not touch the
// trampoline/trapframe mappings; those are torn down separately by
// UnmapTrampolineAndTrapframe so the shared trampoline's physical page is
// never freed.
func (as *AddrSpace) Uvmfree(sz uintptr) {
	if sz > 0 {
		as.Unmap(0, sz, true)
	}
}

// MapTrampoline and MapTrapframe implement the two fixed mappings every user
// page table carries per the address-space-setup contract: trampoline code
// (not freed, shared across all processes) immediately below the top of the
// address space, and this process's own trapframe page beneath it.
func (as *AddrSpace) MapTrampoline(trampolinePage mem.Pa_t) defs.Err_t {
	return as.Mappages(Trampoline, trampolinePage, mem.PGSIZE, PermR|PermX)
}

func (as *AddrSpace) MapTrapframe(tf mem.Pa_t) defs.Err_t {
	return as.Mappages(TrapframeVA, tf, mem.PGSIZE, PermR|PermW)
}

// UnmapTrampolineAndTrapframe reverses the above without freeing the backing
// pages: the trampoline is shared kernel code, the trapframe is freed
// separately by the process allocator.
func (as *AddrSpace) UnmapTrampolineAndTrapframe() {
	as.Unmap(Trampoline, mem.PGSIZE, false)
	as.Unmap(TrapframeVA, mem.PGSIZE, false)
}

// Copyout copies len(src) bytes from kernel memory src to user virtual
// address va, bounds-checked against sz.
func (as *AddrSpace) Copyout(va uintptr, src []byte, sz uintptr) defs.Err_t {
	return as.copy(va, src, sz, false)
}

// Copyin copies len(dst) bytes from user virtual address va into dst,
// bounds-checked against sz.
func (as *AddrSpace) Copyin(va uintptr, dst []byte, sz uintptr) defs.Err_t {
	return as.copy(va, dst, sz, true)
}

func (as *AddrSpace) copy(va uintptr, buf []byte, sz uintptr, fromUser bool) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()
	remaining := len(buf)
	off := 0
	for remaining > 0 {
		if va >= sz {
			return -defs.EFAULT
		}
		page := va &^ uintptr(mem.PGOFFSET)
		m, ok := as.entries[page]
		if !ok {
			return -defs.EFAULT
		}
		pageoff := va - page
		n := mem.PGSIZE - int(pageoff)
		if n > remaining {
			n = remaining
		}
		bytes := mem.Phys.Deref(m.pa)
		if fromUser {
			copy(buf[off:off+n], bytes[pageoff:int(pageoff)+n])
		} else {
			copy(bytes[pageoff:int(pageoff)+n], buf[off:off+n])
		}
		va += uintptr(n)
		off += n
		remaining -= n
	}
	return 0
}

// Copyinstr copies a NUL-terminated string from user virtual address va and
// returns it without the NUL, stopping at the first NUL or when max bytes have been copied without
// finding one, in which case it reports EFAULT as the real copyinstr does.
func (as *AddrSpace) Copyinstr(va uintptr, max int, sz uintptr) ([]byte, defs.Err_t) {
	out := make([]byte, 0, max)
	one := make([]byte, 1)
	for len(out) < max {
		if err := as.Copyin(va, one, sz); err != 0 {
			return nil, err
		}
		if one[0] == 0 {
			return out, 0
		}
		out = append(out, one[0])
		va++
	}
	return nil, -defs.EFAULT
}

// EitherCopyout dispatches to Copyout when toUser is true and otherwise
// copies directly into a kernel-resident slice, the uniform upcall described
// in the syscall-dispatch contract.
func EitherCopyout(toUser bool, as *AddrSpace, dstVA uintptr, src []byte, sz uintptr, kdst []byte) defs.Err_t {
	if toUser {
		return as.Copyout(dstVA, src, sz)
	}
	copy(kdst, src)
	return 0
}

// EitherCopyin is the read-direction counterpart of EitherCopyout.
func EitherCopyin(fromUser bool, as *AddrSpace, srcVA uintptr, dst []byte, sz uintptr, ksrc []byte) defs.Err_t {
	if fromUser {
		return as.Copyin(srcVA, dst, sz)
	}
	copy(dst, ksrc)
	return 0
}
