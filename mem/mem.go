// Package mem is the physical-page allocator collaborator. The real kernel's
// allocator walks a direct-mapped region of physical RAM and reference-counts
//4K pages; that hardware-specific machinery (see the retrieved mem.go/dmap.go)
// is explicitly out of this core's scope. This package keeps the same
// vocabulary — Pa_t, PGSIZE, Page_i, reference counting — but backs it with a
// plain Go slab of byte pages, which is all the process/scheduler core
// actually needs from its allocator.
package mem

import (
	"sync"
	"sync/atomic"
)

// PGSIZE is the size in bytes of a single page. PGSHIFT/PGOFFSET/PGMASK
// follow the same relationship the retrieved mem.go establishes.
const (
	PGSHIFT  = 12
	PGSIZE   = 1 << PGSHIFT
	PGOFFSET = PGSIZE - 1
	PGMASK   = ^uintptr(PGOFFSET)
)

// Pa_t is a physical address: in this simulation, an opaque handle into the
// allocator's page slab rather than a real machine address.
type Pa_t uintptr

// Bytepg_t is one page's worth of bytes.
type Bytepg_t [PGSIZE]uint8

// Page_i is what a caller holding a *Pa_t needs from the allocator: the
// ability to take/drop a reference and to allocate a fresh page. circbuf and
// vm depend on exactly this surface.
type Page_i interface {
	Refpg_new() (*Bytepg_t, Pa_t, bool)
	Refpg_new_nozero() (*Bytepg_t, Pa_t, bool)
	Refcnt(Pa_t) int
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

type page struct {
	bytes Bytepg_t
	refs  int32
}

// Physmem_t is the process-wide physical page allocator. The retrieved
// Physmem_t tracks per-cpu free lists and a direct-map window; this
// simulation trades that for a single mutex-guarded map, which is adequate
// at the scale (NPROC-bounded) this core ever allocates at.
type Physmem_t struct {
	mu    sync.Mutex
	pages map[Pa_t]*page
	next  uint64
}

// Phys is the process-wide allocator instance, mirroring the retrieved
// package's single global Physmem_t.
var Phys = &Physmem_t{pages: make(map[Pa_t]*page)}

func (p *Physmem_t) alloc(zero bool) (*Bytepg_t, Pa_t, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	pa := Pa_t(p.next)
	pg := &page{refs: 1}
	p.pages[pa] = pg
	_ = zero // Go zero-initializes fresh memory; kept for interface symmetry
	return &pg.bytes, pa, true
}

// Refpg_new allocates a zeroed page and returns it with an initial refcount
// of one.
func (p *Physmem_t) Refpg_new() (*Bytepg_t, Pa_t, bool) {
	return p.alloc(true)
}

// Refpg_new_nozero allocates a page without guaranteeing its contents,
// matching the retrieved allocator's fast path used by circbuf.
func (p *Physmem_t) Refpg_new_nozero() (*Bytepg_t, Pa_t, bool) {
	return p.alloc(false)
}

// Refcnt reports the current reference count of pa, or 0 if unknown.
func (p *Physmem_t) Refcnt(pa Pa_t) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages[pa]
	if !ok {
		return 0
	}
	return int(atomic.LoadInt32(&pg.refs))
}

// Refup increments pa's reference count.
func (p *Physmem_t) Refup(pa Pa_t) {
	p.mu.Lock()
	pg, ok := p.pages[pa]
	p.mu.Unlock()
	if !ok {
		panic("refup of unknown page")
	}
	atomic.AddInt32(&pg.refs, 1)
}

// Refdown decrements pa's reference count, freeing and returning true when it
// reaches zero.
func (p *Physmem_t) Refdown(pa Pa_t) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages[pa]
	if !ok {
		panic("refdown of unknown page")
	}
	if atomic.AddInt32(&pg.refs, -1) <= 0 {
		delete(p.pages, pa)
		return true
	}
	return false
}

// Deref returns the backing bytes for pa, for callers (like vm) that need to
// read/write through a physical address rather than allocate one.
func (p *Physmem_t) Deref(pa Pa_t) *Bytepg_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.pages[pa]
	if !ok {
		panic("deref of unknown page")
	}
	return &pg.bytes
}

// Kalloc allocates one zeroed physical page, the upcall named in the core's
// external-interfaces contract.
func Kalloc() (*Bytepg_t, Pa_t, bool) {
	return Phys.Refpg_new()
}

// Kfree drops this caller's reference to pa, freeing it once unreferenced.
func Kfree(pa Pa_t) {
	Phys.Refdown(pa)
}

// Pg2bytes exposes pg as a byte slice, matching the retrieved helper used by
// circbuf to carve a buffer out of a freshly allocated page.
func Pg2bytes(pg *Bytepg_t) []uint8 {
	return pg[:]
}
