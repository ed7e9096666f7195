package fd

import "sync"

import "bpath"
import "defs"
import "fdops"
import "ustr"

/// File descriptor permission bits.
const (
	FD_READ    = 0x1 /// read permission
	FD_WRITE   = 0x2 /// write permission
	FD_CLOEXEC = 0x4 /// close-on-exec flag
)

/// Fd_t represents an open file descriptor.
type Fd_t struct {
       // fops is an interface implemented via a "pointer receiver", thus fops
       // is a reference, not a value
       Fops  fdops.Fdops_i /// descriptor operations
       Perms int           /// permission bits
}

/// Copyfd duplicates an open file descriptor by reopening it.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	err := nfd.Fops.Reopen()
	if err != 0 {
		return nil, err
	}
	return nfd, 0
}

/// Close_panic closes the descriptor and panics on failure.
func Close_panic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("must succeed")
	}
}

/// Cwd_t tracks the current working directory for a process.
type Cwd_t struct {
       sync.Mutex // to serialize chdirs
       Fd   *Fd_t    /// current directory fd
       Path ustr.Ustr /// canonical path
}

/// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	} else {
		full := append(cwd.Path, '/')
		return append(full, p...)
	}
}

/// Canonicalpath resolves path components relative to cwd.
func (cwd *Cwd_t) Canonicalpath(p ustr.Ustr) ustr.Ustr {
	p1 := cwd.Fullpath(p)
	return bpath.Canonicalize(p1)
}

/// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd(fd *Fd_t) *Cwd_t {
	c := &Cwd_t{}
	c.Fd = fd
	c.Path = ustr.MkUstrRoot()
	return c
}

// Chdir replaces the working directory, closing the previous one. Callers
// are responsible for having already resolved newFd to the target
// directory; this just swaps ownership under the cwd lock so concurrent
// lookups never observe a half-updated path.
func (cwd *Cwd_t) Chdir(newFd *Fd_t, newPath ustr.Ustr) {
	cwd.Lock()
	defer cwd.Unlock()
	old := cwd.Fd
	cwd.Fd = newFd
	cwd.Path = newPath
	if old != nil {
		Close_panic(old)
	}
}

// Table_t is a process's fixed-size open file table, indexed by file
// descriptor number. NOFILE bounds it the same way the process table itself
// is bounded by NPROC: a fixed array, linear scan for the first free slot.
type Table_t struct {
	sync.Mutex
	files [defs.NOFILE]*Fd_t
}

// Assign installs fd at the lowest free descriptor number, or fails with
// EMFILE when the table is full.
func (t *Table_t) Assign(fd *Fd_t) (int, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	for i, f := range t.files {
		if f == nil {
			t.files[i] = fd
			return i, 0
		}
	}
	return 0, -defs.EMFILE
}

// Get returns the descriptor at n, or nil if it is not open.
func (t *Table_t) Get(n int) *Fd_t {
	t.Lock()
	defer t.Unlock()
	if n < 0 || n >= len(t.files) {
		return nil
	}
	return t.files[n]
}

// Close releases the descriptor at n, if any.
func (t *Table_t) Close(n int) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	if n < 0 || n >= len(t.files) {
		return -defs.EINVAL
	}
	f := t.files[n]
	if f == nil {
		return -defs.EINVAL
	}
	t.files[n] = nil
	return f.Fops.Close()
}

// CopyInto duplicates every open descriptor of t into dst, the fd half of
// fork's "duplicate each open file descriptor" step.
func (t *Table_t) CopyInto(dst *Table_t) defs.Err_t {
	t.Lock()
	defer t.Unlock()
	for i, f := range t.files {
		if f == nil {
			continue
		}
		nfd, err := Copyfd(f)
		if err != 0 {
			return err
		}
		dst.files[i] = nfd
	}
	return 0
}

// CloseAll closes every open descriptor, the first step of exit().
func (t *Table_t) CloseAll() {
	t.Lock()
	defer t.Unlock()
	for i, f := range t.files {
		if f == nil {
			continue
		}
		Close_panic(f)
		t.files[i] = nil
	}
}
