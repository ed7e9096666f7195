// Package fsys is the filesystem collaborator: inode reference counting,
// path lookup, and the begin_op/end_op transaction bracket that exit()
// brackets its cwd teardown with. The retrieved fs/ and ufs/ packages (over
// 800 lines combined) implement an on-disk log-structured filesystem; actual
// disk I/O is out of this core's scope (section 1). This package keeps the
// same upcall names (Namei, Idup, Iput, BeginOp, EndOp, Fsinit) the core
// depends on, backed by an in-memory inode table, which is all a
// process/scheduler core needs to exercise fork/exit's cwd handling
// correctly.
package fsys

import (
	"sync"

	"defs"
	"fdops"
	"ustr"
)

// Inode is a reference-counted directory or file entry. Real inodes carry
// on-disk block pointers and a type (file/dir/device); this simulation only
// needs enough to let cwd tracking and open/close be exercised honestly.
type Inode struct {
	mu    sync.Mutex
	Ino   int
	Name  ustr.Ustr
	refs  int
	dir   bool
	data  []byte
}

// Idup bumps an inode's reference count and returns it, the upcall fork()
// calls when duplicating a process's cwd.
func Idup(ip *Inode) *Inode {
	ip.mu.Lock()
	ip.refs++
	ip.mu.Unlock()
	return ip
}

// Iput drops a reference to an inode. This simulation has no on-disk link
// count to reclaim, so reaching zero is a no-op beyond bookkeeping — real
// iput would free disk blocks for an unlinked, now-unreferenced file.
func Iput(ip *Inode) defs.Err_t {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.refs == 0 {
		panic("iput: already at zero refs")
	}
	ip.refs--
	return 0
}

// Filesystem is the process-wide filesystem instance: one root inode and a
// transaction depth counter standing in for the real log-structured
// filesystem's journal.
type Filesystem struct {
	mu      sync.Mutex
	root    *Inode
	inodes  map[int]*Inode
	nextino int
	txdepth int
}

// Fsinit constructs the filesystem and its root inode. The core's
// forkret contract calls this exactly once, the first time any
// fork-returned process reaches user space.
func Fsinit() *Filesystem {
	fs := &Filesystem{inodes: make(map[int]*Inode)}
	fs.root = fs.newInode(ustr.MkUstrRoot(), true)
	return fs
}

func (fs *Filesystem) newInode(name ustr.Ustr, dir bool) *Inode {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextino++
	ip := &Inode{Ino: fs.nextino, Name: name, refs: 1, dir: dir}
	fs.inodes[ip.Ino] = ip
	return ip
}

// Root returns the filesystem's root inode, already referenced once on the
// caller's behalf.
func (fs *Filesystem) Root() *Inode {
	return Idup(fs.root)
}

// Namei resolves a canonicalized path to its inode. Only "/" and
// single-level paths off the root are meaningful in this simulation; unknown
// paths report ENOENT exactly as a real lookup miss would.
func (fs *Filesystem) Namei(p ustr.Ustr) (*Inode, defs.Err_t) {
	if p.IsAbsolute() && (len(p) == 1 || p.Eq(ustr.MkUstrRoot())) {
		return fs.Root(), 0
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, ip := range fs.inodes {
		if ip.Name.Eq(p) {
			return Idup(ip), 0
		}
	}
	return nil, -defs.ENOENT
}

// Create makes a new plain-file inode rooted directly off of the root
// directory, enough for the CLI harness to exercise open()'s collaborator
// path without a real directory tree.
func (fs *Filesystem) Create(p ustr.Ustr) *Inode {
	return fs.newInode(p, false)
}

// BeginOp and EndOp bracket a filesystem transaction. exit() wraps its cwd
// teardown in this pair so that, were this a real journaled filesystem, the
// iput could safely block on log space without the process having
// transitioned to Zombie yet.
func (fs *Filesystem) BeginOp() {
	fs.mu.Lock()
	fs.txdepth++
	fs.mu.Unlock()
}

func (fs *Filesystem) EndOp() {
	fs.mu.Lock()
	if fs.txdepth == 0 {
		fs.mu.Unlock()
		panic("end_op without begin_op")
	}
	fs.txdepth--
	fs.mu.Unlock()
}

// inodeFile adapts an *Inode to fdops.Fdops_i so it can be installed
// directly into a process's open file table or used as the backing object of
// fd.Cwd_t.
type inodeFile struct {
	ip *Inode
}

// AsFdops wraps ip so it can be held by a *fd.Fd_t.
func AsFdops(ip *Inode) fdops.Fdops_i {
	return &inodeFile{ip: ip}
}

func (f *inodeFile) Close() defs.Err_t {
	return Iput(f.ip)
}

func (f *inodeFile) Reopen() defs.Err_t {
	Idup(f.ip)
	return 0
}

func (f *inodeFile) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	f.ip.mu.Lock()
	data := f.ip.data
	f.ip.mu.Unlock()
	return dst.Uiowrite(data)
}

func (f *inodeFile) Write(src fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	f.ip.mu.Lock()
	f.ip.data = append(f.ip.data, buf[:n]...)
	f.ip.mu.Unlock()
	return n, 0
}
