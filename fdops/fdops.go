// Package fdops defines the narrow interfaces a file descriptor's backing
// object must satisfy. The retrieved fdops package carried no source beyond
// its go.mod; the interfaces below are authored from the call sites that
// reference them elsewhere in this tree (fd.Fd_t, circbuf.Circbuf_t).
package fdops

import "defs"

// Userio_i abstracts a buffer that can be read from or written to, whether
// it is backed by a user-space pointer (copying through the vm collaborator)
// or a plain kernel-resident byte slice. Modeled on the uiowrite/uioread
// shape used throughout the retrieved kernel sources wherever a copy needs
// to be agnostic to which side of the user/kernel boundary it touches.
type Userio_i interface {
	// Uiowrite copies from src into the destination, returning bytes written.
	Uiowrite(src []uint8) (int, defs.Err_t)
	// Uioread copies into dst from the source, returning bytes read.
	Uioread(dst []uint8) (int, defs.Err_t)
	// Remain reports how many bytes are left to transfer.
	Remain() int
	// Totalsz reports the total size of the transfer, regardless of progress.
	Totalsz() int
}

// Fdops_i is the operation set every open file descriptor's backing object
// must implement. Close and Reopen are consumed directly by fd.Fd_t; Read
// and Write are consumed by syscall stubs that route through fd.
type Fdops_i interface {
	Close() defs.Err_t
	Reopen() defs.Err_t
	Read(dst Userio_i) (int, defs.Err_t)
	Write(src Userio_i) (int, defs.Err_t)
}
