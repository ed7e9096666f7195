// Package defs holds the shared error and identifier vocabulary used across
// this kernel's packages. It exists because the retrieved packages all
// reference defs.Err_t, defs.Pid_t and friends without any of them defining
// them here; this file is the authoritative source.
package defs

// Err_t is a kernel-internal error code. Zero means success; negative values
// index into the named constants below. Mirrors the xv6 convention of
// returning a negative errno-like int rather than a Go error from hot paths
// that cross the user/kernel boundary.
type Err_t int

// Pid_t is a process identifier. Zero is never a valid pid.
type Pid_t int

// Tid_t is a thread identifier, kept distinct from Pid_t so that a future
// multi-threaded process model does not need to renumber anything.
type Tid_t int

// Error codes. Negated before being placed in a syscall return register, so
// these are declared as positive magnitudes.
const (
	EPERM  Err_t = 1
	ENOENT Err_t = 2
	ESRCH  Err_t = 3
	EINTR  Err_t = 4
	EIO    Err_t = 5
	ENOMEM Err_t = 12
	EACCES Err_t = 13
	EFAULT Err_t = 14
	EBUSY  Err_t = 16
	EEXIST Err_t = 17
	ENOTDIR Err_t = 20
	EISDIR Err_t = 21
	EINVAL Err_t = 22
	ENFILE Err_t = 23
	EMFILE Err_t = 24
	ENOSPC Err_t = 28
	ECHILD Err_t = 10
	EAGAIN Err_t = 11
	ENOSYS Err_t = 38
)

// Sizing constants shared by the process table and address-space setup.
const (
	// NPROC bounds the fixed-size process table.
	NPROC = 64
	// NOFILE bounds the number of open files per process.
	NOFILE = 16
	// MAXARG bounds exec argument count; unused by this core directly but
	// kept so syscall stubs routed to fsys have a shared limit.
	MAXARG = 32
)
