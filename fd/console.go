package fd

import (
	"bufio"
	"io"

	"defs"
	"fdops"
)

// console is the stand-in for the real kernel's D_CONSOLE device: a file
// descriptor backed directly by the host process's stdio, so the CLI
// harness's simulated init process has somewhere to send fd 1/2 and read fd
// 0 from. A real console driver arbitrates UART interrupts; this one just
// shells out to the host.
type console struct {
	w *bufio.Writer
	r *bufio.Reader
}

// NewConsoleOut builds a write-only console fd wrapping w (os.Stdout or
// os.Stderr in the harness).
func NewConsoleOut(w io.Writer) *Fd_t {
	return &Fd_t{Fops: &console{w: bufio.NewWriter(w)}, Perms: FD_WRITE}
}

// NewConsoleIn builds a read-only console fd wrapping r (os.Stdin in the
// harness).
func NewConsoleIn(r io.Reader) *Fd_t {
	return &Fd_t{Fops: &console{r: bufio.NewReader(r)}, Perms: FD_READ}
}

func (c *console) Close() defs.Err_t {
	if c.w != nil {
		c.w.Flush()
	}
	return 0
}

func (c *console) Reopen() defs.Err_t {
	return 0
}

func (c *console) Write(src fdops.Userio_i) (int, defs.Err_t) {
	if c.w == nil {
		return 0, -defs.EINVAL
	}
	buf := make([]byte, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	if _, werr := c.w.Write(buf[:n]); werr != nil {
		return 0, -defs.EIO
	}
	c.w.Flush()
	return n, 0
}

func (c *console) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	if c.r == nil {
		return 0, -defs.EINVAL
	}
	buf := make([]byte, 512)
	n, rerr := c.r.Read(buf)
	if n == 0 && rerr != nil {
		return 0, 0
	}
	wrote, werr := dst.Uiowrite(buf[:n])
	if werr != 0 {
		return 0, werr
	}
	return wrote, 0
}
