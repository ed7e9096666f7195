package fdops

import "defs"

// SliceIO adapts a plain byte slice to Userio_i, standing in for the
// retrieved other_examples fakeubuf_t: a kernel-resident buffer used
// wherever a caller needs to hand a Read/Write a Userio_i without actually
// crossing into user memory (e.g. the CLI harness's simulated console I/O).
type SliceIO struct {
	buf []byte
	pos int
}

// NewSliceIO wraps buf for reading or writing from position zero.
func NewSliceIO(buf []byte) *SliceIO {
	return &SliceIO{buf: buf}
}

func (s *SliceIO) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(s.buf[s.pos:], src)
	s.pos += n
	return n, 0
}

func (s *SliceIO) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, s.buf[s.pos:])
	s.pos += n
	return n, 0
}

func (s *SliceIO) Remain() int {
	return len(s.buf) - s.pos
}

func (s *SliceIO) Totalsz() int {
	return len(s.buf)
}
