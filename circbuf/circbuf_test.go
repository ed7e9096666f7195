package circbuf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fdops"
	"mem"
)

func TestCbInitThenCopyinCopyoutRoundTrips(t *testing.T) {
	var cb Circbuf_t
	require.Zero(t, cb.Cb_init(64, mem.Phys))
	require.True(t, cb.Empty())

	n, err := cb.Copyin(fdops.NewSliceIO([]byte("hello")))
	require.Zero(t, err)
	require.Equal(t, 5, n)
	require.False(t, cb.Empty())
	require.Equal(t, 5, cb.Used())

	buf := make([]byte, 5)
	n, err = cb.Copyout(fdops.NewSliceIO(buf))
	require.Zero(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
	require.True(t, cb.Empty())
}

func TestCopyinOnFullBufferWritesNothing(t *testing.T) {
	var cb Circbuf_t
	require.Zero(t, cb.Cb_init(4, mem.Phys))

	n, err := cb.Copyin(fdops.NewSliceIO([]byte("abcd")))
	require.Zero(t, err)
	require.Equal(t, 4, n)
	require.True(t, cb.Full())

	n, err = cb.Copyin(fdops.NewSliceIO([]byte("e")))
	require.Zero(t, err)
	require.Equal(t, 0, n, "a full ring silently drops further writes rather than evicting")
}

func TestCopyoutNLimitsBytesReturned(t *testing.T) {
	var cb Circbuf_t
	require.Zero(t, cb.Cb_init(16, mem.Phys))
	_, err := cb.Copyin(fdops.NewSliceIO([]byte("0123456789")))
	require.Zero(t, err)

	buf := make([]byte, 16)
	n, err := cb.Copyout_n(fdops.NewSliceIO(buf), 4)
	require.Zero(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "0123", string(buf[:4]))
	require.Equal(t, 6, cb.Used(), "Copyout_n must only consume the capped amount")
}

func TestLeftAndUsedTrackWraparound(t *testing.T) {
	var cb Circbuf_t
	require.Zero(t, cb.Cb_init(4, mem.Phys))

	_, err := cb.Copyin(fdops.NewSliceIO([]byte("ab")))
	require.Zero(t, err)
	require.Equal(t, 2, cb.Used())
	require.Equal(t, 2, cb.Left())

	out := make([]byte, 1)
	_, err = cb.Copyout(fdops.NewSliceIO(out))
	require.Zero(t, err)

	_, err = cb.Copyin(fdops.NewSliceIO([]byte("cd")))
	require.Zero(t, err)
	require.Equal(t, 3, cb.Used())
	require.Equal(t, 1, cb.Left())
}

func TestCbReleaseClearsBuffer(t *testing.T) {
	var cb Circbuf_t
	require.Zero(t, cb.Cb_init(16, mem.Phys))
	_, err := cb.Copyin(fdops.NewSliceIO([]byte("x")))
	require.Zero(t, err)

	cb.Cb_release()
	require.Nil(t, cb.Buf)
	require.True(t, cb.Empty())
}

func TestCbInitPanicsOnOversizeRequest(t *testing.T) {
	var cb Circbuf_t
	require.Panics(t, func() { cb.Cb_init(int(mem.PGSIZE)+1, mem.Phys) })
}
