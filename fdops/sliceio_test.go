package fdops

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceIOWriteThenReadRoundTrips(t *testing.T) {
	backing := make([]byte, 8)
	s := NewSliceIO(backing)

	n, err := s.Uiowrite([]byte("hi"))
	require.Zero(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 6, s.Remain())

	out := make([]byte, 2)
	n, err = s.Uioread(out)
	require.Zero(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "hi", string(out))
}

func TestSliceIOUioreadTruncatesAtBufferEnd(t *testing.T) {
	s := NewSliceIO([]byte("ab"))
	dst := make([]byte, 8)
	n, err := s.Uioread(dst)
	require.Zero(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "ab", string(dst[:n]))
}

func TestSliceIOUiowriteTruncatesWhenSrcTooBig(t *testing.T) {
	backing := make([]byte, 2)
	s := NewSliceIO(backing)
	n, err := s.Uiowrite([]byte("abcdef"))
	require.Zero(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "ab", string(backing))
}

func TestSliceIOTotalszIsFixed(t *testing.T) {
	s := NewSliceIO(make([]byte, 10))
	require.Equal(t, 10, s.Totalsz())
	s.Uiowrite([]byte("12345"))
	require.Equal(t, 10, s.Totalsz(), "Totalsz reports capacity, not remaining")
	require.Equal(t, 5, s.Remain())
}
