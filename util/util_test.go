package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMin(t *testing.T) {
	require.Equal(t, 3, Min(3, 7))
	require.Equal(t, 3, Min(7, 3))
	require.EqualValues(t, 2, Min(uint64(2), uint64(2)))
}

func TestRounddownRoundup(t *testing.T) {
	require.Equal(t, 4096, Rounddown(4100, 4096))
	require.Equal(t, 0, Rounddown(4095, 4096))
	require.Equal(t, 8192, Roundup(4097, 4096))
	require.Equal(t, 4096, Roundup(4096, 4096))
}

func TestWritenThenReadnRoundTripsEachSize(t *testing.T) {
	buf := make([]byte, 32)
	for _, sz := range []int{1, 2, 4, 8} {
		Writen(buf, sz, 0, 0x7f)
		require.Equal(t, 0x7f, Readn(buf, sz, 0))
	}
}

func TestReadnPanicsOutOfBounds(t *testing.T) {
	buf := make([]byte, 4)
	require.Panics(t, func() { Readn(buf, 8, 0) })
}

func TestWritenPanicsOnUnsupportedSize(t *testing.T) {
	buf := make([]byte, 8)
	require.Panics(t, func() { Writen(buf, 3, 0, 1) })
}
