package ustr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsdotIsdotdot(t *testing.T) {
	require.True(t, Ustr(".").Isdot())
	require.False(t, Ustr("..").Isdot())
	require.True(t, Ustr("..").Isdotdot())
	require.False(t, Ustr(".").Isdotdot())
	require.False(t, Ustr("a").Isdot())
}

func TestEq(t *testing.T) {
	require.True(t, Ustr("abc").Eq(Ustr("abc")))
	require.False(t, Ustr("abc").Eq(Ustr("abd")))
	require.False(t, Ustr("abc").Eq(Ustr("ab")))
}

func TestMkUstrVariants(t *testing.T) {
	require.Empty(t, MkUstr())
	require.True(t, MkUstrDot().Eq(Ustr(".")))
	require.True(t, MkUstrRoot().Eq(Ustr("/")))
	require.True(t, DotDot.Eq(Ustr("..")))
}

func TestMkUstrSliceTruncatesAtNUL(t *testing.T) {
	buf := []byte("hello\x00garbage")
	require.Equal(t, "hello", MkUstrSlice(buf).String())
}

func TestMkUstrSliceWithoutNULReturnsWholeSlice(t *testing.T) {
	buf := []byte("nonul")
	require.Equal(t, "nonul", MkUstrSlice(buf).String())
}

func TestExtendAppendsSlashAndComponent(t *testing.T) {
	base := Ustr("/usr")
	got := base.Extend(Ustr("bin"))
	require.Equal(t, "/usr/bin", got.String())
	require.Equal(t, "/usr", base.String(), "Extend must not mutate the receiver")
}

func TestExtendStr(t *testing.T) {
	require.Equal(t, "/a/b", Ustr("/a").ExtendStr("b").String())
}

func TestIsAbsolute(t *testing.T) {
	require.True(t, Ustr("/a").IsAbsolute())
	require.False(t, Ustr("a").IsAbsolute())
	require.False(t, Ustr("").IsAbsolute())
}

func TestIndexByte(t *testing.T) {
	require.Equal(t, 2, Ustr("ab/cd").IndexByte('/'))
	require.Equal(t, -1, Ustr("abcd").IndexByte('/'))
}
