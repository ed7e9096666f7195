package scall

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameKnownAndUnknown(t *testing.T) {
	require.Equal(t, "fork", Name(SysFork))
	require.Equal(t, "exit", Name(SysExit))
	require.Equal(t, "close", Name(SysClose))
	require.Equal(t, "unknown", Name(9999))
}
