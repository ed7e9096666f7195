package accnt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"util"
)

func TestUtaddSystaddAccumulate(t *testing.T) {
	var a Accnt_t
	a.Utadd(100)
	a.Utadd(50)
	require.EqualValues(t, 150, a.Userns)

	a.Systadd(10)
	require.EqualValues(t, 10, a.Sysns)
}

func TestAddMergesBothCounters(t *testing.T) {
	var a, b Accnt_t
	a.Utadd(100)
	a.Systadd(20)
	b.Utadd(5)
	b.Systadd(2)

	a.Add(&b)
	require.EqualValues(t, 105, a.Userns)
	require.EqualValues(t, 22, a.Sysns)
}

func TestFinishAddsElapsedSystemTime(t *testing.T) {
	var a Accnt_t
	start := a.Now()
	a.Finish(start)
	require.GreaterOrEqual(t, a.Sysns, int64(0))
}

func TestToRusageEncodesUserAndSysTimevals(t *testing.T) {
	var a Accnt_t
	a.Utadd(int(2e9 + 500_000)) // 2.0005s
	a.Systadd(int(1e9))         // 1s

	ru := a.To_rusage()
	require.Len(t, ru, 32)

	require.Equal(t, 2, util.Readn(ru, 8, 0))
	require.Equal(t, 500, util.Readn(ru, 8, 8))
	require.Equal(t, 1, util.Readn(ru, 8, 16))
	require.Equal(t, 0, util.Readn(ru, 8, 24))
}

func TestFetchIsEquivalentToLockedToRusage(t *testing.T) {
	var a Accnt_t
	a.Utadd(1000)
	require.Equal(t, a.To_rusage(), a.Fetch())
}
