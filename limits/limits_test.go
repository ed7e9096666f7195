package limits

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTakeGiveRoundTrips(t *testing.T) {
	s := Sysatomic_t(2)
	require.True(t, s.Take())
	require.EqualValues(t, 1, s)
	require.True(t, s.Take())
	require.EqualValues(t, 0, s)
	require.False(t, s.Take(), "budget exhausted")
	require.EqualValues(t, 0, s, "a failed Take must not touch the counter")

	s.Give()
	require.EqualValues(t, 1, s)
}

func TestTakenRefusesBelowZeroAndLeavesCounterUnchanged(t *testing.T) {
	s := Sysatomic_t(3)
	require.False(t, s.Taken(5))
	require.EqualValues(t, 3, s)

	require.True(t, s.Taken(3))
	require.EqualValues(t, 0, s)
}

func TestGivenPanicsOnNegativeIntent(t *testing.T) {
	s := Sysatomic_t(0)
	require.Panics(t, func() { s.Given(^uint(0)) })
}

func TestTakeIsSafeForConcurrentCallers(t *testing.T) {
	s := Sysatomic_t(100)
	var wg sync.WaitGroup
	successes := make(chan bool, 150)
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			successes <- s.Take()
		}()
	}
	wg.Wait()
	close(successes)

	ok := 0
	for v := range successes {
		if v {
			ok++
		}
	}
	require.Equal(t, 100, ok, "exactly the starting budget's worth of Takes should succeed")
	require.EqualValues(t, 0, s)
}

func TestMkSysLimitDefaults(t *testing.T) {
	l := MkSysLimit()
	require.EqualValues(t, 1e4, l.Sysprocs)
	require.Equal(t, 1024, l.Futexes)
}
