package gate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdmitWithinLimit(t *testing.T) {
	current := time.Unix(1000, 0)
	g := New(
		WithLimits(3, 10*time.Second),
		WithClock(func() time.Time { return current }),
	)

	require.True(t, g.Admit("client-a"))
	require.True(t, g.Admit("client-a"))
	require.True(t, g.Admit("client-a"))
	require.False(t, g.Admit("client-a"), "fourth admission must be denied")

	// A different identity is unaffected.
	require.True(t, g.Admit("client-b"))

	// After the window elapses the client is admitted again.
	current = current.Add(11 * time.Second)
	require.True(t, g.Admit("client-a"))
}

func TestAdmitSlidingWindow(t *testing.T) {
	current := time.Unix(2000, 0)
	g := New(
		WithLimits(2, 10*time.Second),
		WithClock(func() time.Time { return current }),
	)

	require.True(t, g.Admit("c"))
	current = current.Add(6 * time.Second)
	require.True(t, g.Admit("c"))
	require.False(t, g.Admit("c"))

	// First admission expires, second is still inside the window.
	current = current.Add(5 * time.Second)
	require.True(t, g.Admit("c"))
	require.False(t, g.Admit("c"))
}

func TestAdmitConcurrentSameClient(t *testing.T) {
	g := New(WithLimits(50, time.Minute))

	var wg sync.WaitGroup
	admitted := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted <- g.Admit("shared")
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	require.Equal(t, 50, count, "check-and-increment must not over-admit under races")
}

func TestTrackedIdentitiesAreBounded(t *testing.T) {
	g := New(WithLimits(1, time.Minute), WithMaxClients(100))

	for i := 0; i < 1000; i++ {
		g.Admit(fmt.Sprintf("spoofed-%d", i))
	}
	require.LessOrEqual(t, g.Tracked(), 100)
}

func TestSetLimitsHotSwap(t *testing.T) {
	current := time.Unix(3000, 0)
	g := New(
		WithLimits(1, time.Minute),
		WithClock(func() time.Time { return current }),
	)

	require.True(t, g.Admit("c"))
	require.False(t, g.Admit("c"))

	g.SetLimits(3, time.Minute)
	require.True(t, g.Admit("c"))
	require.True(t, g.Admit("c"))
	require.False(t, g.Admit("c"))

	// Invalid values are ignored.
	g.SetLimits(0, 0)
	require.False(t, g.Admit("c"))
}
