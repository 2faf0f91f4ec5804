package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(defaultDelay time.Duration) *DomainLimiter {
	dl := NewDomainLimiter(defaultDelay)
	dl.jitter = func() time.Duration { return 0 }
	return dl
}

func TestWaitAppliesDelayOnFirstFetch(t *testing.T) {
	dl := newTestLimiter(50 * time.Millisecond)

	start := time.Now()
	err := dl.Wait(context.Background(), "example.org", 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond,
		"the delay applies even to the first fetch of a domain")
}

func TestWaitEnforcesSpacingBetweenRequests(t *testing.T) {
	dl := newTestLimiter(60 * time.Millisecond)

	start := time.Now()
	require.NoError(t, dl.Wait(context.Background(), "example.org", 0))
	require.NoError(t, dl.Wait(context.Background(), "example.org", 0))
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}

func TestWaitIndependentDomains(t *testing.T) {
	dl := newTestLimiter(80 * time.Millisecond)

	require.NoError(t, dl.Wait(context.Background(), "a.example.org", 0))

	// A different domain does not wait behind the first one's slot.
	start := time.Now()
	require.NoError(t, dl.Wait(context.Background(), "b.example.org", 0))
	assert.Less(t, time.Since(start), 160*time.Millisecond)

	assert.Equal(t, 2, dl.RequestCount())
}

func TestWaitRequiredDelayOverridesDefault(t *testing.T) {
	dl := newTestLimiter(10 * time.Millisecond)

	start := time.Now()
	require.NoError(t, dl.Wait(context.Background(), "example.org", 70*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond,
		"a declared crawl-delay takes precedence over the default")
}

func TestWaitCancelledContext(t *testing.T) {
	dl := newTestLimiter(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dl.Wait(ctx, "example.org", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchThrottleSpacesCalls(t *testing.T) {
	st := NewSearchThrottle(40 * time.Millisecond)

	start := time.Now()
	require.NoError(t, st.Wait(context.Background()))
	require.NoError(t, st.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
