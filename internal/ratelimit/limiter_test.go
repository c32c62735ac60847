package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheck_AdmitsUpToBudget(t *testing.T) {
	l := New()

	for i := 0; i < 5; i++ {
		res := l.Check("client-a", 5, time.Minute)
		assert.True(t, res.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 5-(i+1), res.Remaining)
	}

	res := l.Check("client-a", 5, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestCheck_ExhaustedCounterStopsGrowing(t *testing.T) {
	l := New()

	for i := 0; i < 3; i++ {
		l.Check("flood", 1, time.Minute)
	}

	l.mu.Lock()
	count := l.windows["flood"].count
	l.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestCheck_FreshWindowAfterReset(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return current }

	first := l.Check("client-a", 2, time.Minute)
	assert.True(t, first.Allowed)
	l.Check("client-a", 2, time.Minute)
	blocked := l.Check("client-a", 2, time.Minute)
	assert.False(t, blocked.Allowed)
	assert.Equal(t, first.ResetAt, blocked.ResetAt)

	current = current.Add(61 * time.Second)

	fresh := l.Check("client-a", 2, time.Minute)
	assert.True(t, fresh.Allowed)
	assert.Equal(t, 1, fresh.Remaining)
	assert.Equal(t, current.Add(time.Minute), fresh.ResetAt)
}

func TestCheck_IndependentClients(t *testing.T) {
	l := New()

	l.Check("client-a", 1, time.Minute)
	blocked := l.Check("client-a", 1, time.Minute)
	other := l.Check("client-b", 1, time.Minute)

	assert.False(t, blocked.Allowed)
	assert.True(t, other.Allowed)
}

func TestCheck_ConcurrentSameKeyAdmitsExactlyBudget(t *testing.T) {
	l := New()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Result, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Check("shared", 1, time.Minute)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, r := range results {
		if r.Allowed {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
}

func TestSweep_RemovesOnlyExpiredWindows(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return current }

	l.Check("short", 5, time.Second)
	l.Check("long", 5, time.Hour)
	assert.Equal(t, 2, l.Len())

	current = current.Add(2 * time.Second)

	removed := l.sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Len())

	// The surviving window still counts.
	res := l.Check("long", 5, time.Hour)
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Remaining)
}
