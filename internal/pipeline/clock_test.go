package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// virtualClock advances only when the poll loop sleeps, so minute-scale
// bounds run instantly.
type virtualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newVirtualClock() *virtualClock {
	return &virtualClock{now: time.Unix(0, 0)}
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *virtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestPollUntilTimesOutAfterBound(t *testing.T) {
	clk := newVirtualClock()
	calls := 0

	// An overlay that never disappears: the 16 minute bound must end the
	// wait on virtual time.
	err := pollUntil(context.Background(), clk, time.Second, 16*time.Minute, "upload transcode", func() (bool, error) {
		calls++
		return false, nil
	})

	if !errors.Is(err, ErrStageTimeout) {
		t.Fatalf("expected ErrStageTimeout, got %v", err)
	}
	if calls != 961 {
		t.Errorf("expected 961 checks (one per second plus the deadline check), got %d", calls)
	}
	if got := clk.Now().Sub(time.Unix(0, 0)); got != 16*time.Minute {
		t.Errorf("expected clock at the 16m bound, got %s", got)
	}
}

func TestPollUntilStopsOnSuccess(t *testing.T) {
	clk := newVirtualClock()
	calls := 0

	err := pollUntil(context.Background(), clk, time.Second, time.Minute, "overlay", func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 checks, got %d", calls)
	}
}

func TestPollUntilPropagatesCheckError(t *testing.T) {
	boom := errors.New("page gone")
	err := pollUntil(context.Background(), newVirtualClock(), time.Second, time.Minute, "overlay", func() (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected check error, got %v", err)
	}
}

func TestPollUntilHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pollUntil(ctx, newVirtualClock(), time.Second, time.Hour, "overlay", func() (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
