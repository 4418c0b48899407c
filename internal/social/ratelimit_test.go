package social

import (
	"context"
	"testing"
	"time"
)

type countingClient struct {
	calls int
}

func (c *countingClient) FriendIDs(context.Context, string) ([]int64, error) {
	c.calls++
	return []int64{1}, nil
}

func (c *countingClient) FriendIDsByUserID(context.Context, int64) ([]int64, error) {
	c.calls++
	return []int64{2}, nil
}

func (c *countingClient) UsersByIDs(context.Context, []int64) ([]User, error) {
	c.calls++
	return []User{{UserID: 1, ScreenName: "alice"}}, nil
}

func TestRateLimitedDelegates(t *testing.T) {
	inner := &countingClient{}
	client := NewRateLimited(inner, 0, 0)
	ctx := context.Background()

	if _, err := client.FriendIDs(ctx, "alice"); err != nil {
		t.Fatalf("friend ids: %v", err)
	}
	if _, err := client.FriendIDsByUserID(ctx, 1); err != nil {
		t.Fatalf("friend ids by user id: %v", err)
	}
	users, err := client.UsersByIDs(ctx, []int64{1})
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 1 || users[0].ScreenName != "alice" {
		t.Errorf("users = %+v", users)
	}

	if inner.calls != 3 {
		t.Errorf("expected 3 delegated calls, got %d", inner.calls)
	}
}

func TestRateLimitedThrottles(t *testing.T) {
	inner := &countingClient{}
	client := NewRateLimited(inner, 20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.FriendIDs(ctx, "alice"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// Burst 1 at 20/s: the second and third calls each wait ~50ms.
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected the limiter to pace calls, took %s", elapsed)
	}
}

func TestRateLimitedHonorsCancellation(t *testing.T) {
	inner := &countingClient{}
	client := NewRateLimited(inner, 0.001, 1)
	ctx := context.Background()

	// Drain the single burst token.
	if _, err := client.FriendIDs(ctx, "alice"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	if _, err := client.FriendIDs(cancelled, "alice"); err == nil {
		t.Error("expected a context error while waiting for a token")
	}
	if inner.calls != 1 {
		t.Errorf("expected the cancelled call not to reach the client, got %d calls", inner.calls)
	}
}
