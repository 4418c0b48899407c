package social

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited decorates a Client with a token-bucket limit on outbound
// calls, keeping the monitors inside the upstream API's rate budget.
type RateLimited struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited wraps client so that at most perSec calls per second are
// made, with the given burst. A perSec of 0 disables limiting.
func NewRateLimited(client Client, perSec float64, burst int) *RateLimited {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}

	return &RateLimited{
		inner:   client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *RateLimited) FriendIDs(ctx context.Context, screenName string) ([]int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.FriendIDs(ctx, screenName)
}

func (c *RateLimited) FriendIDsByUserID(ctx context.Context, userID int64) ([]int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.FriendIDsByUserID(ctx, userID)
}

func (c *RateLimited) UsersByIDs(ctx context.Context, ids []int64) ([]User, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.UsersByIDs(ctx, ids)
}
