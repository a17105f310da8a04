package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bluefin-labs/enterprise-api/internal/cache"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// RateLimiterService enforces a fixed-window request limit per client
// key using Redis counters. When Redis is unavailable the limiter fails
// open so an infrastructure outage cannot take down the API.
type RateLimiterService interface {
	// Allow increments the counter for key and reports whether the
	// request is within the window's limit.
	Allow(ctx context.Context, key string) (bool, error)
}

type rateLimiterService struct {
	cache  *cache.Manager
	limit  int64
	window time.Duration
}

func NewRateLimiterService(cacheMgr *cache.Manager, limit int, window time.Duration) RateLimiterService {
	return &rateLimiterService{
		cache:  cacheMgr,
		limit:  int64(limit),
		window: window,
	}
}

func (s *rateLimiterService) Allow(ctx context.Context, key string) (bool, error) {
	if !s.cache.Enabled() {
		return true, nil
	}
	count, err := s.cache.IncrementWithWindow(ctx, fmt.Sprintf("ratelimit:%s", key), s.window)
	if err != nil {
		utils.Logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
		return true, nil
	}
	return count <= s.limit, nil
}
