package ups

import (
	"context"
	"sync"
	"time"
)

// tokenRefreshMargin is how long before the reported expiry a token is considered stale.
const tokenRefreshMargin = 60 * time.Second

// TokenCache holds one bearer token shared by every request of a Client.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

// TokenFetcher exchanges credentials for a token and its lifetime.
type TokenFetcher func(ctx context.Context) (token string, expiresIn time.Duration, err error)

// Get returns the cached token, calling fetch when it is missing or within the refresh margin.
// Concurrent callers wait for a single in-flight refresh.
func (c *TokenCache) Get(ctx context.Context, fetch TokenFetcher) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	token, expiresIn, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = c.now().Add(expiresIn - tokenRefreshMargin)
	return token, nil
}

// Invalidate drops the cached token, e.g. after a 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}
