package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	tokenRefreshLeeway = 30 * time.Second
	tokenLockAttempts  = 3
	tokenLockBackoff   = 500 * time.Millisecond
	tokenLockLease     = 15 * time.Second
)

// Lease is the mutual-exclusion primitive guarding the token refresh. The
// default implementation is in-process; a shared-cache backed lease (owner
// token plus TTL) satisfies the same contract for multi-process deployments.
type Lease interface {
	// TryAcquire returns an owner token when the lease was free, or ok=false
	// when another holder owns it.
	TryAcquire() (owner string, ok bool)
	Release(owner string)
}

type memoryLease struct {
	mu      sync.Mutex
	owner   string
	expires time.Time
	ttl     time.Duration
}

// NewMemoryLease builds an in-process lease with the given hold TTL. Expired
// holds are reclaimable, so a crashed holder cannot wedge the refresh path.
func NewMemoryLease(ttl time.Duration) Lease {
	return &memoryLease{ttl: ttl}
}

func (l *memoryLease) TryAcquire() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.owner != "" && now.Before(l.expires) {
		return "", false
	}

	l.owner = uuid.NewString()
	l.expires = now.Add(l.ttl)
	return l.owner, true
}

func (l *memoryLease) Release(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner == owner {
		l.owner = ""
		l.expires = time.Time{}
	}
}

// TokenCache holds the provider auth token in memory with a TTL and refetches
// it under a lease so concurrent workers trigger exactly one auth request.
type TokenCache struct {
	mu      sync.RWMutex
	token   string
	expires time.Time

	ttl   time.Duration
	lease Lease
	fetch func(ctx context.Context) (string, error)

	sleep func(time.Duration)
}

// NewTokenCache builds a TokenCache. fetch performs the outbound auth call.
func NewTokenCache(ttl time.Duration, lease Lease, fetch func(ctx context.Context) (string, error)) *TokenCache {
	if lease == nil {
		lease = NewMemoryLease(tokenLockLease)
	}
	return &TokenCache{
		ttl:   ttl,
		lease: lease,
		fetch: fetch,
		sleep: time.Sleep,
	}
}

// Token returns the cached provider auth token, fetching a fresh one on miss.
// Lease contention backs off and retries a bounded number of times before
// failing with a ProviderServiceError.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}
	return c.refresh(ctx, tokenLockAttempts)
}

func (c *TokenCache) refresh(ctx context.Context, attempts int) (string, error) {
	if attempts < 1 {
		return "", &ProviderServiceError{
			Message: "token refresh lock unavailable, try again",
			Details: "Auth token",
		}
	}

	owner, ok := c.lease.TryAcquire()
	if !ok {
		c.sleep(tokenLockBackoff)
		// Another worker may have refreshed while we backed off.
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.refresh(ctx, attempts-1)
	}
	defer c.lease.Release(owner)

	// Double-checked: a worker that held the lease before us may already
	// have stored a fresh token.
	if token, ok := c.cached(); ok {
		return token, nil
	}

	token, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = token
	c.expires = time.Now().Add(c.ttl)
	c.mu.Unlock()

	log.Println("[PayMob] provider authentication token refreshed")
	return token, nil
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" {
		return "", false
	}
	if time.Now().Add(tokenRefreshLeeway).After(c.expires) {
		return "", false
	}
	return c.token, true
}
