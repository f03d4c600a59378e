// Package ratelimit caps how many requests a client may make per time window.
//
// Two stores implement the same Limiter interface: MemoryLimiter keeps
// counters in the process (reset on restart, per instance) and RedisLimiter
// keeps them in Redis so every instance behind a load balancer shares one
// budget per client.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int           // requests left in the current window
	RetryAfter time.Duration // set when the request was rejected
}

// Limiter admits or rejects a request for a client key.
type Limiter interface {
	Admit(ctx context.Context, key string) Decision
}

// Noop admits everything. Used when rate limiting is disabled.
type Noop struct{}

// Admit implements Limiter.
func (Noop) Admit(context.Context, string) Decision {
	return Decision{Allowed: true}
}
