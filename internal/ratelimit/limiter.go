// Package ratelimit spaces out calls to one external API.
package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Default minimum intervals between calls.
const (
	DefaultShipStationInterval = 1500 * time.Millisecond // ~40/min
	DefaultShopifyInterval     = 550 * time.Millisecond  // 2/sec with headroom
	DefaultUPSInterval         = 150 * time.Millisecond
)

// Limiter lets one call through per interval, first come first served.
// A provider 429 is not fed back here: callers that need backoff must layer it on top.
type Limiter struct {
	name string
	l    *rate.Limiter
}

func New(name string, minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		return &Limiter{name: name, l: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{name: name, l: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the interval since the previous allowed call has elapsed.
// A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.l.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s rate limiter", l.name)
	}
	return nil
}

func (l *Limiter) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// WithDefault returns a limiter with ms milliseconds spacing, or def when ms is unset.
func WithDefault(name string, ms int, def time.Duration) *Limiter {
	if ms <= 0 {
		return New(name, def)
	}
	return New(name, time.Duration(ms)*time.Millisecond)
}
