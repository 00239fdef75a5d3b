// SPDX-License-Identifier: MIT

// Package ratelimit paces outbound catalog requests so a large country
// does not hammer the public API.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	waitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aircheck",
		Name:      "ratelimit_wait_seconds",
		Help:      "Time spent waiting for the outbound rate limiter",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Limiter wraps a token bucket for outbound requests.
type Limiter struct {
	bucket *rate.Limiter
}

// New creates a limiter allowing perSecond requests with the given
// burst capacity.
func New(perSecond float64, burst int) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or ctx is done. The wait time
// is observed either way so stalls show up in the histogram.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	err := l.bucket.Wait(ctx)
	waitDuration.Observe(time.Since(start).Seconds())
	return err
}

// Allow reports whether a request may proceed right now without
// consuming wait time.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}
