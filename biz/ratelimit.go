package biz

import (
	"github.com/vearne/h2replay/config"
	"golang.org/x/time/rate"
)

// Limiter is the part of rate.Limiter the emitter consults per record.
type Limiter interface {
	Allow() bool
}

func NewRateLimit(settings *config.AppSettings) Limiter {
	if settings.RateLimitQPS > 0 {
		value := settings.RateLimitQPS
		return rate.NewLimiter(rate.Limit(value), value)
	}
	return nil
}
