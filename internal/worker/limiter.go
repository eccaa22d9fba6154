package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces requests per destination host
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until a request to rawURL's host is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.forHost(host).Wait(ctx)
}

// Allow reports whether a request to rawURL's host may go now, consuming a
// token if so
func (l *Limiter) Allow(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return l.forHost(host).Allow()
}

// SetHostRate overrides the rate for one host
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.limiters[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[host] = limiter
	return limiter
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return parsed.Host, nil
}
