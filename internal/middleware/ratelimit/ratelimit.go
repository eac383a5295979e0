// Package ratelimit throttles form submissions per client.
package ratelimit

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls a Limiter. Zero fields take DefaultConfig values.
type Config struct {
	// RequestsPerMinute is the budget per client and window.
	RequestsPerMinute int
	Window            time.Duration

	// Clients idle for StaleAfter are forgotten by the sweeper.
	StaleAfter    time.Duration
	SweepInterval time.Duration

	// Methods restricts limiting to these HTTP methods. Empty limits all.
	Methods []string
}

// DefaultConfig limits writes only, 60 per minute per client.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Window:            time.Minute,
		StaleAfter:        10 * time.Minute,
		SweepInterval:     5 * time.Minute,
		Methods:           []string{http.MethodPost},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	return c
}

type window struct {
	start time.Time
	last  time.Time
	count int
}

// Limiter is a fixed-window limiter keyed by client address.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	rejected atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLimiter starts the sweeper goroutine. Call Stop to release it.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg.withDefaults(),
		windows: make(map[string]*window),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow records a request from client. When the budget is spent it returns
// false and the time left until the window resets.
func (l *Limiter) Allow(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[client]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		if !ok {
			w = &window{}
			l.windows[client] = w
		}
		w.start, w.count = now, 0
	}
	w.last = now
	w.count++

	if w.count > l.cfg.RequestsPerMinute {
		l.rejected.Add(1)
		return false, l.cfg.Window - now.Sub(w.start)
	}
	return true, 0
}

func (l *Limiter) sweepLoop() {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.StaleAfter)
	for client, w := range l.windows {
		if w.last.Before(cutoff) {
			delete(l.windows, client)
		}
	}
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop ends the sweeper and waits for it. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   l.rejected.Load(),
		ClientCount: int64(l.ActiveClients()),
	}
}

func (l *Limiter) applies(method string) bool {
	return len(l.cfg.Methods) == 0 || slices.Contains(l.cfg.Methods, method)
}

// Middleware limits requests keyed by clientKey. onLimit writes the
// rejection after Retry-After is set; when nil a plain 429 is sent.
func (l *Limiter) Middleware(clientKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.applies(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, retry := l.Allow(clientKey(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			secs := int64((retry + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.FormatInt(max(secs, 1), 10))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
