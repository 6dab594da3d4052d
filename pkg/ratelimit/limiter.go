// Package ratelimit bounds the request rate per client with a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most max requests per client within a trailing window.
// Only admitted requests consume quota; rejected attempts leave the window
// untouched.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	clients map[string][]time.Time

	stopSweep chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a limiter and starts a background sweeper that evicts
// clients whose windows have fully expired. Call Close to stop it.
func New(max int, window time.Duration) *Limiter {
	l := &Limiter{
		max:       max,
		window:    window,
		clients:   make(map[string][]time.Time),
		stopSweep: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.sweepLoop()

	return l
}

// Allow reports whether a request from clientID at time now is admitted,
// recording it when it is. The check and the record happen under one lock
// so two racing requests cannot both take the last slot.
func (l *Limiter) Allow(clientID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := prune(l.clients[clientID], now, l.window)

	if len(recent) >= l.max {
		l.clients[clientID] = recent
		return false
	}

	l.clients[clientID] = append(recent, now)
	return true
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.stopSweep)
		l.wg.Wait()
	})
}

func (l *Limiter) sweepLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now())
		case <-l.stopSweep:
			return
		}
	}
}

// sweep drops clients with no timestamps left inside the window. Allow
// already prunes lazily per client; this bounds memory for clients that
// never come back. prune compacts in place, so the pruned slice must be
// written back for clients that keep live timestamps.
func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, stamps := range l.clients {
		recent := prune(stamps, now, l.window)
		if len(recent) == 0 {
			delete(l.clients, id)
			continue
		}
		l.clients[id] = recent
	}
}

// prune keeps only timestamps still inside the window ending at now.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	recent := stamps[:0]
	for _, ts := range stamps {
		if now.Sub(ts) < window {
			recent = append(recent, ts)
		}
	}
	return recent
}
