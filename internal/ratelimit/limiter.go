// Package ratelimit provides per-client sliding-window request admission.
package ratelimit

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

const (
	// DefaultWindow is the trailing window size.
	DefaultWindow = time.Minute
	// DefaultMax is the maximum admissions per window per client.
	DefaultMax = 10

	// sweepProbability is the chance per admitted call of a full sweep
	// dropping clients with no in-window history.
	sweepProbability = 0.01
)

// Limiter admits at most max requests per client within a trailing window.
// Admission check and timestamp append are one atomic unit, so concurrent
// requests for the same client can never exceed the bound.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	clients map[string][]time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a Limiter with the given window and per-window maximum.
func New(window time.Duration, max int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &Limiter{
		window:  window,
		max:     max,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Admit records a request for clientID if it is under the limit.
// Returns false without recording when the client is at the limit.
func (l *Limiter) Admit(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.pruneLocked(clientID, now)

	if len(recent) >= l.max {
		return false
	}

	l.clients[clientID] = append(recent, now)

	if rand.Float64() < sweepProbability {
		l.sweepLocked(now)
	}

	return true
}

// Remaining returns how many admissions clientID has left in the current
// window. Never negative.
func (l *Limiter) Remaining(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.pruneLocked(clientID, l.now())
	remaining := l.max - len(recent)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ResetAt returns when the client's oldest recorded request leaves the
// window, or the zero time if the client has no history.
func (l *Limiter) ResetAt(clientID string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.clients[clientID]
	if len(stamps) == 0 {
		return time.Time{}
	}

	oldest := stamps[0]
	for _, ts := range stamps[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}
	return oldest.Add(l.window)
}

// pruneLocked drops clientID's timestamps older than the window and stores
// the pruned slice back. Caller must hold the mutex.
func (l *Limiter) pruneLocked(clientID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	stamps := l.clients[clientID]

	recent := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) == 0 {
		delete(l.clients, clientID)
		return nil
	}

	l.clients[clientID] = recent
	return recent
}

// sweepLocked removes every client with no in-window timestamps.
// Caller must hold the mutex.
func (l *Limiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	dropped := 0

	for id, stamps := range l.clients {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.clients, id)
			dropped++
		}
	}

	if dropped > 0 {
		slog.Debug("Rate limiter sweep",
			"dropped", dropped,
			"remaining", len(l.clients),
		)
	}
}

// ClientCount returns the number of tracked clients.
func (l *Limiter) ClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
