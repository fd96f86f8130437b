// Package auth throttles clients that keep presenting a wrong access token.
package auth

import (
	"fmt"
	"sync"
	"time"
)

// Lockout policy:
//   - 10 consecutive failures → lock for 1 hour
//   - 50 failures in a UTC day → lock for the rest of the day
const (
	MaxConsecutiveFailures = 10
	ConsecutiveLockout     = time.Hour
	MaxDailyFailures       = 50
)

type clientState struct {
	consecutive int
	lockedUntil time.Time
	day         time.Time
	dailyFails  int
}

// LoginLimiter tracks failed token attempts per client address.
type LoginLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientState
	now     func() time.Time
}

// NewLoginLimiter creates an empty LoginLimiter.
func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{clients: make(map[string]*clientState), now: time.Now}
}

// CheckAllowed returns nil if ip may try a token, or an error describing the
// lockout.
func (ll *LoginLimiter) CheckAllowed(ip string) error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	st, ok := ll.clients[ip]
	if !ok {
		return nil
	}
	now := ll.now().UTC()
	if now.Before(st.lockedUntil) {
		remaining := st.lockedUntil.Sub(now)
		if remaining < time.Minute {
			return fmt.Errorf("too many failed attempts, try again shortly")
		}
		return fmt.Errorf("too many failed attempts, try again in %d minutes", int(remaining.Minutes()))
	}
	return nil
}

// RecordAttempt records a token attempt from ip. A success resets the
// consecutive counter but not the daily one.
func (ll *LoginLimiter) RecordAttempt(ip string, success bool) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	now := ll.now().UTC()
	st, ok := ll.clients[ip]
	if !ok {
		if success {
			return
		}
		st = &clientState{}
		ll.clients[ip] = st
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !st.day.Equal(today) {
		st.day, st.dailyFails = today, 0
	}

	if success {
		st.consecutive = 0
		return
	}
	st.consecutive++
	st.dailyFails++
	if st.dailyFails >= MaxDailyFailures {
		st.lockedUntil = today.Add(24 * time.Hour)
	} else if st.consecutive >= MaxConsecutiveFailures {
		st.lockedUntil = now.Add(ConsecutiveLockout)
		st.consecutive = 0
	}
}

// CleanOld drops clients with no lock and no failures today.
func (ll *LoginLimiter) CleanOld() {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	now := ll.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for ip, st := range ll.clients {
		if now.After(st.lockedUntil) && (st.day.Before(today) || st.dailyFails == 0) {
			delete(ll.clients, ip)
		}
	}
}
