// Package bruteforce tracks failed logins in sliding windows and turns the
// counts into lock decisions.
//
// All state lives in a Tracker behind one mutex. Windows are trimmed lazily on
// read and write, and locks only expire when UnlockIfExpired is called; there
// are no background goroutines.
package bruteforce

import (
	"sync"
	"time"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// TrackerConfig sets the retention of each failure window.
type TrackerConfig struct {
	UserWindow   time.Duration
	IPWindow     time.Duration
	UserIPWindow time.Duration

	// DistinctUsersMaxPerIP > 0 bounds the users remembered per IP (LRU).
	// Zero keeps every user ever seen, which grows without limit.
	DistinctUsersMaxPerIP int
	// DistinctUsersTTL forgets users not seen for this long. Only used with
	// the bounded set; zero disables expiry.
	DistinctUsersTTL time.Duration
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		UserWindow:   time.Hour,
		IPWindow:     time.Hour,
		UserIPWindow: 30 * time.Minute,
	}
}

type pairKey struct {
	user string
	ip   string
}

// Tracker owns the failure windows, the distinct-user sets and the lock table.
type Tracker struct {
	mu  sync.Mutex
	cfg TrackerConfig
	now func() time.Time

	userFails map[string][]time.Time
	ipFails   map[string][]time.Time
	pairFails map[pairKey][]time.Time
	distinct  distinctUsers
	locks     map[string]time.Time // user -> expiry
	outcomes  map[string][]bool    // user -> last RecentAttempts results, true = failed
}

// RecentAttempts is how many of a user's latest attempts RecentFailures looks at.
const RecentAttempts = 5

type TrackerOption func(*Tracker)

// WithClock replaces time.Now, for tests and replay.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(cfg TrackerConfig, opts ...TrackerOption) (*Tracker, error) {
	t := &Tracker{
		cfg:       cfg,
		now:       time.Now,
		userFails: make(map[string][]time.Time),
		ipFails:   make(map[string][]time.Time),
		pairFails: make(map[pairKey][]time.Time),
		locks:     make(map[string]time.Time),
		outcomes:  make(map[string][]bool),
	}
	for _, opt := range opts {
		opt(t)
	}

	if cfg.DistinctUsersMaxPerIP > 0 {
		set, err := newBoundedUserSet(cfg.DistinctUsersMaxPerIP, cfg.DistinctUsersTTL)
		if err != nil {
			return nil, err
		}
		t.distinct = set
	} else {
		t.distinct = newUnboundedUserSet()
	}
	return t, nil
}

// RecordFailure registers one failed authentication. Call it exactly once per
// attempt.
func (t *Tracker) RecordFailure(userID, ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	key := pairKey{user: userID, ip: ip}

	t.userFails[userID] = append(t.userFails[userID], now)
	t.ipFails[ip] = append(t.ipFails[ip], now)
	t.pairFails[key] = append(t.pairFails[key], now)
	t.distinct.add(ip, userID, now)

	trimKey(t.userFails, userID, now, t.cfg.UserWindow)
	trimKey(t.ipFails, ip, now, t.cfg.IPWindow)
	trimKey(t.pairFails, key, now, t.cfg.UserIPWindow)
}

// Status trims the user and IP windows and reports the counters. A lock
// entry that is still present reports Locked even after its expiry.
func (t *Tracker) Status(userID, ip string) models.BruteForceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	trimKey(t.userFails, userID, now, t.cfg.UserWindow)
	trimKey(t.ipFails, ip, now, t.cfg.IPWindow)

	st := models.BruteForceStatus{
		UserFailCount:       len(t.userFails[userID]),
		IPFailCount:         len(t.ipFails[ip]),
		DistinctUsersFromIP: t.distinct.count(ip, now),
	}
	if expiry, ok := t.locks[userID]; ok {
		st.Locked = true
		st.LockExpiresAt = &expiry
	}
	return st
}

// PairFailures returns the failures for (userID, ip) inside UserIPWindow.
func (t *Tracker) PairFailures(userID, ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pairKey{user: userID, ip: ip}
	trimKey(t.pairFails, key, t.now(), t.cfg.UserIPWindow)
	return len(t.pairFails[key])
}

// Lock sets or refreshes the user's lock to expire after d.
func (t *Tracker) Lock(userID string, d time.Duration) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry := t.now().Add(d)
	t.locks[userID] = expiry
	return expiry
}

// LockState returns the stored expiry without side effects.
func (t *Tracker) LockState(userID string) (expiry time.Time, locked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, locked = t.locks[userID]
	return expiry, locked
}

// UnlockIfExpired removes the lock when its expiry is at or before now and
// reports whether it did.
func (t *Tracker) UnlockIfExpired(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, ok := t.locks[userID]
	if !ok || expiry.After(t.now()) {
		return false
	}
	delete(t.locks, userID)
	return true
}

// RecordAttempt appends the outcome of one attempt, successful or not, to
// the user's recent history.
func (t *Tracker) RecordAttempt(userID string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := append(t.outcomes[userID], !success)
	if len(h) > RecentAttempts {
		h = append(h[:0:0], h[len(h)-RecentAttempts:]...)
	}
	t.outcomes[userID] = h
}

// RecentFailures counts the failures among the user's last RecentAttempts
// recorded attempts. Time plays no part.
func (t *Tracker) RecentFailures(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, failed := range t.outcomes[userID] {
		if failed {
			n++
		}
	}
	return n
}

// trimKey drops timestamps older than window and removes the key once its
// window is empty.
func trimKey[K comparable](m map[K][]time.Time, key K, now time.Time, window time.Duration) {
	ts, ok := m[key]
	if !ok {
		return
	}
	cutoff := now.Add(-window)

	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == len(ts) {
		delete(m, key)
		return
	}
	if i > 0 {
		m[key] = append(ts[:0:0], ts[i:]...)
	}
}
