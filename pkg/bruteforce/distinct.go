package bruteforce

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// distinctUsers records which users failed from an IP. Callers hold the
// Tracker mutex.
type distinctUsers interface {
	add(ip, userID string, now time.Time)
	count(ip string, now time.Time) int
}

// unboundedUserSet never forgets a user.
type unboundedUserSet struct {
	users map[string]map[string]struct{}
}

func newUnboundedUserSet() *unboundedUserSet {
	return &unboundedUserSet{users: make(map[string]map[string]struct{})}
}

func (s *unboundedUserSet) add(ip, userID string, _ time.Time) {
	set, ok := s.users[ip]
	if !ok {
		set = make(map[string]struct{})
		s.users[ip] = set
	}
	set[userID] = struct{}{}
}

func (s *unboundedUserSet) count(ip string, _ time.Time) int {
	return len(s.users[ip])
}

// boundedUserSet keeps at most maxPerIP users per IP, evicting the least
// recently failing one, and forgets users idle longer than ttl.
type boundedUserSet struct {
	maxPerIP int
	ttl      time.Duration
	users    map[string]*lru.Cache[string, time.Time]
}

func newBoundedUserSet(maxPerIP int, ttl time.Duration) (*boundedUserSet, error) {
	if maxPerIP <= 0 {
		return nil, fmt.Errorf("distinct user bound must be positive, got %d", maxPerIP)
	}
	return &boundedUserSet{
		maxPerIP: maxPerIP,
		ttl:      ttl,
		users:    make(map[string]*lru.Cache[string, time.Time]),
	}, nil
}

func (s *boundedUserSet) add(ip, userID string, now time.Time) {
	cache, ok := s.users[ip]
	if !ok {
		// lru.New only fails on a non-positive size, checked above.
		cache, _ = lru.New[string, time.Time](s.maxPerIP)
		s.users[ip] = cache
	}
	cache.Add(userID, now)
}

func (s *boundedUserSet) count(ip string, now time.Time) int {
	cache, ok := s.users[ip]
	if !ok {
		return 0
	}
	if s.ttl > 0 {
		cutoff := now.Add(-s.ttl)
		for _, user := range cache.Keys() {
			if seen, ok := cache.Peek(user); ok && seen.Before(cutoff) {
				cache.Remove(user)
			}
		}
	}
	if cache.Len() == 0 {
		delete(s.users, ip)
		return 0
	}
	return cache.Len()
}
