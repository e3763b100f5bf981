// Package ratelimit enforces per-address request ceilings in front of the
// HTTP handlers.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Rule allows at most Limit requests in any Window long stretch of time.
type Rule struct {
	Limit  int
	Window time.Duration
}

func PerMinute(n int) Rule { return Rule{Limit: n, Window: time.Minute} }
func PerHour(n int) Rule   { return Rule{Limit: n, Window: time.Hour} }
func PerDay(n int) Rule    { return Rule{Limit: n, Window: 24 * time.Hour} }

type client struct {
	// hits[i] holds the admitted request times for rules[i], oldest first
	hits     [][]time.Time
	lastSeen time.Time
}

// Limiter keeps a sliding-window log per rule and client address. Addresses
// idle for longer than ttl are dropped on a later call.
type Limiter struct {
	Name string

	mu        sync.Mutex
	rules     []Rule
	clients   map[string]*client
	ttl       time.Duration
	lastSweep time.Time

	now func() time.Time
}

func NewLimiter(name string, ttl time.Duration, rules ...Rule) *Limiter {
	return &Limiter{
		Name:    name,
		rules:   rules,
		clients: make(map[string]*client),
		ttl:     ttl,
		now:     time.Now,
	}
}

// reservation is one admitted request; cancelling forgets it again.
type reservation struct {
	l   *Limiter
	key string
	at  time.Time
}

func (r *reservation) cancel() {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	cl, ok := r.l.clients[r.key]
	if !ok {
		return
	}
	for i, hits := range cl.hits {
		for j := len(hits) - 1; j >= 0; j-- {
			if hits[j].Equal(r.at) {
				cl.hits[i] = append(hits[:j], hits[j+1:]...)
				break
			}
		}
	}
}

// reserve records one request for key if every rule still has room. A
// refused request is not recorded; the reported wait is how long until the
// oldest blocking entry leaves its window.
func (l *Limiter) reserve(key string) (*reservation, time.Duration, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	cl, ok := l.clients[key]
	if !ok {
		cl = &client{hits: make([][]time.Time, len(l.rules))}
		l.clients[key] = cl
	}
	cl.lastSeen = now

	for i, rule := range l.rules {
		if rule.Limit <= 0 {
			return nil, rule.Window, false
		}
		hits := expire(cl.hits[i], now, rule.Window)
		cl.hits[i] = hits
		if len(hits) >= rule.Limit {
			return nil, hits[len(hits)-rule.Limit].Add(rule.Window).Sub(now), false
		}
	}

	for i := range l.rules {
		cl.hits[i] = append(cl.hits[i], now)
	}
	return &reservation{l: l, key: key, at: now}, 0, true
}

// expire drops the entries that are a full window old.
func expire(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(hits) && now.Sub(hits[i]) >= window {
		i++
	}
	return hits[i:]
}

// Allow reports whether key may make one more request now.
func (l *Limiter) Allow(key string) bool {
	_, _, ok := l.reserve(key)
	return ok
}

func (l *Limiter) sweep(now time.Time) {
	if l.ttl <= 0 || now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for k, cl := range l.clients {
		if now.Sub(cl.lastSeen) > l.ttl {
			delete(l.clients, k)
		}
	}
}

// Len is the number of tracked addresses.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
