package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginGuardTimeout = 500 * time.Millisecond

type failureBucket struct {
	hour  string
	count int
}

// LoginGuard counts failed logins per client IP and hour and bans an IP for a
// while once the hourly limit is reached. Counters live in Redis when a client
// is given, otherwise in process memory. Redis errors fail open.
type LoginGuard struct {
	rc          *redis.Client
	maxFailures int
	banFor      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	failures map[string]failureBucket
	bans     map[string]time.Time
}

// NewLoginGuard returns a guard. rc may be nil.
func NewLoginGuard(rc *redis.Client, maxFailuresPerHour int, banFor time.Duration) *LoginGuard {
	if maxFailuresPerHour <= 0 {
		maxFailuresPerHour = 20
	}
	if banFor <= 0 {
		banFor = 15 * time.Minute
	}
	return &LoginGuard{
		rc:          rc,
		maxFailures: maxFailuresPerHour,
		banFor:      banFor,
		now:         time.Now,
		failures:    map[string]failureBucket{},
		bans:        map[string]time.Time{},
	}
}

func loginKey(parts ...string) string {
	key := "login"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (g *LoginGuard) hour() string {
	return g.now().Format("2006010215")
}

// IsBanned checks temporary ban status for ip.
func (g *LoginGuard) IsBanned(ip string) bool {
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), loginGuardTimeout)
		defer cancel()
		n, err := g.rc.Exists(ctx, loginKey("ban", ip)).Result()
		if err != nil {
			return false
		}
		return n > 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.bans[ip]
	if !ok {
		return false
	}
	if g.now().After(until) {
		delete(g.bans, ip)
		return false
	}
	return true
}

// RecordFailure counts a failed login and bans ip once the hourly limit is hit.
// It reports whether ip is banned afterwards.
func (g *LoginGuard) RecordFailure(ip string) bool {
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), loginGuardTimeout)
		defer cancel()
		key := loginKey("failhour", ip, g.hour())
		n, err := g.rc.Incr(ctx, key).Result()
		if err != nil {
			return false
		}
		_ = g.rc.Expire(ctx, key, time.Hour).Err()
		if int(n) < g.maxFailures {
			return false
		}
		_ = g.rc.Set(ctx, loginKey("ban", ip), "1", g.banFor).Err()
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	hour := g.hour()
	b := g.failures[ip]
	if b.hour != hour {
		b = failureBucket{hour: hour}
	}
	b.count++
	if b.count < g.maxFailures {
		g.failures[ip] = b
		return false
	}
	delete(g.failures, ip)
	g.bans[ip] = g.now().Add(g.banFor)
	return true
}

// Reset clears the failure counter of ip after a successful login.
func (g *LoginGuard) Reset(ip string) {
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), loginGuardTimeout)
		defer cancel()
		_ = g.rc.Del(ctx, loginKey("failhour", ip, g.hour())).Err()
		return
	}
	g.mu.Lock()
	delete(g.failures, ip)
	g.mu.Unlock()
}

// Prune drops expired bans and counters from past hours. Only the in-memory
// path keeps such state; Redis expires its keys on its own.
func (g *LoginGuard) Prune() {
	if g.rc != nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	hour := now.Format("2006010215")
	for ip, until := range g.bans {
		if now.After(until) {
			delete(g.bans, ip)
		}
	}
	for ip, b := range g.failures {
		if b.hour != hour {
			delete(g.failures, ip)
		}
	}
}
