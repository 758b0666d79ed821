package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// loginAttempt tracks failed login attempts from one IP
type loginAttempt struct {
	count    int
	firstAt  time.Time
	lockedAt time.Time
	isLocked bool
}

// LoginRateLimiter locks out an IP after repeated failed logins
type LoginRateLimiter struct {
	mu           sync.Mutex
	attempts     map[string]*loginAttempt
	maxAttempts  int
	windowPeriod time.Duration
	lockDuration time.Duration
}

// NewLoginRateLimiter creates a rate limiter allowing maxAttempts failures
// per windowPeriod before locking the IP for lockDuration
func NewLoginRateLimiter(maxAttempts int, windowPeriod, lockDuration time.Duration) *LoginRateLimiter {
	rl := &LoginRateLimiter{
		attempts:     make(map[string]*loginAttempt),
		maxAttempts:  maxAttempts,
		windowPeriod: windowPeriod,
		lockDuration: lockDuration,
	}
	go rl.startCleanup()
	return rl
}

// startCleanup periodically removes expired entries
func (rl *LoginRateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.cleanup()
	}
}

func (rl *LoginRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, attempt := range rl.attempts {
		if attempt.isLocked {
			if now.Sub(attempt.lockedAt) > rl.lockDuration {
				delete(rl.attempts, ip)
			}
		} else if now.Sub(attempt.firstAt) > rl.windowPeriod {
			delete(rl.attempts, ip)
		}
	}
}

// Check reports whether the IP may attempt a login and, if locked, how long
// until the lock expires
func (rl *LoginRateLimiter) Check(ip string) (allowed bool, lockRemaining time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	attempt, exists := rl.attempts[ip]
	if !exists {
		return true, 0
	}

	now := time.Now()
	if attempt.isLocked {
		remaining := rl.lockDuration - now.Sub(attempt.lockedAt)
		if remaining > 0 {
			return false, remaining
		}
		delete(rl.attempts, ip)
		return true, 0
	}

	if now.Sub(attempt.firstAt) > rl.windowPeriod {
		delete(rl.attempts, ip)
		return true, 0
	}

	if attempt.count >= rl.maxAttempts {
		return false, rl.windowPeriod - now.Sub(attempt.firstAt)
	}

	return true, 0
}

// RecordAttempt records a login outcome. A success clears the IP's history.
func (rl *LoginRateLimiter) RecordAttempt(ip string, success bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if success {
		delete(rl.attempts, ip)
		return
	}

	now := time.Now()
	attempt, exists := rl.attempts[ip]
	if !exists || now.Sub(attempt.firstAt) > rl.windowPeriod {
		rl.attempts[ip] = &loginAttempt{count: 1, firstAt: now}
		return
	}

	attempt.count++
	if attempt.count >= rl.maxAttempts {
		attempt.isLocked = true
		attempt.lockedAt = now
	}
}

// LoginRateLimitMiddleware rejects login attempts from locked IPs
func LoginRateLimitMiddleware(rl *LoginRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ip := c.ClientIP()
		allowed, lockRemaining := rl.Check(ip)
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "too_many_attempts",
				"message": fmt.Sprintf("Too many login attempts. Try again in %s", lockRemaining.Round(time.Second)),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
