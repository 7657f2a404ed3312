package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig tunes the login throttle.
type RateLimitConfig struct {
	MaxAttempts     int           // failures allowed inside the window before lockout
	WindowDuration  time.Duration // sliding window over which failures accumulate
	LockoutDuration time.Duration // how long a locked key stays locked
	CleanupInterval time.Duration // sweep period for stale records
}

// DefaultRateLimitConfig returns the throttle settings used when a field
// is left zero: 5 failures per 15 minutes, 30 minute lockout.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// loginKey identifies one credential source. Failures are counted per IP and
// username pair so a guessing client cannot lock out the whole instance.
type loginKey struct {
	ip       string
	username string
}

// loginRecord is the failure history for one key.
type loginRecord struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
}

// lockoutRemaining reports how much of an active lockout is left, zero when
// the key is not locked.
func (r *loginRecord) lockoutRemaining(now time.Time) time.Duration {
	if r.lockedUntil.IsZero() || !now.Before(r.lockedUntil) {
		return 0
	}
	return r.lockedUntil.Sub(now)
}

// stale reports whether the counting window has passed.
func (r *loginRecord) stale(now time.Time, window time.Duration) bool {
	return now.Sub(r.windowStart) > window
}

// RateLimiter throttles login attempts. Each IP and username pair gets a
// failure budget inside a sliding window; exhausting it locks the pair out
// for LockoutDuration. A successful login clears the pair.
type RateLimiter struct {
	mu      sync.RWMutex
	records map[loginKey]*loginRecord

	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	sweepEvery  time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter builds a limiter from cfg, filling zero fields from
// DefaultRateLimitConfig, and starts the background sweep.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = def.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &RateLimiter{
		records:     make(map[loginKey]*loginRecord),
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.WindowDuration,
		lockout:     cfg.LockoutDuration,
		sweepEvery:  cfg.CleanupInterval,
		stop:        make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the background sweep. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow reports whether a login attempt for the given IP and username may
// proceed. When it may not, the returned duration says how long to wait.
func (rl *RateLimiter) Allow(ip, username string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.RLock()
	rec, ok := rl.records[loginKey{ip, username}]
	rl.mu.RUnlock()

	if !ok {
		return true, 0
	}
	if left := rec.lockoutRemaining(now); left > 0 {
		return false, left
	}
	if rec.stale(now, rl.window) {
		return true, 0
	}
	if rec.failures < rl.maxAttempts {
		return true, 0
	}
	return false, rl.lockout
}

// RecordFailure counts one failed attempt. It returns true with the lockout
// duration when this failure exhausts the budget.
func (rl *RateLimiter) RecordFailure(ip, username string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := loginKey{ip, username}
	rec, ok := rl.records[key]
	if !ok {
		rec = &loginRecord{windowStart: now}
		rl.records[key] = rec
	} else if rec.stale(now, rl.window) {
		*rec = loginRecord{windowStart: now}
	}

	rec.failures++
	if rec.failures >= rl.maxAttempts {
		rec.lockedUntil = now.Add(rl.lockout)
		return true, rl.lockout
	}
	return false, 0
}

// RecordSuccess forgets the failure history for a key after a good login.
func (rl *RateLimiter) RecordSuccess(ip, username string) {
	rl.mu.Lock()
	delete(rl.records, loginKey{ip, username})
	rl.mu.Unlock()
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// retryAfterSeconds formats a wait duration for the Retry-After header,
// rounding up to at least one whole second.
func retryAfterSeconds(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// sweep drops records whose window and lockout have both passed.
func (rl *RateLimiter) sweep() {
	now := time.Now()
	horizon := rl.window + rl.lockout

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, rec := range rl.records {
		if rec.stale(now, horizon) && rec.lockoutRemaining(now) == 0 {
			delete(rl.records, key)
		}
	}
}

// RateLimitMiddleware rejects form logins from locked-out keys before the
// handler runs. Apply it to the login route only; it inspects POST bodies
// for the username field and lets everything else through.
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		username := c.PostForm("username")
		if username == "" {
			c.Next()
			return
		}

		if allowed, retryAfter := rl.Allow(c.ClientIP(), username); !allowed {
			c.Header("Retry-After", retryAfterSeconds(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts",
				"retry_after": retryAfter.Round(time.Second).String(),
			})
			return
		}
		c.Next()
	}
}
