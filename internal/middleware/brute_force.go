package middleware

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	lockoutMaxAttempts = 5
	lockoutWindow      = 15 * time.Minute
	lockoutDuration    = 5 * time.Minute
	lockoutSweep       = time.Minute
	lockoutMaxRecords  = 10000
)

type failures struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

func (f *failures) locked(now time.Time) bool {
	return !f.lockedAt.IsZero() && now.Sub(f.lockedAt) < lockoutDuration
}

func (f *failures) stale(now time.Time) bool {
	if !f.lockedAt.IsZero() {
		return now.Sub(f.lockedAt) >= lockoutDuration
	}
	return now.Sub(f.firstFail) >= lockoutWindow
}

// AuthGuard locks out API keys after repeated failed authentications.
// Keys are tracked by hash. A nil *AuthGuard is a no-op.
type AuthGuard struct {
	mu      sync.Mutex
	records map[string]*failures
	log     *logrus.Logger
}

// NewAuthGuard creates a guard whose sweeper stops when ctx is cancelled.
func NewAuthGuard(ctx context.Context, log *logrus.Logger) *AuthGuard {
	g := &AuthGuard{
		records: make(map[string]*failures),
		log:     log,
	}
	go g.sweepLoop(ctx)
	return g
}

// IsBlocked reports whether apiKey is currently locked out.
func (g *AuthGuard) IsBlocked(apiKey string) bool {
	if g == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[hashKey(apiKey)]
	return ok && rec.locked(time.Now())
}

// RecordFailure counts one failed authentication for apiKey.
func (g *AuthGuard) RecordFailure(apiKey string) {
	if g == nil {
		return
	}

	kh := hashKey(apiKey)
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[kh]
	if !ok || now.Sub(rec.firstFail) > lockoutWindow {
		g.records[kh] = &failures{attempts: 1, firstFail: now}
		return
	}

	rec.attempts++
	if rec.attempts >= lockoutMaxAttempts && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithField("key_hash", kh[:16]+"...").Warn("api key locked out after repeated auth failures")
	}
}

// Reset clears tracking for apiKey after a successful authentication.
func (g *AuthGuard) Reset(apiKey string) {
	if g == nil {
		return
	}

	g.mu.Lock()
	delete(g.records, hashKey(apiKey))
	g.mu.Unlock()
}

func (g *AuthGuard) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(lockoutSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.sweep(now)
		}
	}
}

func (g *AuthGuard) sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for k, rec := range g.records {
		if rec.stale(now) {
			delete(g.records, k)
		}
	}

	if excess := len(g.records) - lockoutMaxRecords; excess > 0 {
		keys := make([]string, 0, len(g.records))
		for k := range g.records {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(a, b string) int {
			return g.records[a].firstFail.Compare(g.records[b].firstFail)
		})
		for _, k := range keys[:excess] {
			delete(g.records, k)
		}
	}
}

// Lockout rejects requests whose bearer key is locked out.
func Lockout(guard *AuthGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := ExtractBearerToken(c); key != "" && guard.IsBlocked(key) {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
			return
		}

		c.Next()
	}
}
