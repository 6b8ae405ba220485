package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// userLimiter keeps one token bucket per authenticated user.
type userLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[int64]*rate.Limiter
}

// newUserLimiter allows perMinute events per user with a burst of the same
// size. A non-positive limit disables limiting.
func newUserLimiter(perMinute int) *userLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &userLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[int64]*rate.Limiter),
	}
}

func (l *userLimiter) allow(userID int64) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RateLimit rejects requests of users over their budget with 429.
func RateLimit(l *userLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _, ok := currentUser(c)
		if ok && !l.allow(uid) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// newConnLimiter bounds websocket commands per connection.
func newConnLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(10), 20)
}
