package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

// RateLimit applies a per-IP token bucket to the endpoints that take
// passwords. The limiter map is concurrent; stale entries are cheap enough
// to just leave until process restart.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute < 1 {
		perMinute = 1
	}
	limiters := xsync.NewMapOf[string, *rate.Limiter]()
	every := rate.Every(time.Minute / time.Duration(perMinute))
	burst := max(perMinute/2, 1)

	return func(ctx *gin.Context) {
		ip := ctx.ClientIP()
		limiter, _ := limiters.LoadOrCompute(ip, func() *rate.Limiter {
			return rate.NewLimiter(every, burst)
		})
		if !limiter.Allow() {
			Error(ctx, http.StatusTooManyRequests, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
