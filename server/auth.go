package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	// ContextUserIDKey is where the authenticated user id lands in the gin
	// context.
	ContextUserIDKey = "user_id"
	// ContextTokenKey stores the raw bearer token for logout revocation.
	ContextTokenKey = "session_token"
)

// revoked holds logged-out tokens until they would have expired anyway.
type revoked struct {
	tokens *xsync.MapOf[string, time.Time]
}

func newRevoked() *revoked {
	return &revoked{tokens: xsync.NewMapOf[string, time.Time]()}
}

func (r *revoked) add(token string, until time.Time) {
	r.tokens.Store(token, until)
}

func (r *revoked) has(token string) bool {
	until, ok := r.tokens.Load(token)
	if !ok {
		return false
	}
	if time.Now().After(until) {
		r.tokens.Delete(token)
		return false
	}
	return true
}

// AuthOptional picks up the user id when a valid token is present but lets
// anonymous requests through; view handlers use it for "is this mine".
func (h *Handlers) AuthOptional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token := strings.TrimSpace(parts[1])
			if !h.revoked.has(token) {
				if claims, err := ParseToken(h.cfg.JWTSecret, token); err == nil {
					ctx.Set(ContextUserIDKey, claims.UserID)
					ctx.Set(ContextTokenKey, token)
				}
			}
		}
		ctx.Next()
	}
}

// AuthRequired rejects requests without a valid, unrevoked bearer token.
func (h *Handlers) AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			Error(ctx, http.StatusUnauthorized, "missing bearer token")
			ctx.Abort()
			return
		}
		token := strings.TrimSpace(parts[1])
		if h.revoked.has(token) {
			Error(ctx, http.StatusUnauthorized, "session revoked")
			ctx.Abort()
			return
		}
		claims, err := ParseToken(h.cfg.JWTSecret, token)
		if err != nil {
			Error(ctx, http.StatusUnauthorized, "invalid session")
			ctx.Abort()
			return
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}
