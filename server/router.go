package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter wires routes and middlewares around the handlers.
func SetupRouter(h *Handlers) *gin.Engine {
	switch strings.ToLower(h.cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(h.cfg.AllowedOrigins) == 1 && h.cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = h.cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	limited := RateLimit(h.cfg.RateLimitPerMinute)

	r.POST("/signup", limited, h.signup)
	r.POST("/login", limited, h.login)
	r.POST("/password/forgot", limited, h.forgotPassword)
	r.POST("/password/reset", limited, h.resetPassword)

	r.GET("/feed", h.globalFeed)
	r.GET("/user/:uid/posts", h.userTimeline)
	r.GET("/post/:pid", h.AuthOptional(), h.getPost)
	r.GET("/search", h.findPosts)

	auth := r.Group("", h.AuthRequired())
	auth.GET("/logout", h.logout)
	auth.GET("/dashboard", h.dashboard)
	auth.POST("/post", h.createPost)
	auth.POST("/post/edit", h.updatePost)
	auth.POST("/post/delete", h.deletePost)
	auth.POST("/post/:pid/share", h.sharePost)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
