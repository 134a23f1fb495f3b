// This file is kept for discoverability.
// The concrete Gin middleware implementation lives in the ginmw sub-package
// to avoid pulling github.com/gin-gonic/gin into projects that only need
// plain HTTP middleware.
//
// Import:
//
//	import "github.com/ratelimitd/decider/middleware/ginmw"
//
// Usage:
//
//	limiter, _ := decider.NewBuilder().TokenBucket(1000, 50).Redis(redisClient).Build()
//	r := gin.Default()
//	r.Use(ginmw.RateLimit(limiter, ginmw.KeyByClientIP))
//
// Key extractors:
//
//	ginmw.KeyByClientIP            — Gin's ClientIP() with trusted proxy support
//	ginmw.KeyByHeader("X-API-Key") — value from request header
//	ginmw.KeyByParam("id")         — value from URL parameter
//	ginmw.KeyByPathAndIP           — path + client IP for per-endpoint limits
//
// Full config:
//
//	ginmw.RateLimitWithConfig(ginmw.Config{
//	    Limiter:      limiter,
//	    KeyFunc:      ginmw.KeyByClientIP,
//	    ExcludePaths: map[string]bool{"/v1/health": true},
//	    DeniedHandler: customHandler,
//	})
//
// See package github.com/ratelimitd/decider/middleware/ginmw for full API.
package middleware
