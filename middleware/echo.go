// This file is kept for discoverability.
// The concrete Echo middleware implementation lives in the echomw
// sub-package to avoid pulling github.com/labstack/echo into projects that
// only need plain HTTP middleware.
//
// Import:
//
//	import "github.com/ratelimitd/decider/middleware/echomw"
//
// Usage:
//
//	limiter, _ := decider.NewBuilder().TokenBucket(1000, 50).Redis(redisClient).Build()
//	e := echo.New()
//	e.Use(echomw.RateLimit(limiter, echomw.KeyByRealIP))
//
// Key extractors:
//
//	echomw.KeyByRealIP             — Echo's RealIP() with proxy support
//	echomw.KeyByHeader("X-API-Key") — value from request header
//	echomw.KeyByParam("id")        — value from path parameter
//	echomw.KeyByPathAndIP          — path + real IP for per-endpoint limits
//
// Full config:
//
//	echomw.RateLimitWithConfig(echomw.Config{
//	    Limiter:      limiter,
//	    KeyFunc:      echomw.KeyByRealIP,
//	    ExcludePaths: map[string]bool{"/v1/health": true},
//	    DeniedHandler: customHandler,
//	})
//
// See package github.com/ratelimitd/decider/middleware/echomw for full API.
package middleware
