// This file is kept for discoverability.
// The concrete gRPC interceptors live in the grpcmw sub-package to avoid
// pulling google.golang.org/grpc into projects that only need plain HTTP
// middleware.
//
// Import:
//
//	import "github.com/ratelimitd/decider/middleware/grpcmw"
//
// Usage:
//
//	limiter, _ := decider.NewBuilder().TokenBucket(1000, 50).Redis(redisClient).Build()
//	server := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpcmw.UnaryServerInterceptor(limiter, grpcmw.KeyByPeer)),
//	    grpc.StreamInterceptor(grpcmw.StreamServerInterceptor(limiter, grpcmw.StreamKeyByPeer)),
//	)
//
// Key extractors:
//
//	grpcmw.KeyByPeer              — the connection's peer address
//	grpcmw.KeyByMetadata("key")   — value from incoming request metadata
//
// See package github.com/ratelimitd/decider/middleware/grpcmw for full API.
package middleware
