package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"appointment-scheduler/internal/metrics"
)

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per client key (IP or gRPC peer).
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	r       rate.Limit
	burst   int
	m       *metrics.Collector
}

// NewRateLimiter returns nil when rps <= 0; a nil limiter allows everything.
// Stale clients are swept every minute until ctx is done.
func NewRateLimiter(ctx context.Context, rps float64, burst int, m *metrics.Collector) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	rl := &RateLimiter{
		clients: make(map[string]*client),
		r:       rate.Limit(rps),
		burst:   burst,
		m:       m,
	}
	go rl.sweep(ctx, time.Minute, 3*time.Minute)
	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.mu.Lock()
			for key, c := range rl.clients {
				if time.Since(c.seen) > idle {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[key]; ok {
		c.seen = time.Now()
		return c.lim
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.clients[key] = &client{lim: l, seen: time.Now()}
	return l
}

func (rl *RateLimiter) Allow(key string, transport string) bool {
	if rl == nil {
		return true
	}
	if rl.get(key).Allow() {
		return true
	}
	if rl.m != nil {
		rl.m.RateLimited.WithLabelValues(transport).Inc()
	}
	return false
}

// RateLimitHTTP limits the routes it is attached to by client IP.
func RateLimitHTTP(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP(), "http") {
			c.String(http.StatusTooManyRequests, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ForwardedForKey is the metadata key a local gRPC-Web bridge uses to pass
// on the browser's address.
const ForwardedForKey = "x-forwarded-for"

// peerKey is the caller's IP. For loopback peers, which are the in-process
// gRPC-Web bridge, the forwarded address is used instead so browser users
// do not share one bucket. Remote peers cannot choose their key.
func peerKey(ctx context.Context) string {
	host := "unknown"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		host = p.Addr.String()
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return host
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(ForwardedForKey); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return host
}

// RateLimit limits the listed gRPC methods per client IP.
func RateLimit(rl *RateLimiter, methods ...string) grpc.UnaryServerInterceptor {
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !limited[info.FullMethod] {
			return next(ctx, req)
		}
		if !rl.Allow(peerKey(ctx), "grpc") {
			return nil, status.Error(codes.ResourceExhausted, "too many requests")
		}
		return next(ctx, req)
	}
}
