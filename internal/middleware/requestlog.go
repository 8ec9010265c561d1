package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"appointment-scheduler/internal/metrics"
)

const RequestIDHeader = "X-Request-ID"

// RequestLog tags each request with an id, logs it when done and records
// the HTTP metrics. m may be nil.
func RequestLog(log *zap.Logger, m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := c.Writer.Status()
		elapsed := time.Since(start)

		if m != nil {
			m.RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(code)).Inc()
			m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())
		}

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", code),
			zap.Duration("duration", elapsed),
			zap.String("client_ip", c.ClientIP()),
		}
		if code >= 500 {
			log.Error("request failed", fields...)
		} else {
			log.Info("request", fields...)
		}
	}
}

// Logging is the gRPC counterpart of RequestLog.
func Logging(log *zap.Logger, m *metrics.Collector) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)
		if m != nil {
			m.GRPCRequests.WithLabelValues(info.FullMethod, code.String()).Inc()
		}
		log.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}
