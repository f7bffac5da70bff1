package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor 記錄每個 unary 呼叫的方法、耗時與 status code
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"elapsed", time.Since(start),
		}
		if err != nil {
			logger.WarnContext(ctx, "rpc failed", append(attrs, "error", err)...)
			return resp, err
		}
		logger.DebugContext(ctx, "rpc served", attrs...)
		return resp, nil
	}
}
