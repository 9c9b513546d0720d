package grpc

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"bookstore/pkg/errors"
	"bookstore/pkg/logger"
)

const (
	// TraceIDMetadataKey is the metadata key for trace ID
	TraceIDMetadataKey = "x-trace-id"
)

// NewServer builds a gRPC server with the logging interceptors and a registered
// health service. tlsConfig may be nil for plaintext.
func NewServer(log *logger.Logger, timeout time.Duration, tlsConfig *tls.Config) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(UnaryServerInterceptor(log, timeout)),
		grpc.StreamInterceptor(StreamServerInterceptor(log)),
	}
	if tlsConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// UnaryServerInterceptor creates a server interceptor for logging, tracing, and error handling
func UnaryServerInterceptor(log *logger.Logger, timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		ctx = withTraceID(ctx)

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := handler(ctx, req)

		logFields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}

		if err != nil {
			err = errors.GRPCStatus(err)
			st, _ := status.FromError(err)
			logFields = append(logFields, zap.String("grpc_code", st.Code().String()))
			log.WithContext(ctx).Error("grpc request failed", logFields...)
			return nil, err
		}

		log.WithContext(ctx).Debug("grpc request completed", logFields...)
		return resp, nil
	}
}

// StreamServerInterceptor creates a stream server interceptor
func StreamServerInterceptor(log *logger.Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		wrapped := &tracedStream{ServerStream: ss, ctx: withTraceID(ss.Context())}

		err := handler(srv, wrapped)

		log.WithContext(wrapped.ctx).Info("grpc stream completed",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		if err != nil {
			return errors.GRPCStatus(err)
		}
		return nil
	}
}

// tracedStream exposes a context carrying the trace id to stream handlers.
type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context {
	return s.ctx
}

func withTraceID(ctx context.Context) context.Context {
	traceID := extractTraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return logger.WithTraceIDContext(ctx, traceID)
}

func extractTraceID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	values := md.Get(TraceIDMetadataKey)
	if len(values) > 0 {
		return values[0]
	}
	return ""
}
