package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"bookstore/pkg/errors"
	"bookstore/pkg/logger"
)

func TestUnaryServerInterceptor_PropagatesTraceID(t *testing.T) {
	// Arrange
	interceptor := UnaryServerInterceptor(logger.NewNop(), 0)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(TraceIDMetadataKey, "trace-abc"))
	var seen string

	// Act
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/test/Method"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			seen = logger.GetTraceID(ctx)
			return "ok", nil
		})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "trace-abc", seen)
}

func TestUnaryServerInterceptor_GeneratesTraceID(t *testing.T) {
	interceptor := UnaryServerInterceptor(logger.NewNop(), 0)
	var seen string

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/test/Method"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			seen = logger.GetTraceID(ctx)
			return nil, nil
		})

	require.NoError(t, err)
	assert.NotEmpty(t, seen)
}

func TestUnaryServerInterceptor_MapsAppErrors(t *testing.T) {
	interceptor := UnaryServerInterceptor(logger.NewNop(), 0)

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/test/Method"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, errors.NewNotFound("order", "abc")
		})

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
}

func TestNewServer_RegistersHealth(t *testing.T) {
	// Arrange
	srv, hs := NewServer(logger.NewNop(), 0, nil)
	defer srv.Stop()

	// Act
	hs.SetServingStatus("bookstore", healthpb.HealthCheckResponse_SERVING)
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "bookstore"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
	_, registered := srv.GetServiceInfo()[healthpb.Health_ServiceDesc.ServiceName]
	assert.True(t, registered)
}
