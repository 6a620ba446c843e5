package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func TestPoolReusesConnectionAndRunsInterceptors(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	var seenIDs []string
	s := grpc.NewServer(grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		seenIDs = append(seenIDs, md.Get(RequestIDKey)...)
		return handler(ctx, req)
	}))
	healthpb.RegisterHealthServer(s, health.NewServer())
	go func() {
		_ = s.Serve(lis)
	}()
	defer s.Stop()

	core, logs := observer.New(zapcore.DebugLevel)
	pool := NewPool(
		WithInterceptor(RequestIDInterceptor()),
		WithInterceptor(LoggingInterceptor(zap.New(core))),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	defer pool.Close()

	conn, err := pool.Get("passthrough:///bufnet")
	require.NoError(t, err)
	again, err := pool.Get("passthrough:///bufnet")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	require.Len(t, seenIDs, 1)
	assert.NotEmpty(t, seenIDs[0])
	entries := logs.FilterMessage("grpc call").All()
	require.Len(t, entries, 1)
	assert.Equal(t, seenIDs[0], entries[0].ContextMap()["request_id"])

	require.NoError(t, pool.Close())
	fresh, err := pool.Get("passthrough:///bufnet")
	require.NoError(t, err)
	assert.NotSame(t, conn, fresh)
}
