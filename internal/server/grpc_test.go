package server

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func startGRPC(t *testing.T, store ReportStore) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(store, zaptest.NewLogger(t))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestReportsService(t *testing.T) {
	store := NewRecentReports(10)
	r := newTestReport(t, "2fort")
	require.NoError(t, store.Publish(context.Background(), r))

	conn := startGRPC(t, store)
	ctx := context.Background()

	list := new(structpb.ListValue)
	require.NoError(t, conn.Invoke(ctx, "/"+ReportServiceName+"/ListReports", &emptypb.Empty{}, list))
	require.Len(t, list.GetValues(), 1)
	assert.Equal(t, r.ID.String(), list.GetValues()[0].GetStringValue())

	got := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, "/"+ReportServiceName+"/GetReport", wrapperspb.String(r.ID.String()), got))
	fields := got.GetFields()
	assert.Equal(t, "2fort", fields["map"].GetStringValue())
	assert.Equal(t, "red", fields["winner"].GetStringValue())
	assert.Equal(t, float64(10), fields["scores"].GetStructValue().GetFields()["red"].GetNumberValue())
}

func TestReportsServiceErrors(t *testing.T) {
	conn := startGRPC(t, NewRecentReports(1))
	ctx := context.Background()

	err := conn.Invoke(ctx, "/"+ReportServiceName+"/GetReport", wrapperspb.String("not-a-uuid"), new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = conn.Invoke(ctx, "/"+ReportServiceName+"/GetReport", wrapperspb.String(uuid.NewString()), new(structpb.Struct))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthService(t *testing.T) {
	conn := startGRPC(t, NewRecentReports(1))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ReportServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Panic"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var calls []string
	record := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			calls = append(calls, name)
			return handler(ctx, req)
		}
	}

	chain := ChainUnaryInterceptors(record("outer"), record("inner"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{}, func(_ context.Context, req any) (any, error) {
		calls = append(calls, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
}
