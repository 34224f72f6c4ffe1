package server

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ReportServiceName is the fully qualified gRPC service name.
const ReportServiceName = "ctfround.v1.Reports"

// ErrReportNotFound is returned by stores for unknown report IDs.
var ErrReportNotFound = errors.New("report not found")

// ReportsServer serves stored round reports. Messages are protobuf well-known
// types, so the service needs no generated code.
type ReportsServer interface {
	GetReport(ctx context.Context, id *wrapperspb.StringValue) (*structpb.Struct, error)
	ListReports(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error)
}

// ReportsServiceDesc describes the Reports service for grpc.ServiceRegistrar.
var ReportsServiceDesc = grpc.ServiceDesc{
	ServiceName: ReportServiceName,
	HandlerType: (*ReportsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetReport", Handler: getReportHandler},
		{MethodName: "ListReports", Handler: listReportsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ctfround/v1/reports.proto",
}

func getReportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReportsServer).GetReport(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ReportServiceName + "/GetReport",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReportsServer).GetReport(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listReportsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReportsServer).ListReports(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ReportServiceName + "/ListReports",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReportsServer).ListReports(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// reportsServer implements ReportsServer on top of a ReportStore.
type reportsServer struct {
	store  ReportStore
	logger *zap.Logger
}

// NewReportsServer creates the Reports service implementation.
func NewReportsServer(store ReportStore, logger *zap.Logger) ReportsServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reportsServer{store: store, logger: logger}
}

// GetReport returns one report as a Struct.
func (s *reportsServer) GetReport(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := uuid.Parse(req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid report id %q", req.GetValue())
	}

	r, err := s.store.Load(id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, status.Errorf(codes.NotFound, "report %s not found", id)
		}
		s.logger.Error("failed to load report",
			zap.String("report_id", id.String()),
			zap.String("client", extractHostFromContext(ctx)),
			zap.Error(err),
		)
		return nil, status.Error(codes.Internal, "failed to load report")
	}

	st, err := r.ToStruct()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode report: %v", err)
	}
	return st, nil
}

// ListReports returns the IDs of every stored report.
func (s *reportsServer) ListReports(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	ids, err := s.store.List()
	if err != nil {
		s.logger.Error("failed to list reports", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to list reports")
	}

	values := make([]*structpb.Value, 0, len(ids))
	for _, id := range ids {
		values = append(values, structpb.NewStringValue(id.String()))
	}
	return &structpb.ListValue{Values: values}, nil
}

// NewGRPCServer builds the gRPC server with the Reports service and the standard
// health service registered.
func NewGRPCServer(store ReportStore, logger *zap.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
	)

	srv.RegisterService(&ReportsServiceDesc, NewReportsServer(store, logger))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(ReportServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	return srv, healthSrv
}
