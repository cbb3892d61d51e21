package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"bandtest/internal/trace"
)

// The Backtest service carries requests and responses as
// google.protobuf.Struct holding the same JSON documents as the HTTP API,
// so it needs no generated code.
const (
	backtestServiceName = "bandtest.v1.Backtest"
	backtestRunMethod   = "/" + backtestServiceName + "/Run"
)

// BacktestService is the server API for the Backtest service.
type BacktestService interface {
	Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// BacktestServiceDesc describes the Backtest service for grpc.Server.
var BacktestServiceDesc = grpc.ServiceDesc{
	ServiceName: backtestServiceName,
	HandlerType: (*BacktestService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Run",
			Handler:    backtestRunHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bandtest/v1/backtest.proto",
}

func backtestRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestService).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: backtestRunMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestService).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer implements BacktestService on top of Handlers.
type GRPCServer struct {
	h *Handlers
}

// NewGRPCServer creates the gRPC adapter for h.
func NewGRPCServer(h *Handlers) *GRPCServer {
	return &GRPCServer{h: h}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *GRPCServer) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&BacktestServiceDesc, s)
}

// Run decodes a RunRequest from in, runs it and encodes the RunResponse.
func (s *GRPCServer) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := trace.StartSpan(ctx, "grpc.backtest")
	defer span.End()

	var req RunRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}

	resp, err := s.h.Run(ctx, req)
	if err != nil {
		code := grpcCode(err)
		if code == codes.Internal {
			s.h.log.Error("grpc backtest failed", "error", err)
			return nil, status.Error(code, "backtest failed")
		}
		return nil, status.Error(code, err.Error())
	}

	out, err := toStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// BacktestClient calls the Backtest service.
type BacktestClient struct {
	cc grpc.ClientConnInterface
}

// NewBacktestClient creates a client over an established connection.
func NewBacktestClient(cc grpc.ClientConnInterface) *BacktestClient {
	return &BacktestClient{cc: cc}
}

// Run sends req and decodes the response.
func (c *BacktestClient) Run(ctx context.Context, req RunRequest, opts ...grpc.CallOption) (*RunResponse, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, backtestRunMethod, in, out, opts...); err != nil {
		return nil, err
	}

	var resp RunResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON encoding.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
