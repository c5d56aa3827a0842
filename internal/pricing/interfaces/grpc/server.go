// Package grpc 暴露 pricing.v1.PathPricingService，请求与响应均为 google.protobuf.Struct
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wyfcoding/pathpricing/internal/pricing/application"
	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
)

const (
	ServiceName       = "pricing.v1.PathPricingService"
	PriceOptionMethod = "/" + ServiceName + "/PriceOption"
	GetRunMethod      = "/" + ServiceName + "/GetRun"
)

// PathPricingServer 服务端接口
type PathPricingServer interface {
	PriceOption(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// PathPricingServiceDesc 服务描述，消息体使用 structpb 因而无需生成代码
var PathPricingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PathPricingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PriceOption", Handler: priceOptionHandler},
		{MethodName: "GetRun", Handler: getRunHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pricing/v1/path_pricing.proto",
}

// RegisterPathPricingServer 注册服务
func RegisterPathPricingServer(s grpc.ServiceRegistrar, srv PathPricingServer) {
	s.RegisterService(&PathPricingServiceDesc, srv)
}

func priceOptionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PathPricingServer).PriceOption(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PriceOptionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PathPricingServer).PriceOption(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PathPricingServer).GetRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetRunMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PathPricingServer).GetRun(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// PathPricingClient 客户端
type PathPricingClient struct {
	cc grpc.ClientConnInterface
}

// NewPathPricingClient 创建客户端
func NewPathPricingClient(cc grpc.ClientConnInterface) *PathPricingClient {
	return &PathPricingClient{cc: cc}
}

func (c *PathPricingClient) PriceOption(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PriceOptionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PathPricingClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetRunMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Server PathPricingService 实现
type Server struct {
	app *application.PricingService
}

// NewServer 创建服务并注册到 gRPC server
func NewServer(s *grpc.Server, app *application.PricingService) *Server {
	srv := &Server{app: app}
	RegisterPathPricingServer(s, srv)
	return srv
}

// PriceOption 请求字段与 HTTP 定价接口相同
func (s *Server) PriceOption(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body application.PriceOptionRequest
	if err := decodeStruct(req, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if body.Symbol == "" || body.OptionType == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol and option_type are required")
	}

	run, err := s.app.PriceOption(ctx, body.ToCommand())
	if err != nil {
		st := status.New(CodeFor(err), err.Error())
		if run != nil {
			if detailed, derr := st.WithDetails(mustStruct(map[string]any{
				"run_id": run.ID,
				"stage":  string(run.FailureStage),
			})); derr == nil {
				st = detailed
			}
		}
		return nil, st.Err()
	}
	return encodeStruct(run)
}

// GetRun 请求 {"id": "..."}
func (s *Server) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	run, err := s.app.GetRun(ctx, id)
	if err != nil {
		return nil, status.Error(CodeFor(err), err.Error())
	}
	return encodeStruct(run)
}

// CodeFor 将失败阶段映射为 gRPC 状态码
func CodeFor(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrSetup):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrNumeric):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

func decodeStruct(in *structpb.Struct, dest any) error {
	data, err := in.MarshalJSON()
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// encodeStruct 经 JSON 转为 Struct；数值统一为 double
func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func mustStruct(m map[string]any) *structpb.Struct {
	st, err := structpb.NewStruct(m)
	if err != nil {
		panic(err)
	}
	return st
}
