package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the analytics service. Requests
// and responses are google.protobuf.Struct messages.
const ServiceName = "towergen.v1.TowerAnalytics"

const (
	MethodGetTower           = "GetTower"
	MethodGetTierSummaries   = "GetTierSummaries"
	MethodGetWorstTowers     = "GetWorstTowers"
	MethodGetSentimentByTier = "GetSentimentByTier"
	MethodGetTowerTickets    = "GetTowerTickets"
)

// TowerAnalyticsServer is the server API for the analytics service.
type TowerAnalyticsServer interface {
	GetTower(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTierSummaries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWorstTowers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSentimentByTier(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTowerTickets(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(TowerAnalyticsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TowerAnalyticsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TowerAnalyticsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the analytics service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TowerAnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGetTower, Handler: unaryHandler(MethodGetTower, TowerAnalyticsServer.GetTower)},
		{MethodName: MethodGetTierSummaries, Handler: unaryHandler(MethodGetTierSummaries, TowerAnalyticsServer.GetTierSummaries)},
		{MethodName: MethodGetWorstTowers, Handler: unaryHandler(MethodGetWorstTowers, TowerAnalyticsServer.GetWorstTowers)},
		{MethodName: MethodGetSentimentByTier, Handler: unaryHandler(MethodGetSentimentByTier, TowerAnalyticsServer.GetSentimentByTier)},
		{MethodName: MethodGetTowerTickets, Handler: unaryHandler(MethodGetTowerTickets, TowerAnalyticsServer.GetTowerTickets)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "",
}

func RegisterTowerAnalyticsServer(s grpc.ServiceRegistrar, srv TowerAnalyticsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the analytics service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with a request built from fields.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
