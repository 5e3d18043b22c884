package handlers

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "crm.v1.CRMService"

// Full method names, as seen by interceptors.
const (
	MethodSearchAll               = "/" + ServiceName + "/SearchAll"
	MethodSearchFiles             = "/" + ServiceName + "/SearchFiles"
	MethodGetProcessFlowHistory   = "/" + ServiceName + "/GetProcessFlowHistory"
	MethodUpdateProcessFlowStatus = "/" + ServiceName + "/UpdateProcessFlowStatus"
)

// CRMServiceServer is the gRPC surface of the CRM. Requests and responses are
// JSON-shaped structs so no generated stubs are needed.
type CRMServiceServer interface {
	SearchAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchFiles(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProcessFlowHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProcessFlowStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(CRMServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call structCall) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CRMServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CRMServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CRMServiceDesc describes CRMServiceServer to grpc.Server.
var CRMServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CRMServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("SearchAll", CRMServiceServer.SearchAll),
		unaryMethod("SearchFiles", CRMServiceServer.SearchFiles),
		unaryMethod("GetProcessFlowHistory", CRMServiceServer.GetProcessFlowHistory),
		unaryMethod("UpdateProcessFlowStatus", CRMServiceServer.UpdateProcessFlowStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "crm/v1/crm.proto",
}

// RegisterCRMServiceServer registers srv on s.
func RegisterCRMServiceServer(s grpc.ServiceRegistrar, srv CRMServiceServer) {
	s.RegisterService(&CRMServiceDesc, srv)
}

// CRMServiceClient calls a remote CRMService.
type CRMServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCRMServiceClient(cc grpc.ClientConnInterface) *CRMServiceClient {
	return &CRMServiceClient{cc: cc}
}

func (c *CRMServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CRMServiceClient) SearchAll(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSearchAll, in, opts...)
}

func (c *CRMServiceClient) SearchFiles(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSearchFiles, in, opts...)
}

func (c *CRMServiceClient) GetProcessFlowHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetProcessFlowHistory, in, opts...)
}

func (c *CRMServiceClient) UpdateProcessFlowStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdateProcessFlowStatus, in, opts...)
}
