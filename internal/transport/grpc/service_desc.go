package grpctransport

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "fulfillment.v1.FulfillmentService"

const (
	fulfillOrderMethod = "/" + ServiceName + "/FulfillOrder"
	getOrderMethod     = "/" + ServiceName + "/GetOrder"
	reconcileMethod    = "/" + ServiceName + "/Reconcile"
)

// FulfillOrderResponse is returned by FulfillOrder.
type FulfillOrderResponse struct {
	OrderID string     `json:"orderId"`
	Order   order.View `json:"order"`
}

// GetOrderRequest selects one order.
type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

// ReconcileRequest selects one product.
type ReconcileRequest struct {
	ProductID string `json:"productId"`
}

// FulfillmentServiceServer is the server API for the fulfillment service.
type FulfillmentServiceServer interface {
	FulfillOrder(ctx context.Context, req *fulfillment.Request) (*FulfillOrderResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*order.View, error)
	Reconcile(ctx context.Context, req *ReconcileRequest) (*product.Reconciliation, error)
}

// unary adapts one FulfillmentServiceServer method to a grpc.MethodHandler.
// Interceptors see the *structpb.Struct request as it arrived on the wire.
func unary[Req, Resp any](
	fullMethod string,
	call func(FulfillmentServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed := new(Req)
			if err := fromMessage(req.(*structpb.Struct), typed); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}

			resp, err := call(srv.(FulfillmentServiceServer), ctx, typed)
			if err != nil {
				return nil, err
			}

			out, err := toMessage(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}

			return out, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}

		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
	}
}

// FulfillmentServiceDesc describes the service for grpc.Server.RegisterService.
var FulfillmentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FulfillmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FulfillOrder", Handler: unary(fulfillOrderMethod, FulfillmentServiceServer.FulfillOrder)},
		{MethodName: "GetOrder", Handler: unary(getOrderMethod, FulfillmentServiceServer.GetOrder)},
		{MethodName: "Reconcile", Handler: unary(reconcileMethod, FulfillmentServiceServer.Reconcile)},
	},
	Streams: []grpc.StreamDesc{},
}

// Client calls the fulfillment service and converts the Struct messages back
// into domain types.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	method string,
	in any,
	opts []grpc.CallOption,
) (*Resp, error) {
	msg, err := toMessage(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, msg, out, opts...); err != nil {
		return nil, err
	}

	resp := new(Resp)
	if err := fromMessage(out, resp); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return resp, nil
}

// FulfillOrder fulfills one order.
func (c *Client) FulfillOrder(
	ctx context.Context,
	in *fulfillment.Request,
	opts ...grpc.CallOption,
) (*FulfillOrderResponse, error) {
	return invoke[FulfillOrderResponse](ctx, c.cc, fulfillOrderMethod, in, opts)
}

// GetOrder reads one order.
func (c *Client) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*order.View, error) {
	return invoke[order.View](ctx, c.cc, getOrderMethod, in, opts)
}

// Reconcile checks one product's ledger.
func (c *Client) Reconcile(
	ctx context.Context,
	in *ReconcileRequest,
	opts ...grpc.CallOption,
) (*product.Reconciliation, error) {
	return invoke[product.Reconciliation](ctx, c.cc, reconcileMethod, in, opts)
}
