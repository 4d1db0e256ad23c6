package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "storefront.cart.v1.CartService"

type CartServiceServer interface {
	AddToCart(ctx context.Context, req *AddToCartRequest) (*CartItemResponse, error)
	UpdateQuantity(ctx context.Context, req *UpdateQuantityRequest) (*CartItemResponse, error)
	RemoveFromCart(ctx context.Context, req *RemoveFromCartRequest) (*RemoveFromCartResponse, error)
	ClearCart(ctx context.Context, req *ClearCartRequest) (*ClearCartResponse, error)
	GetCart(ctx context.Context, req *GetCartRequest) (*GetCartResponse, error)
	GetStock(ctx context.Context, req *GetStockRequest) (*GetStockResponse, error)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(CartServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CartServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CartServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var CartServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddToCart", CartServiceServer.AddToCart),
		unary("UpdateQuantity", CartServiceServer.UpdateQuantity),
		unary("RemoveFromCart", CartServiceServer.RemoveFromCart),
		unary("ClearCart", CartServiceServer.ClearCart),
		unary("GetCart", CartServiceServer.GetCart),
		unary("GetStock", CartServiceServer.GetStock),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterCartServiceServer(s grpc.ServiceRegistrar, srv CartServiceServer) {
	s.RegisterService(&CartServiceDesc, srv)
}

type CartServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCartServiceClient(cc grpc.ClientConnInterface) *CartServiceClient {
	return &CartServiceClient{cc: cc}
}

func (c *CartServiceClient) invoke(ctx context.Context, name string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(name), in, out, opts...)
}

func (c *CartServiceClient) AddToCart(ctx context.Context, in *AddToCartRequest, opts ...grpc.CallOption) (*CartItemResponse, error) {
	out := new(CartItemResponse)
	if err := c.invoke(ctx, "AddToCart", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) UpdateQuantity(ctx context.Context, in *UpdateQuantityRequest, opts ...grpc.CallOption) (*CartItemResponse, error) {
	out := new(CartItemResponse)
	if err := c.invoke(ctx, "UpdateQuantity", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) RemoveFromCart(ctx context.Context, in *RemoveFromCartRequest, opts ...grpc.CallOption) (*RemoveFromCartResponse, error) {
	out := new(RemoveFromCartResponse)
	if err := c.invoke(ctx, "RemoveFromCart", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) ClearCart(ctx context.Context, in *ClearCartRequest, opts ...grpc.CallOption) (*ClearCartResponse, error) {
	out := new(ClearCartResponse)
	if err := c.invoke(ctx, "ClearCart", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*GetCartResponse, error) {
	out := new(GetCartResponse)
	if err := c.invoke(ctx, "GetCart", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartServiceClient) GetStock(ctx context.Context, in *GetStockRequest, opts ...grpc.CallOption) (*GetStockResponse, error) {
	out := new(GetStockResponse)
	if err := c.invoke(ctx, "GetStock", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
