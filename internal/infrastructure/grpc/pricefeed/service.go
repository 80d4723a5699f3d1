// Package pricefeed serves the worker's latest price snapshot over gRPC so
// API instances can poll it instead of the public price service.
//
// Messages are plain Go structs carried by a JSON codec, so no generated
// protobuf code is involved. The service descriptor below is the
// hand-written equivalent of what protoc-gen-go-grpc would emit.
package pricefeed

import (
	"context"
	"encoding/json"

	"marketsync-service/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	ServiceName        = "marketsync.pricefeed.v1.PriceFeed"
	simplePricesMethod = "/" + ServiceName + "/SimplePrices"
)

type PricesRequest struct {
	IDs     []string `json:"ids"`
	TraceID string   `json:"trace_id,omitempty"`
}

type PricesResponse struct {
	Prices    map[string]domain.AssetPrice `json:"prices"`
	FetchedAt string                       `json:"fetched_at"`
}

type PriceFeedServer interface {
	SimplePrices(ctx context.Context, req *PricesRequest) (*PricesResponse, error)
}

func RegisterPriceFeedServer(s grpc.ServiceRegistrar, srv PriceFeedServer) {
	s.RegisterService(&serviceDesc, srv)
}

func simplePricesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PricesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PriceFeedServer).SimplePrices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: simplePricesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PriceFeedServer).SimplePrices(ctx, req.(*PricesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PriceFeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SimplePrices", Handler: simplePricesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pricefeed",
}

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() { encoding.RegisterCodec(jsonCodec{}) }
