package pricefeed

import (
	"context"
	"fmt"
	"time"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/logx"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is an application.PriceSource backed by a worker's price feed.
type Client struct {
	conn    *grpc.ClientConn
	Timeout time.Duration
}

var _ application.PriceSource = (*Client)(nil)

func New(target string, opts ...grpc.DialOption) (*Client, func(), error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, err
	}
	return &Client{conn: conn}, func() { _ = conn.Close() }, nil
}

func (c *Client) SimplePrices(ctx context.Context, ids []string) (map[string]domain.AssetPrice, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req := &PricesRequest{IDs: ids, TraceID: logx.TraceID(ctx)}
	out := new(PricesResponse)
	if err := c.conn.Invoke(ctx, simplePricesMethod, req, out); err != nil {
		return nil, fmt.Errorf("price feed: %w", err)
	}
	return out.Prices, nil
}
