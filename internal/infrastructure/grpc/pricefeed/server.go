package pricefeed

import (
	"context"
	"net"
	"time"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// StateSource is the part of the price poller the server reads from.
type StateSource interface {
	State() application.PollerState
}

type Server struct {
	Source StateSource
	Log    *zap.Logger
}

func NewServer(src StateSource, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Source: src, Log: log}
}

// SimplePrices answers from the current snapshot. Ids missing from the
// snapshot are omitted, matching the public price service.
func (s *Server) SimplePrices(_ context.Context, req *PricesRequest) (*PricesResponse, error) {
	log := s.Log.With(zap.String("trace_id", req.TraceID))
	if len(req.IDs) == 0 {
		log.Warn("grpc_prices.no_ids")
		return nil, status.Error(codes.InvalidArgument, "ids are required")
	}
	st := s.Source.State()
	if st.Snapshot.IsZero() {
		log.Warn("grpc_prices.no_snapshot", zap.NamedError("last_error", st.LastError))
		return nil, status.Error(codes.Unavailable, "no price snapshot yet")
	}
	out := &PricesResponse{
		Prices:    make(map[string]domain.AssetPrice, len(req.IDs)),
		FetchedAt: st.LastUpdatedAt.Format(time.RFC3339Nano),
	}
	for _, id := range req.IDs {
		if p, ok := st.Snapshot.Get(id); ok {
			out.Prices[id] = p
		}
	}
	log.Debug("grpc_prices.served", zap.Int("requested", len(req.IDs)), zap.Int("served", len(out.Prices)))
	return out, nil
}

// RunServer starts a gRPC server and blocks until ctx is done.
func RunServer(ctx context.Context, addr string, srv PriceFeedServer, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, lis, srv, log)
}

// Serve runs the server on an existing listener until ctx is done.
func Serve(ctx context.Context, lis net.Listener, srv PriceFeedServer, log *zap.Logger) error {
	gs := grpc.NewServer(grpc.Creds(insecure.NewCredentials()))
	RegisterPriceFeedServer(gs, srv)
	errCh := make(chan error, 1)
	go func() {
		log.Info("grpc_server_started", zap.String("addr", lis.Addr().String()))
		errCh <- gs.Serve(lis)
	}()
	select {
	case <-ctx.Done():
		log.Info("grpc_server_stopping")
		gs.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
