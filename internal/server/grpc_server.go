package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/jobswipe/internal/config"
)

// NewGRPCServer builds a gRPC server with all provided services registered.
func NewGRPCServer(registrars ...Registrar) *grpc.Server {
	grpcServer := grpc.NewServer()

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return grpcServer
}

// StartGRPCServer listens on the configured address and serves until ctx
// is done, then stops gracefully.
func StartGRPCServer(ctx context.Context, cfg *config.Config, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ServeGRPC(ctx, lis, NewGRPCServer(registrars...))
}

// ServeGRPC serves srv on lis until ctx is done.
func ServeGRPC(ctx context.Context, lis net.Listener, srv *grpc.Server) error {
	stop := context.AfterFunc(ctx, srv.GracefulStop)
	defer stop()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}
