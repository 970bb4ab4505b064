package grpctransport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

type fulfillmentService interface {
	Fulfill(ctx context.Context, req fulfillment.Request) (order.View, error)
}

type orderService interface {
	GetOrder(ctx context.Context, id string) (order.View, error)
}

type inventoryService interface {
	Reconcile(ctx context.Context, id string) (product.Reconciliation, error)
}

// GRPCTransport represents the gRPC transport layer.
type GRPCTransport struct {
	server            *grpc.Server
	port              string
	fulfillmentServer *FulfillmentServer
}

// NewGRPCTransport creates a new GRPCTransport.
func NewGRPCTransport(
	cfg config.GRPCConfig,
	fulfillmentSvc fulfillmentService,
	orders orderService,
	inventory inventoryService,
) *GRPCTransport {
	return &GRPCTransport{
		server:            newGRPCServer(cfg.Keepalive),
		port:              cfg.Port,
		fulfillmentServer: NewFulfillmentServer(fulfillmentSvc, orders, inventory),
	}
}

// Run listens on the configured port and serves until shutdown.
func (g *GRPCTransport) Run() error {
	listener, err := net.Listen("tcp", ":"+g.port)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	return g.Serve(listener)
}

// Serve registers the services and serves on listener.
func (g *GRPCTransport) Serve(listener net.Listener) error {
	g.RegisterServices()
	slog.Info("Starting gRPC server", "address", listener.Addr().String())

	return g.server.Serve(listener)
}

// Shutdown gracefully shuts down the gRPC server.
func (g *GRPCTransport) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()

		return ctx.Err()
	}
}

// RegisterServices registers the gRPC services.
func (g *GRPCTransport) RegisterServices() {
	g.server.RegisterService(&FulfillmentServiceDesc, g.fulfillmentServer)
}

// loggingInterceptor logs every unary call with its status code and duration.
func loggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	slog.InfoContext(ctx, "gRPC request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)

	return resp, err
}

// newGRPCServer creates a new gRPC server with keepalive settings from config.
func newGRPCServer(cfg config.KeepaliveConfig) *grpc.Server {
	keepaliveParams := keepalive.ServerParameters{
		MaxConnectionIdle:     cfg.MaxConnectionIdle,
		MaxConnectionAge:      cfg.MaxConnectionAge,
		MaxConnectionAgeGrace: cfg.MaxConnectionAgeGrace,
		Time:                  cfg.Time,
		Timeout:               cfg.Timeout,
	}

	keepalivePolicy := keepalive.EnforcementPolicy{
		MinTime:             cfg.MinTime,
		PermitWithoutStream: cfg.PermitWithoutStream,
	}

	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepaliveParams),
		grpc.KeepaliveEnforcementPolicy(keepalivePolicy),
		grpc.UnaryInterceptor(loggingInterceptor),
	}

	return grpc.NewServer(opts...)
}
