package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/kafka"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/rabbitmq"
	idempotencyrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/idempotency"
	"github.com/corray333/backend-labs/fulfillment/internal/otel"
	grpctransport "github.com/corray333/backend-labs/fulfillment/internal/transport/grpc"
	httptransport "github.com/corray333/backend-labs/fulfillment/internal/transport/http"
	outboxworker "github.com/corray333/backend-labs/fulfillment/internal/worker/outbox"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

type publisher interface {
	outboxworker.Publisher
	Close() error
}

// App represents the application.
type App struct {
	core          *Core
	httpTransport *httptransport.HTTPTransport
	grpcTransport *grpctransport.GRPCTransport
	worker        *outboxworker.Worker
	publisher     publisher
	redisClient   *redis.Client
	otel          *otel.OtelController
}

// NewApp builds the application from cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	otelController, err := otel.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	core, err := NewCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{core: core, otel: otelController}

	if cfg.Idempotency.Enabled {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Idempotency.Addr,
			Password: cfg.Idempotency.Password,
			DB:       cfg.Idempotency.DB,
		})
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("Redis connected", "addr", cfg.Idempotency.Addr)
	}

	a.httpTransport = newHTTPTransport(cfg, core, a.redisClient)
	a.httpTransport.RegisterRoutes()

	if cfg.Server.GRPC.Enabled {
		a.grpcTransport = grpctransport.NewGRPCTransport(cfg.Server.GRPC, core.Fulfillment, core.Orders, core.Inventory)
	}

	switch cfg.Events.Broker {
	case config.BrokerRabbitMQ:
		client, err := rabbitmq.NewClient(cfg.Events.RabbitMQ)
		if err != nil {
			a.close()
			return nil, err
		}
		a.publisher = client
	case config.BrokerKafka:
		a.publisher = kafka.NewClient(cfg.Events.Kafka)
	}

	if a.publisher != nil {
		a.worker = outboxworker.NewWorker(
			core.Coordinator.Read().OutboxRepository(),
			a.publisher,
			cfg.Events.Outbox,
		)
	}

	return a, nil
}

func newHTTPTransport(cfg *config.Config, core *Core, redisClient *redis.Client) *httptransport.HTTPTransport {
	if redisClient == nil {
		return httptransport.NewHTTPTransport(
			cfg.Server.HTTP,
			cfg.Tracing.ServiceName,
			core.Fulfillment,
			core.Orders,
			core.Inventory,
		)
	}

	return httptransport.NewHTTPTransport(
		cfg.Server.HTTP,
		cfg.Tracing.ServiceName,
		core.Fulfillment,
		core.Orders,
		core.Inventory,
		httptransport.WithIdempotencyStore(idempotencyrepo.NewStore(redisClient, cfg.Idempotency.TTL)),
	)
}

// Run starts the servers and the outbox worker.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.httpTransport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	if a.grpcTransport != nil {
		g.Go(func() error {
			if err := a.grpcTransport.Run(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}

			return nil
		})
	}

	if a.worker != nil {
		g.Go(func() error {
			a.worker.Start(gctx)

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.httpTransport.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped gracefully")
		}

		if a.grpcTransport != nil {
			if err := a.grpcTransport.Shutdown(shutdownCtx); err != nil {
				slog.Error("gRPC server shutdown error", "error", err)
			} else {
				slog.Info("gRPC server stopped gracefully")
			}
		}

		return nil
	})

	err := g.Wait()
	a.close()
	slog.Info("Application shutdown complete")

	return err
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			slog.Error("Event publisher close error", "error", err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			slog.Error("Redis connection close error", "error", err)
		}
	}

	a.core.Close()
	slog.Info("Database connection closed")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.otel.Shutdown(ctx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}
}
