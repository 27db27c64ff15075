package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/inacomp/submission-judge/cmd/relay/internal/hub"
	"github.com/inacomp/submission-judge/cmd/relay/internal/routes"
	"github.com/inacomp/submission-judge/internal/config"
	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/otel"
)

const name string = "github.com/inacomp/submission-judge/cmd/relay"

var tracer = otellib.Tracer(name)

type server struct {
	router       *echo.Echo
	config       *config.Config
	hub          *hub.Hub
	rdb          *redis.Client
	otelShutdown func(context.Context) error
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize relay config: %w", err)
	}
	server.config = cfg

	logger.SetFormat(cfg.Logging.Format)
	logger.LogLevel.Set(slog.Level(cfg.Logging.App.Level))

	shutdownOTel, err := otel.SetupOTelSDK(ctx, "judge-relay", cfg.Logging.UseOTLP)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// Something failed to initialize, make sure everything gets flushed to the server
		if server.otelShutdown == nil {
			otelShutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdown())
			defer cancel()

			if err = shutdownOTel(otelShutdownCtx); err != nil {
				logger.Logger.Error("failed to flush otel data", "error", err)
			}
		}
	}()

	ctx, span := tracer.Start(ctx, "initServer")
	defer span.End()

	var hubOpts []hub.Option
	if cfg.Relay.UseRedis {
		server.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = server.rdb.Ping(ctx).Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to reach redis")
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		hubOpts = append(hubOpts, hub.WithRedis(server.rdb, cfg.Relay.ChannelPrefix))

		span.AddEvent("connected to redis")
	}

	server.hub, err = hub.New(hubOpts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create hub")
		return nil, fmt.Errorf("failed to create hub: %w", err)
	}

	e, err := routes.BuildEcho(ctx, logger.Logger, server.hub, routes.Options{
		AllowedOrigins: cfg.Relay.AllowedOrigins,
		PerMinute:      cfg.Relay.RateLimit.PerMinute,
		FailOpen:       cfg.Relay.RateLimit.FailOpen,
		RedisClient:    server.rdb,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}
	if cfg.Relay.RateLimit.PerMinute > 0 && server.rdb == nil {
		logger.Logger.WarnContext(ctx, "relay rate limit needs redis, connections are not limited")
	}

	span.AddEvent("created echo router")

	server.otelShutdown = shutdownOTel
	server.router = e

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "initialized relay")
	return server, nil
}

func (s *server) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	if s.rdb != nil {
		eg.Go(func() error {
			if err := s.hub.Subscribe(ctx); err != nil {
				// a replica that cannot hear the others must not keep accepting clients
				_ = s.router.Close()
				return fmt.Errorf("relay subscription failed: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		logger.Logger.Info("Starting relay...", "address", s.config.Relay.ListenAddress)

		var err error
		if s.config.Relay.TLSCert != "" {
			err = s.router.StartTLS(s.config.Relay.ListenAddress, s.config.Relay.TLSCert, s.config.Relay.TLSKey)
		} else {
			err = s.router.Start(s.config.Relay.ListenAddress)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

func (s *server) Shutdown() error {
	var errs error

	ctx, cancelTimeout := context.WithTimeout(context.Background(), s.config.GracefulShutdown())
	defer cancelTimeout()

	if err := s.router.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	if s.otelShutdown != nil {
		errs = errors.Join(errs, s.otelShutdown(ctx))
	}

	return errs
}

func main() {
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	logger.InitSlog()

	server, err := initServer(ctx)
	if err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	errch := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Got shutdown signal!")
		errch <- server.Shutdown()
		close(errch)
	}()

	if err := server.Start(ctx); err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	if err := <-errch; err != nil {
		logger.Logger.Error("Error shutting down server", "error", err)
	}

	cancelSignal()
}
