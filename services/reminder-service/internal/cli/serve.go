package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/handler"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/scheduler"
	"github.com/vasapolrittideah/reminder-app/shared/auth"
	"github.com/vasapolrittideah/reminder-app/shared/discovery"
	"github.com/vasapolrittideah/reminder-app/shared/utilities"
	"github.com/vasapolrittideah/reminder-app/shared/validation"
)

const shutdownTimeout = 15 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	NoScheduler bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, health server and dispatch scheduler",
		Long: `Run the reminder service.

Serves the HTTP API on HTTP_PORT and the gRPC health service on GRPC_PORT,
registers with Consul when CONSUL_ADDR is set, and runs a scan cycle every
DISPATCH_INTERVAL. Use --no-scheduler when cycles are triggered externally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoScheduler, "no-scheduler", false, "do not run scan cycles on an interval")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	v, err := validation.New()
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	router := handler.NewRouter(a.reminders, a.engine, v, a.logger, handler.RouterConfig{
		JWTAuth:       auth.NewJWTAuthenticator(a.cfg.JWTAudience, a.cfg.JWTIssuer),
		AccessSecret:  a.cfg.JWTAccessSecret,
		ServiceSecret: a.cfg.JWTServiceSecret,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := utilities.RegisterHealthServer(grpcServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}

	if a.cfg.ConsulAddr != "" {
		registrar, err := discovery.NewConsulRegistrar(a.cfg.ConsulAddr, a.logger)
		if err != nil {
			return err
		}

		serviceID := fmt.Sprintf("%s-%s", a.cfg.ServiceName, uuid.NewString())
		if err := registrar.Register(discovery.Registration{
			ID:      serviceID,
			Name:    a.cfg.ServiceName,
			Address: a.cfg.AdvertiseHost,
			Port:    a.cfg.GRPCPort,
			Tags:    []string{fmt.Sprintf("http-%d", a.cfg.HTTPPort)},
		}); err != nil {
			return err
		}
		defer registrar.Deregister(serviceID)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info().Str("addr", lis.Addr().String()).Msg("grpc health server listening")
		return utilities.ServeGRPC(gctx, grpcServer, lis)
	})

	if !opts.NoScheduler {
		g.Go(func() error {
			return scheduler.New(a.engine, a.cfg.DispatchInterval, a.cfg.CycleTimeout, a.logger).Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	a.logger.Info().Msg("reminder service stopped")
	return err
}
