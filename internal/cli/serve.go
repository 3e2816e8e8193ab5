package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/server"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, rootOpts, serve)
		},
	}
}

func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config

	shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, cfg.OTLPEnabled, cfg.OTLPConfig())
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

	var verifier middleware.TokenVerifier
	if cfg.AuthEnabled {
		verifier, err = middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return err
		}
	}

	var detector server.Detector
	if a.Detector != nil {
		detector = a.Detector
	}
	srv := server.New(server.Options{
		Config:   cfg,
		Handlers: server.NewHandlers(a.Assembler, detector, a.Registry, a.Resolvers, a.Logger),
		Health:   a.Health,
		Verifier: verifier,
		Logger:   a.Logger,
	})

	errs := make(chan error, 1)
	go func() { errs <- srv.Start() }()
	a.Health.SetReady(true)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down")
	a.Health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
